package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete orgdrive server configuration.
//
// This structure captures all configurable aspects of the server:
//   - Logging configuration
//   - HTTP API server settings
//   - Drive identity (ID, owner, endpoint)
//   - State store selection and store-specific configuration
//   - Metrics exposure
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (ORGDRIVE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// The Store section carries a type discriminator plus one sub-section per
// backend. Only the sub-section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains the HTTP API server settings
	Server ServerConfig `mapstructure:"server"`

	// Drive identifies this tenant
	Drive DriveConfig `mapstructure:"drive"`

	// Store specifies the state store type and type-specific configuration
	Store StoreConfig `mapstructure:"store"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ServerConfig contains HTTP API server settings.
type ServerConfig struct {
	// Listen is the address the API server binds to (e.g. ":8080")
	Listen string `mapstructure:"listen" validate:"required"`

	// ReadTimeout bounds how long reading a request may take
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"gte=0"`

	// WriteTimeout bounds how long writing a response may take
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// RateLimit is the sustained request rate per client in requests
	// per second (0 = unlimited)
	RateLimit uint `mapstructure:"rate_limit"`

	// RateBurst is the burst capacity for the rate limiter
	RateBurst uint `mapstructure:"rate_burst"`
}

// DriveConfig identifies the tenant this server hosts.
type DriveConfig struct {
	// ID is the drive identifier ("DriveID_<uuid>"); generated when empty
	ID string `mapstructure:"id"`

	// OwnerID is the owning user ("UserID_<uuid>")
	OwnerID string `mapstructure:"owner_id" validate:"required,startswith=UserID_"`

	// Name is the human-readable drive name
	Name string `mapstructure:"name" validate:"required"`

	// Endpoint is the public URL other tenants use to reach this drive
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}

// StoreConfig specifies state store configuration.
//
// The Type field determines which backend implementation is used.
// Only the corresponding type-specific section is consulted.
type StoreConfig struct {
	// Type specifies which store backend to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-backend configuration
	// Only used when Type = "memory"
	Memory MemoryStoreConfig `mapstructure:"memory"`

	// Badger contains BadgerDB-backend configuration
	// Only used when Type = "badger"
	Badger BadgerStoreConfig `mapstructure:"badger"`
}

// MemoryStoreConfig configures the in-memory backend. State is volatile
// unless a snapshot path is set, in which case the full state is loaded
// from the blob on startup and written back on shutdown.
type MemoryStoreConfig struct {
	// SnapshotPath is the blob file used to persist state across restarts.
	// Empty disables persistence.
	SnapshotPath string `mapstructure:"snapshot_path"`

	// MaxSnapshotBytes caps the decompressed size accepted when loading
	// a snapshot blob
	MaxSnapshotBytes uint64 `mapstructure:"max_snapshot_bytes"`
}

// BadgerStoreConfig configures the BadgerDB backend.
type BadgerStoreConfig struct {
	// Path is the database directory
	Path string `mapstructure:"path"`

	// SyncWrites forces an fsync after every write
	SyncWrites bool `mapstructure:"sync_writes"`

	// ValueLogGC enables the periodic value-log garbage collection loop
	ValueLogGC bool `mapstructure:"value_log_gc"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns metrics collection and the /metrics server on
	Enabled bool `mapstructure:"enabled"`

	// Port is the metrics HTTP server port
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (ORGDRIVE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the ORGDRIVE_ prefix and underscores.
	// Example: ORGDRIVE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("ORGDRIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is acceptable: defaults apply
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "orgdrive")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "orgdrive")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
