package config

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/drivelab/orgdrive/pkg/drive"
)

// Default sizing for snapshot blob loading. Matches the engine's framing
// ceiling expectations: a tenant snapshot larger than this is refused.
const defaultMaxSnapshotBytes = 1 << 30 // 1GB

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values with sensible
// defaults.
//
// Default Strategy:
//   - Zero values (0, "", false) are replaced with defaults
//   - Explicit values are preserved
//   - A missing drive ID is minted here so the rest of the program can
//     rely on it being set
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyDriveDefaults(&cfg.Drive)
	applyStoreDefaults(&cfg.Store)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)
}

// applyServerDefaults sets HTTP server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.RateLimit > 0 && cfg.RateBurst == 0 {
		cfg.RateBurst = cfg.RateLimit * 2
	}
}

// applyDriveDefaults fills in drive identity defaults.
func applyDriveDefaults(cfg *DriveConfig) {
	if cfg.ID == "" {
		cfg.ID = string(drive.PrefixDrive) + uuid.NewString()
	}
	if cfg.Name == "" {
		cfg.Name = "orgdrive"
	}
}

// applyStoreDefaults sets state store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Memory.MaxSnapshotBytes == 0 {
		cfg.Memory.MaxSnapshotBytes = defaultMaxSnapshotBytes
	}
	if cfg.Badger.Path == "" {
		cfg.Badger.Path = "/var/lib/orgdrive/badger"
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}
