package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/drivelab/orgdrive/internal/logger"
	"github.com/drivelab/orgdrive/internal/remote"
	"github.com/drivelab/orgdrive/internal/server"
	"github.com/drivelab/orgdrive/pkg/config"
	"github.com/drivelab/orgdrive/pkg/drive"
	"github.com/drivelab/orgdrive/pkg/metrics"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

// loadSnapshot restores tenant state from a blob file written by a
// previous run. A missing file is a fresh start, not an error.
func loadSnapshot(tenant *drive.Tenant, path string, maxBytes uint64) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening snapshot %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	blob, err := drive.ReadBlob(f, maxBytes)
	if err != nil {
		return fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	if err := tenant.ApplySnapshot(blob); err != nil {
		return fmt.Errorf("applying snapshot %s: %w", path, err)
	}
	logger.Info("Restored state from snapshot: %s", path)
	return nil
}

// saveSnapshot exports the tenant state and writes the blob atomically
// via a temp file rename.
func saveSnapshot(tenant *drive.Tenant, path string) error {
	blob, err := tenant.ExportSnapshot()
	if err != nil {
		return fmt.Errorf("exporting snapshot: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating snapshot %s: %w", tmp, err)
	}
	if err := drive.WriteBlob(f, blob); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("writing snapshot %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing snapshot %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming snapshot %s: %w", tmp, err)
	}
	logger.Info("State snapshot written to: %s", path)
	return nil
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.SetLevel(cfg.Logging.Level)

	fmt.Println("orgdrive - multi-tenant organization drive")
	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Drive: %s (%s), owner %s", cfg.Drive.Name, cfg.Drive.ID, cfg.Drive.OwnerID)

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled on port %d", cfg.Metrics.Port)
	}

	backend, err := config.OpenBackend(&cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Store.Type, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Store close error: %v", err)
		}
	}()
	logger.Info("State store: %s", cfg.Store.Type)

	dispatcher := remote.NewDispatcher(metrics.NewWebhookMetrics())
	defer dispatcher.Close()

	tenant := drive.NewTenant(drive.Config{
		DriveID:    drive.DriveID(cfg.Drive.ID),
		OwnerID:    drive.UserID(cfg.Drive.OwnerID),
		Name:       cfg.Drive.Name,
		Version:    version,
		Endpoint:   cfg.Drive.Endpoint,
		Backend:    backend,
		Validator:  remote.NewValidator(os.Getenv("ORGDRIVE_PEER_API_KEY")),
		Dispatcher: dispatcher,
	})

	// The memory backend is volatile, so state rides a snapshot blob
	// across restarts when a path is configured.
	persistPath := ""
	if cfg.Store.Type == "memory" && cfg.Store.Memory.SnapshotPath != "" {
		persistPath = cfg.Store.Memory.SnapshotPath
		if err := loadSnapshot(tenant, persistPath, cfg.Store.Memory.MaxSnapshotBytes); err != nil {
			log.Fatalf("Failed to restore snapshot: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	srv := server.New(server.Config{
		Listen:       cfg.Server.Listen,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
	}, tenant, metrics.NewAPIMetrics())

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("API server listening on %s. Press Ctrl+C to stop.", cfg.Server.Listen)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error: %v", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Metrics server shutdown error: %v", err)
			}
		}
		cancel()
		<-serverDone

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
	}

	if persistPath != "" {
		if err := saveSnapshot(tenant, persistPath); err != nil {
			logger.Error("Snapshot save error: %v", err)
			os.Exit(1)
		}
	}
	logger.Info("Server stopped gracefully")
}
