// Package cli provides common initialization for the ledger commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledger/internal/backend"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/worker"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", "error", err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the store and sender selected by cfg.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "store", bcfg.Type)
		os.Exit(1)
	}
	return res
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Shutdown runs cleanup, giving up after timeout.
func Shutdown(logger *log.Logger, timeout time.Duration, cleanup func() error) {
	done := make(chan error, 1)
	go func() { done <- cleanup() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("Cleanup failed", "error", err)
			return
		}
		logger.Info("Shutdown complete")
	case <-time.After(timeout):
		logger.Warn("Shutdown timeout reached")
	}
}

// RunWorker is the main body shared by the worker commands: it loads the
// environment, opens the backend, runs the jobs returned by jobs until a
// shutdown signal arrives and releases resources.
func RunWorker(name string, jobs func(b *backend.Backend, cfg *config.Config) []worker.Job) {
	LoadEnvFile()
	cfg := LoadAndValidateConfig()
	logger := SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting " + name)

	ctx, cancel := SignalContext(logger)
	defer cancel()
	ctx = log.NewContext(ctx, logger)

	res := InitBackend(ctx, logger, cfg)
	b := res.Backend

	cacheLogger := logger.WithComponent(log.ComponentCache)
	all := append(jobs(b, cfg), worker.Job{
		Name:     "cache-cleanup",
		Interval: cfg.CategoryCacheTTL,
		Run: func(ctx context.Context, _ time.Time) error {
			if n := b.Caches.CleanAll(); n > 0 {
				cacheLogger.DebugContext(ctx, "Evicted expired cache entries", "count", n)
			}
			return nil
		},
	})
	for _, j := range all {
		logger.Info("Job configured", log.FieldJob, j.Name, "interval", j.Interval)
	}

	runner := worker.NewRunner(all...)
	if err := runner.Start(ctx); err != nil {
		logger.Error("Failed to start worker", "error", err)
		Shutdown(logger, 30*time.Second, res.Cleanup)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutting down " + name)

	stopCtx, stopCancel := context.WithTimeout(log.NewContext(context.Background(), logger), 30*time.Second)
	defer stopCancel()
	if err := runner.Stop(stopCtx); err != nil {
		logger.Error("Worker stopped with error", "error", err)
	}
	Shutdown(logger, 30*time.Second, res.Cleanup)
}
