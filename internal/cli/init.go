// Package cli provides common CLI initialization utilities shared by
// cmd/devexpense, cmd/devexpense-worker and cmd/devexpense-cli.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"devexpense/internal/config"
	applog "devexpense/internal/log"
)

// SetupLogger initializes structured logging at the level named by
// LOG_LEVEL and installs it as the slog default.
func SetupLogger(component string) *applog.Logger {
	level, err := applog.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger := applog.NewText(os.Stdout, level, component)
	slog.SetDefault(logger.Logger)
	if err != nil {
		logger.Warn("Falling back to info level", "error", err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads configuration from CONFIG_FILE when set, then the
// environment, and validates the result.
func LoadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		cfg, err = config.LoadWithFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		cfg = config.Load()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
