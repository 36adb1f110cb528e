package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"devexpense/internal/backend"
	"devexpense/internal/cache"
	"devexpense/internal/cli"
	apphttp "devexpense/internal/http"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("app")
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", backendCfg.Type.String())
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	cacheManager := cache.NewManager()
	cacheManager.Register(result.Cleaner)
	cacheManager.StartCleanup(cfg.SessionCleanupInterval)
	defer cacheManager.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, result.Service, apphttp.Options{
		CurrencySymbol:     cfg.CurrencySymbol,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		Checks: map[string]apphttp.ReadinessCheck{
			"session_store": result.Ping,
		},
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting devexpense server",
			"port", cfg.Port,
			"backend", backendCfg.Type.String(),
			"amqp_enabled", result.AMQPEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
