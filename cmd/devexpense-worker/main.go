package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"devexpense/internal/amqp"
	"devexpense/internal/cli"
	"devexpense/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("worker")

	logger.Info("Starting devexpense-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	audit := worker.NewAuditWorker(logger.Logger, cfg.MaxSessions, cfg.SessionTTL)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeCalculationRecorded(gctx, audit.HandleCalculationRecorded)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.StatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				audit.LogStats(context.Background())
				return nil
			case <-ticker.C:
				audit.LogStats(gctx)
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
