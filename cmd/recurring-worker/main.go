package main

import (
	"context"
	"errors"
	"time"

	"kakeibo/internal/cli"
	"kakeibo/internal/services"
	"kakeibo/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger(nil), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg)
	logger.Info("Starting recurring-worker")

	res, err := cli.InitBackend(context.Background(), logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}
	if res.Publisher == nil {
		logger.Info("AMQP disabled - materialized entries will not be mirrored")
	}

	processor := services.NewRecurringProcessor(res.Store, res.Store, res.Publisher,
		services.WithConcurrency(cfg.RecurringConcurrency))
	w := worker.NewRecurringWorker(processor, cfg.RecurringInterval)

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"concurrency", cfg.RecurringConcurrency,
		"backend", cfg.DataBackend)

	stopped := make(chan struct{})
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		<-stopped
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	go func() {
		defer close(stopped)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Recurring worker stopped", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
