package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"kakeibo/internal/cache"
	"kakeibo/internal/cli"
	apphttp "kakeibo/internal/http"
	applog "kakeibo/internal/log"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger(nil), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg)

	res, err := cli.InitBackend(context.Background(), logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}

	processor := services.NewRecurringProcessor(res.Store, res.Store, res.Publisher,
		services.WithConcurrency(cfg.RecurringConcurrency))

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Ledger:    processor,
		Summaries: cache.NewSummaryCache(cfg.SummaryCacheSize, cfg.SummaryCacheTTL),
		Ready:     res.Ready,
		RateLimit: ratelimit.DefaultConfig(),
		Logger:    applog.New(applog.Config{Handler: logger.Handler()}),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting kakeibo server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_ = res.Cleanup()
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
