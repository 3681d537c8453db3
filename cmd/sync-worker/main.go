package main

import (
	"context"
	"errors"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/cli"
	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
	gsheet "kakeibo/internal/sheets/google"
	mem "kakeibo/internal/sheets/memory"
	"kakeibo/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger(nil), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg)
	logger.Info("Starting sync-worker")

	if !cfg.AMQPEnabled() {
		cli.Fatal(logger, "Sync worker needs a broker", errors.New("AMQP_URL is not set"))
	}

	var (
		mirror sheets.EntryMirror
		runs   sheets.RunRecorder
	)
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		mirror, runs = client, client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		m := mem.New()
		mirror, runs = m, m
		logger.Info("Google Sheets disabled - mirroring into memory")
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}

	res, err := cli.InitBackend(context.Background(), logger, cfg)
	if err != nil {
		_ = consumer.Close()
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}

	w := worker.NewSyncWorker(mirror, runs, cfg.SyncBatchSize)

	stopped := make(chan struct{})
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		<-stopped
		if err := consumer.Close(); err != nil {
			logger.Error("AMQP close error", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	// Messages published while the worker was down are recovered from the
	// store for the current month.
	month := core.YearMonthOf(time.Now())
	if _, err := w.Backfill(ctx, res.Store, month); err != nil {
		logger.Error("Startup backfill failed", "error", err, "month", month.String())
	}

	go func() {
		defer close(stopped)
		if err := consumer.Consume(ctx, cfg.SyncBatchSize, w); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
