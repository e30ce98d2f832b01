package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"whomst/internal/amqp"
	"whomst/internal/backend"
	"whomst/internal/cli"
	"whomst/internal/config"
	"whomst/internal/log"
	gsheet "whomst/internal/sheets/google"
	"whomst/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	logger.Info("Starting whomst-worker", "backend", cfg.DataBackend)

	ctx, cancel := cli.ShutdownContext(context.Background(), logger)
	defer cancel()

	// The worker reads the store and never publishes.
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	bcfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer res.Cleanup()

	mirror, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer consumer.Close()

	w := worker.NewMirrorWorker(mirror, mirror, res.Store())

	// Catch up on anything published while the worker was down.
	if _, err := w.Backfill(ctx); err != nil {
		logger.Error("Startup backfill failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Consume(gctx, w.HandleEvent)
	})
	if cfg.BackfillInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.BackfillInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if _, err := w.Backfill(gctx); err != nil && gctx.Err() == nil {
						logger.Error("Periodic backfill failed", log.FieldError, err)
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		res.Cleanup()
		consumer.Close()
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
