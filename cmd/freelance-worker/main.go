package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"freelance/internal/amqp"
	"freelance/internal/backend"
	"freelance/internal/cli"
	"freelance/internal/log"
	"freelance/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentWorker, cfg.LogLevel)

	logger.Info("Starting freelance-worker")

	b := cli.OpenBackend(context.Background(), logger, cfg)

	ledger, err := backend.NewLedger(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err)
		os.Exit(1)
	}

	ledgerWorker := worker.NewLedgerWorker(b.Store, ledger, logger)
	sweeper := worker.NewReminderSweeper(b.Store, worker.NewLogNotifier(logger), cfg.ReminderInterval, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := sweeper.Stop(ctx); err != nil {
			logger.Warn("Reminder sweeper stop", log.FieldError, err)
		}
		if err := b.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start reminder sweeper", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	if b.Events != nil {
		g.Go(func() error {
			return consume(gctx, b.Events, ledgerWorker, cfg.SyncInterval, logger)
		})
	} else {
		logger.Warn("AMQP not available, invoice events will not reach the ledger")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

// consume keeps the ledger consumer alive, waiting retryDelay after the
// client gives up reconnecting.
func consume(ctx context.Context, events *amqp.Client, w *worker.LedgerWorker, retryDelay time.Duration, logger *log.Logger) error {
	for {
		err := events.ConsumeInvoiceEvents(ctx, w.HandleInvoiceEvent)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.ErrorContext(ctx, "Invoice event consumption failed, retrying",
			log.FieldError, err,
			"retry_in", retryDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}
