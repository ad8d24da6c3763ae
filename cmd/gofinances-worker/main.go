package main

import (
	"context"
	"errors"
	"os"

	"gofinances/internal/cli"
	"gofinances/internal/config"
	"gofinances/internal/log"
	"gofinances/internal/services"
	"gofinances/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting gofinances-worker")
	cli.MustValidate(logger, cfg.ValidateWorker)

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	result, err := cli.InitBackend(ctx, logger, cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Failed to release backend", log.FieldError, err)
		}
	}()

	importWorker := worker.NewImportWorker(services.NewBulkImporter(result.Store), cfg.UploadDir)

	// Pick up uploads whose messages were lost while the worker was down.
	logger.Info("Performing startup import check...", log.FieldOperation, log.OpStartup)
	if err := importWorker.StartupImportCheck(ctx); err != nil {
		logger.Error("Failed startup import check", log.FieldError, err)
		// Don't exit - queued messages are still consumed
	}

	// Consumption starts after the check so a file is never imported twice.
	err = result.Broker.ConsumeImportRequests(ctx, importWorker.HandleImportRequest)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
