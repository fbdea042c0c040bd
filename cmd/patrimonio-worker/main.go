package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"patrimonio/internal/amqp"
	"patrimonio/internal/cli"
	"patrimonio/internal/engine"
	"patrimonio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting patrimonio-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	engineConfig := engine.DefaultConfig()
	engineConfig.Concurrency = cfg.Concurrency
	eng := engine.New(sqliteRepo, sqliteRepo, sqliteRepo, sqliteRepo, engineConfig)

	recalcWorker := worker.NewRecalcWorker(sqliteRepo, eng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// On startup, refresh today's snapshot for every owner in case messages
	// were lost while the worker was down.
	logger.Info("Performing startup freshness check...")
	if err := recalcWorker.StartupFreshnessCheck(ctx); err != nil {
		logger.Error("Startup freshness check failed", "error", err)
		// Don't exit - continue with normal operation
	}

	go func() {
		handler := func(msg *amqp.RecalculateMessage) error {
			return recalcWorker.HandleRecalculateMessage(ctx, msg)
		}
		if err := amqpClient.ConsumeRecalculate(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Give an in-flight recalculation time to finish its current day; each
	// day's write is self-contained, so stopping between days is safe.
	logger.Info("Shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
