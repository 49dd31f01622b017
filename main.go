package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	clts "tradewatch/clients"
	"tradewatch/config"
	"tradewatch/internal/app"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()
	if result := cfg.Validate(); !result.Valid() {
		for _, e := range result.Errors {
			logger.Error("invalid configuration",
				zap.String("field", e.Field),
				zap.String("problem", e.Message))
		}
		logger.Fatal("configuration validation failed")
	}

	clients, err := clts.NewClients(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialize clients", zap.Error(err))
	}
	defer clients.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := app.NewRunner(clients, cfg)
	if err := runner.Run(ctx); err != nil {
		logger.Fatal("runner exited with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
