package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tickerql/tickerql/internal/config"
	"github.com/tickerql/tickerql/internal/nl2sql"
	"github.com/tickerql/tickerql/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("tickerql-pull-models")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	models := cfg.AI.AvailableModels
	if len(models) == 0 {
		logger.Info("no models configured", slog.String("env", "TICKERQL_AI_AVAILABLE_MODELS"))
		return
	}

	puller, err := nl2sql.NewModelPuller(cfg.AI.BaseURL, cfg.AI.PullTimeout, logger)
	if err != nil {
		logger.Error("failed to initialize model puller", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := puller.PullAll(ctx, models); err != nil {
		logger.Error("model pull failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("models pulled", slog.Int("count", len(models)))
}
