// cmd/viewer is a terminal viewer: it follows one symbol from a feed server
// and logs each update with the moving average and trend.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tickstream/config"
	"tickstream/internal/logger"
	"tickstream/internal/view"
	"tickstream/internal/viewer"
)

func main() {
	cfg, err := config.LoadViewer()
	if err != nil {
		logger.Init("viewer", logger.ParseLevel(os.Getenv("LOG_LEVEL")))
		slog.Error("[viewer] invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.Init("viewer", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v, err := view.New(view.Config{MaxPoints: cfg.MaxPoints, Period: cfg.Period}, view.LogRenderer{Logger: log})
	if err != nil {
		log.Error("[viewer] view init failed", "error", err)
		os.Exit(1)
	}

	client, err := viewer.New(viewer.Config{
		URL:            cfg.URL,
		HistoryURL:     cfg.HistoryURL,
		Symbol:         cfg.Symbol,
		ReconnectDelay: cfg.ReconnectDelay,
	}, v)
	if err != nil {
		log.Error("[viewer] client init failed", "error", err)
		os.Exit(1)
	}

	log.Info("[viewer] following", "symbol", cfg.Symbol, "url", cfg.URL, "period", cfg.Period)
	client.Run(ctx)
	log.Info("[viewer] stopped")
}
