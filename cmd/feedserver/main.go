// cmd/feedserver runs the simulated tick feed: it seeds every symbol's
// history, ticks on a timer and streams each batch to websocket viewers.
// Batches are optionally mirrored to Redis and journaled to SQLite.
//
// Configuration comes from the environment (or a .env file), see config.Load.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tickstream/config"
	"tickstream/internal/gateway"
	"tickstream/internal/logger"
	"tickstream/internal/marketdata/bus"
	"tickstream/internal/marketdata/generator"
	"tickstream/internal/metrics"
	"tickstream/internal/model"
	"tickstream/internal/series"
	redisstore "tickstream/internal/store/redis"
	sqlitestore "tickstream/internal/store/sqlite"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	logger.Init("feedserver", logger.ParseLevel(cfgLevel(cfg)))
	if err != nil {
		slog.Error("[feedserver] invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Metrics & health ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, reg, health)
	metricsSrv.Start()

	// ---- Store & generator ----
	universe := model.NewUniverse(cfg.Symbols...)
	store := series.New(universe, cfg.MaxLength)

	gen := generator.New(generator.Config{
		Interval:      cfg.TickInterval,
		Volatility:    cfg.Volatility,
		MinPrice:      cfg.MinPrice,
		HistoryPoints: cfg.HistoryPoints,
		BasePrices:    cfg.BasePrices,
	}, universe, store, prom)
	gen.OnBatch = func(b model.TickBatch) {
		health.SetLastTickTime(time.UnixMilli(b.TS))
	}
	if err := gen.Seed(time.Now()); err != nil {
		slog.Warn("[feedserver] seeding incomplete", "error", err)
	}

	// ---- Fan-out: hub + optional sinks ----
	fanout := bus.New(256)
	fanout.OnDrop = func(name string) {
		prom.FanoutDropsTotal.WithLabelValues(name).Inc()
	}
	hubIn := fanout.Subscribe("hub")

	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		mirror, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, prom)
		if err != nil {
			slog.Warn("[feedserver] redis unavailable, continuing without mirror", "error", err)
		} else {
			defer mirror.Close()
			rdb = mirror.Client()
			go mirror.Run(ctx, fanout.Subscribe("redis"))
			slog.Info("[feedserver] redis mirror ready", "addr", cfg.RedisAddr)
		}
	}

	var sqlDB *sql.DB
	if cfg.SQLitePath != "" {
		os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
		journal, err := sqlitestore.Open(sqlitestore.Config{DBPath: cfg.SQLitePath}, prom)
		if err != nil {
			slog.Warn("[feedserver] sqlite unavailable, continuing without journal", "error", err)
		} else {
			defer journal.Close()
			sqlDB = journal.DB()
			go journal.Run(ctx, fanout.Subscribe("sqlite"))
			slog.Info("[feedserver] sqlite journal ready", "path", cfg.SQLitePath)
		}
	}

	if rdb != nil || sqlDB != nil {
		health.StartLivenessChecker(ctx, rdb, sqlDB, 10*time.Second)
	}

	// ---- Hub & HTTP ----
	hub := gateway.NewHub(universe, store, prom)
	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub)
	srv := &http.Server{
		Addr:              cfg.FeedAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	batches := make(chan model.TickBatch, 16)
	go fanout.Run(ctx, batches)
	go hub.Run(ctx, hubIn)
	go gen.Run(ctx, batches)

	go func() {
		slog.Info("[feedserver] listening", "addr", cfg.FeedAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[feedserver] http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("[feedserver] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
}

func cfgLevel(cfg *config.Config) string {
	if cfg == nil {
		return os.Getenv("LOG_LEVEL")
	}
	return cfg.LogLevel
}
