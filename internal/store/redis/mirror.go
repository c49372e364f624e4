// Package redis mirrors the feed into Redis for external consumers: the
// latest quote per symbol under quote:latest:<SYM> and every batch published
// on a pub/sub channel. Nothing is read back at startup.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tickstream/internal/metrics"
	"tickstream/internal/model"
	"tickstream/internal/protocol"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultLatestTTL = 30 * time.Minute
	DefaultChannel   = "pub:tick"

	latestKeyPrefix = "quote:latest:"
	sinkLabel       = "redis"
)

// Config configures the mirror.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	LatestTTL time.Duration
	Channel   string

	// Breaker settings. Defaults: 5 failures, 10s cool-down.
	MaxFailures int
	CoolDown    time.Duration
}

func (c *Config) defaults() {
	if c.LatestTTL <= 0 {
		c.LatestTTL = DefaultLatestTTL
	}
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.CoolDown <= 0 {
		c.CoolDown = 10 * time.Second
	}
}

// LatestKey is the key holding a symbol's latest quote.
func LatestKey(symbol string) string { return latestKeyPrefix + symbol }

// Mirror writes tick batches to Redis behind a circuit breaker.
type Mirror struct {
	client  *goredis.Client
	cfg     Config
	breaker *CircuitBreaker
	metrics *metrics.Metrics
}

// New connects to Redis and pings it.
func New(cfg Config, m *metrics.Metrics) (*Mirror, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("[redis] connected", "addr", cfg.Addr)
	return NewWithClient(client, cfg, m), nil
}

// NewWithClient wraps an existing client. A nil m records into a private registry.
func NewWithClient(client *goredis.Client, cfg Config, m *metrics.Metrics) *Mirror {
	cfg.defaults()
	if m == nil {
		m = metrics.NewMetrics(prometheus.NewRegistry())
	}
	mr := &Mirror{
		client:  client,
		cfg:     cfg,
		breaker: NewCircuitBreaker(cfg.MaxFailures, cfg.CoolDown),
		metrics: m,
	}
	mr.breaker.OnStateChange = func(from, to State) {
		m.RedisCircuitBreakerState.Set(float64(to))
		if to == StateOpen {
			m.RedisCircuitBreakerTrips.Inc()
		}
		slog.Warn("[redis] circuit breaker", "from", from.String(), "to", to.String())
	}
	return mr
}

// Client returns the underlying client for health checks.
func (mr *Mirror) Client() *goredis.Client { return mr.client }

// Breaker exposes the circuit breaker state.
func (mr *Mirror) Breaker() *CircuitBreaker { return mr.breaker }

// Run mirrors every batch from ticks. Blocks until ctx is cancelled or
// ticks is closed. Failures are logged and counted, never fatal.
func (mr *Mirror) Run(ctx context.Context, ticks <-chan model.TickBatch) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-ticks:
			if !ok {
				return
			}
			if err := mr.Write(ctx, batch); err != nil && err != ErrCircuitOpen {
				slog.Warn("[redis] mirror write failed", "ts", batch.TS, "error", err)
			}
		}
	}
}

// Write stores each quote as its symbol's latest value and publishes the
// batch as a tick message, in one pipeline.
func (mr *Mirror) Write(ctx context.Context, batch model.TickBatch) error {
	payload, err := json.Marshal(protocol.NewTick(batch.Quotes))
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	latest := make([][]byte, len(batch.Quotes))
	for i, q := range batch.Quotes {
		if latest[i], err = json.Marshal(q); err != nil {
			return fmt.Errorf("encode quote %s: %w", q.Symbol, err)
		}
	}

	start := time.Now()
	err = mr.breaker.Execute(func() error {
		_, err := mr.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
			for i, q := range batch.Quotes {
				pipe.Set(ctx, LatestKey(q.Symbol), latest[i], mr.cfg.LatestTTL)
			}
			pipe.Publish(ctx, mr.cfg.Channel, payload)
			return nil
		})
		return err
	})
	mr.metrics.SinkWriteDur.WithLabelValues(sinkLabel).Observe(time.Since(start).Seconds())
	if err != nil {
		mr.metrics.SinkErrors.WithLabelValues(sinkLabel).Inc()
	}
	return err
}

// Close closes the client.
func (mr *Mirror) Close() error {
	return mr.client.Close()
}
