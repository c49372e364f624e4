// Package generator produces simulated price ticks.
//
// Every interval the generator moves each symbol's price by a bounded random
// walk, appends the new sample to the series store and emits one TickBatch
// covering the whole universe.
package generator

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"tickstream/internal/indicator"
	"tickstream/internal/metrics"
	"tickstream/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBasePrice seeds symbols that have no configured starting price.
const DefaultBasePrice = 100.0

// historySpacing is the gap between seeded history samples.
const historySpacing = time.Second

// Store is the part of the series store the generator writes to.
type Store interface {
	Append(symbol string, sample model.Sample) error
}

// Config holds configuration for the tick generator.
type Config struct {
	// Interval between ticks. Defaults to 1s.
	Interval time.Duration

	// Volatility is the maximum relative move per tick, e.g. 0.01 for ±1%.
	Volatility float64

	// MinPrice floors every generated price. Defaults to 0.01.
	MinPrice float64

	// HistoryPoints is how many samples Seed creates per symbol.
	HistoryPoints int

	// BasePrices are the seeding start prices by symbol.
	BasePrices map[string]float64

	// Rand and Clock are replaceable for deterministic tests.
	Rand  *rand.Rand
	Clock func() time.Time
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.Volatility < 0 {
		c.Volatility = 0
	}
	if c.MinPrice <= 0 {
		c.MinPrice = 0.01
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Generator drives the simulated market. Seed and Tick must not be called
// concurrently; Run owns the generator once started.
type Generator struct {
	cfg      Config
	universe model.Universe
	store    Store
	metrics  *metrics.Metrics

	prices map[string]float64 // last accepted price per symbol
	lastTS int64

	// OnBatch is called with every emitted batch before it is sent downstream.
	OnBatch func(model.TickBatch)
}

// New creates a generator for universe that writes into store.
// A nil m records into a private registry.
func New(cfg Config, universe model.Universe, store Store, m *metrics.Metrics) *Generator {
	cfg.defaults()
	if m == nil {
		m = metrics.NewMetrics(prometheus.NewRegistry())
	}
	return &Generator{
		cfg:      cfg,
		universe: universe,
		store:    store,
		metrics:  m,
		prices:   make(map[string]float64, universe.Len()),
	}
}

// Step applies one random-walk move to last:
//
//	max(MinPrice, last + (u-0.5)*2*Volatility*last), u uniform in [0,1)
//
// rounded to two decimal places.
func (g *Generator) Step(last float64) float64 {
	u := g.cfg.Rand.Float64()
	next := last + (u-0.5)*2*g.cfg.Volatility*last
	next = math.Max(g.cfg.MinPrice, next)
	return math.Max(g.cfg.MinPrice, indicator.Round(next, indicator.PricePlaces))
}

// Seed fills every symbol with HistoryPoints samples spaced exactly one
// second apart, the last one stamped at now.
func (g *Generator) Seed(now time.Time) error {
	n := g.cfg.HistoryPoints
	if n <= 0 {
		return nil
	}
	end := now.UnixMilli()
	start := end - int64(n-1)*historySpacing.Milliseconds()

	var errs []error
	for _, sym := range g.universe.Symbols() {
		price := indicator.Round(math.Max(g.cfg.MinPrice, g.basePrice(sym)), indicator.PricePlaces)
		for i := 0; i < n; i++ {
			if i > 0 {
				price = g.Step(price)
			}
			ts := start + int64(i)*historySpacing.Milliseconds()
			if err := g.store.Append(sym, model.Sample{TS: ts, Price: price}); err != nil {
				errs = append(errs, err)
				break
			}
		}
		g.prices[sym] = price
	}
	if end > g.lastTS {
		g.lastTS = end
	}
	slog.Info("[generator] seeded history", "symbols", g.universe.Len(), "points", n)
	return errors.Join(errs...)
}

// Tick produces one sample per symbol stamped with now, appends them to the
// store and returns the batch. A symbol the store rejects is logged and left
// out of the batch; the others are unaffected.
func (g *Generator) Tick(now time.Time) model.TickBatch {
	begin := time.Now()

	// batch timestamps are strictly increasing, even if the clock steps back
	ts := now.UnixMilli()
	if ts <= g.lastTS {
		ts = g.lastTS + 1
	}

	batch := model.TickBatch{TS: ts, Quotes: make([]model.Quote, 0, g.universe.Len())}
	for _, sym := range g.universe.Symbols() {
		last, ok := g.prices[sym]
		if !ok {
			last = g.basePrice(sym)
		}
		next := g.Step(last)
		if err := g.store.Append(sym, model.Sample{TS: ts, Price: next}); err != nil {
			slog.Error("[generator] append failed, skipping symbol", "symbol", sym, "error", err)
			g.metrics.TickErrors.Inc()
			continue
		}
		g.prices[sym] = next
		batch.Quotes = append(batch.Quotes, model.Quote{Symbol: sym, TS: ts, Price: next})
	}
	g.lastTS = ts

	g.metrics.TicksTotal.Add(float64(len(batch.Quotes)))
	g.metrics.BatchesTotal.Inc()
	g.metrics.GenerateDur.Observe(time.Since(begin).Seconds())
	return batch
}

// Run ticks every Interval and sends each batch to out. Ticks never overlap:
// if out is slow the next tick waits. Blocks until ctx is cancelled.
func (g *Generator) Run(ctx context.Context, out chan<- model.TickBatch) {
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	slog.Info("[generator] started", "interval", g.cfg.Interval.String(), "volatility", g.cfg.Volatility)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch := g.Tick(g.cfg.Clock())
			if g.OnBatch != nil {
				g.OnBatch(batch)
			}
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (g *Generator) basePrice(sym string) float64 {
	if p, ok := g.cfg.BasePrices[sym]; ok && p > 0 {
		return p
	}
	return DefaultBasePrice
}
