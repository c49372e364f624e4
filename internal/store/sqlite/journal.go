// Package sqlite journals every generated quote to a local SQLite file.
// The journal is an audit trail only; the feed server never reads it back.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"tickstream/internal/metrics"
	"tickstream/internal/model"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultBatchSize  = 500
	defaultFlushDelay = 500 * time.Millisecond
	sinkLabel         = "sqlite"
)

// Config configures the journal.
type Config struct {
	DBPath     string // e.g. "data/ticks.db"
	BatchSize  int
	FlushDelay time.Duration
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushDelay <= 0 {
		c.FlushDelay = defaultFlushDelay
	}
}

// Journal is a single-goroutine writer with transaction batching.
type Journal struct {
	db      *sql.DB
	cfg     Config
	metrics *metrics.Metrics
}

// Open opens (or creates) the database in WAL mode and ensures the schema.
// A nil m records into a private registry.
func Open(cfg Config, m *metrics.Metrics) (*Journal, error) {
	cfg.defaults()
	if m == nil {
		m = metrics.NewMetrics(prometheus.NewRegistry())
	}
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ticks (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			price  REAL    NOT NULL,
			PRIMARY KEY (symbol, ts)
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("[sqlite] opened journal", "path", cfg.DBPath)
	return &Journal{db: db, cfg: cfg, metrics: m}, nil
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Run journals quotes from ticks, committing every BatchSize quotes or every
// FlushDelay, whichever comes first. Pending quotes are flushed when ctx is
// cancelled or ticks is closed.
func (j *Journal) Run(ctx context.Context, ticks <-chan model.TickBatch) {
	pending := make([]model.Quote, 0, j.cfg.BatchSize)
	timer := time.NewTimer(j.cfg.FlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := j.Write(pending); err != nil {
			slog.Error("[sqlite] batch insert failed", "quotes", len(pending), "error", err)
		}
		pending = pending[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case batch, ok := <-ticks:
			if !ok {
				flush()
				return
			}
			pending = append(pending, batch.Quotes...)
			if len(pending) >= j.cfg.BatchSize {
				flush()
				timer.Reset(j.cfg.FlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(j.cfg.FlushDelay)
		}
	}
}

// Write inserts quotes in one transaction. Duplicate (symbol, ts) rows are ignored.
func (j *Journal) Write(quotes []model.Quote) error {
	start := time.Now()
	err := j.insert(quotes)
	j.metrics.SinkWriteDur.WithLabelValues(sinkLabel).Observe(time.Since(start).Seconds())
	if err != nil {
		j.metrics.SinkErrors.WithLabelValues(sinkLabel).Inc()
	}
	return err
}

func (j *Journal) insert(quotes []model.Quote) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO ticks (symbol, ts, price) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, q := range quotes {
		if _, err := stmt.Exec(q.Symbol, q.TS, q.Price); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
