// Package gateway is the websocket side of the feed server.
//
// A Hub owns every connected Client, keyed by a generated connection id.
// Tick batches are broadcast to all clients regardless of what they
// subscribed to; viewers filter ticks themselves. A subscribe request is
// answered with the symbol's history to the requesting client only.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"tickstream/internal/logger"
	"tickstream/internal/metrics"
	"tickstream/internal/model"
	"tickstream/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// HistorySource returns a snapshot of a symbol's retained series.
type HistorySource interface {
	History(symbol string) ([]model.Sample, error)
}

// Hub manages websocket clients and tick fan-out.
type Hub struct {
	universe model.Universe
	store    HistorySource
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	clients map[string]*Client

	// Lag from tick timestamp to fan-out completion, for /health.
	Latency *LatencyTracker

	startedAt time.Time
}

// NewHub creates a Hub serving the given universe from store.
// A nil m records into a private registry.
func NewHub(universe model.Universe, store HistorySource, m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.NewMetrics(prometheus.NewRegistry())
	}
	return &Hub{
		universe:  universe,
		store:     store,
		metrics:   m,
		clients:   make(map[string]*Client),
		Latency:   NewLatencyTracker(10000),
		startedAt: time.Now(),
	}
}

// Universe returns the symbols the hub accepts subscriptions for.
func (h *Hub) Universe() model.Universe { return h.universe }

// ServeWS registers a freshly upgraded connection and starts its pumps.
func (h *Hub) ServeWS(conn *websocket.Conn) *Client {
	c := newClient(h, conn)
	h.Register(c)
	go c.writePump()
	go c.readPump()
	return c
}

// Register adds c to the hub and queues the universe list for it.
func (h *Hub) Register(c *Client) {
	symbols, _ := json.Marshal(protocol.NewSymbols(h.universe.Symbols()))

	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	c.enqueue(symbols)
	h.mu.Unlock()

	h.metrics.ClientsConnected.Set(float64(count))
	slog.Info("[gateway] ws client connected", append(logger.ConnAttrs(c.ctx), "clients", count)...)
}

// Unregister removes c and closes its send buffer. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
	}
	count := len(h.clients)
	h.mu.Unlock()

	c.close()
	if ok {
		h.metrics.ClientsConnected.Set(float64(count))
		slog.Info("[gateway] ws client disconnected", append(logger.ConnAttrs(c.ctx), "clients", count)...)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run broadcasts every batch read from ticks. Blocks until ctx is cancelled
// or ticks is closed.
func (h *Hub) Run(ctx context.Context, ticks <-chan model.TickBatch) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-ticks:
			if !ok {
				return
			}
			h.Broadcast(batch)
		}
	}
}

// Broadcast encodes batch once and offers it to every connected client.
// A client whose buffer is full misses this tick; delivery to the others
// is unaffected.
func (h *Hub) Broadcast(batch model.TickBatch) {
	start := time.Now()
	data, err := json.Marshal(protocol.NewTick(batch.Quotes))
	if err != nil {
		slog.Error("[gateway] encode tick failed", "error", err)
		return
	}

	dropped := 0
	h.mu.RLock()
	for _, c := range h.clients {
		if !c.enqueue(data) {
			dropped++
		}
	}
	h.mu.RUnlock()

	if dropped > 0 {
		h.metrics.BroadcastDrops.Add(float64(dropped))
	}
	h.metrics.FanoutDur.Observe(time.Since(start).Seconds())
	if batch.TS > 0 {
		if lag := float64(time.Now().UnixMilli() - batch.TS); lag >= 0 {
			h.Latency.Record(lag)
		}
	}
}

// subscribe moves c to Subscribed(symbol) and sends it that symbol's
// history. Unknown symbols get an error message and leave c unchanged.
func (h *Hub) subscribe(c *Client, requested string) {
	symbol, ok := h.universe.Canonical(requested)
	if !ok {
		h.metrics.SubscribesTotal.WithLabelValues("unknown_symbol").Inc()
		slog.Warn("[gateway] subscribe to unknown symbol", append(logger.ConnAttrs(c.ctx), "symbol", requested)...)
		c.sendJSON(protocol.NewError("unknown symbol: %s", requested))
		return
	}

	// Snapshot and enqueue under the write lock so no broadcast can slip
	// between them: every tick queued after the history is newer than it.
	h.mu.Lock()
	history, err := h.store.History(symbol)
	if err != nil {
		h.mu.Unlock()
		h.metrics.SubscribesTotal.WithLabelValues("error").Inc()
		slog.Error("[gateway] history lookup failed", append(logger.ConnAttrs(c.ctx), "symbol", symbol, "error", err)...)
		c.sendJSON(protocol.NewError("history unavailable: %s", symbol))
		return
	}
	c.setSubscribed(symbol)
	c.sendJSON(protocol.NewHistory(symbol, history))
	h.mu.Unlock()

	h.metrics.SubscribesTotal.WithLabelValues("ok").Inc()
	slog.Info("[gateway] client subscribed", append(logger.ConnAttrs(c.ctx), "symbol", symbol, "points", len(history))...)
}
