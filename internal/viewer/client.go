// Package viewer connects a ClientView to a feed server.
//
// It subscribes to one symbol, feeds history and tick messages into the
// view in arrival order and reconnects after a fixed delay whenever the
// connection drops. Before the first successful connection it fetches the
// symbol's history once over HTTP so the view is not blank while the
// websocket is unavailable.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"tickstream/internal/protocol"
	"tickstream/internal/view"

	"github.com/gorilla/websocket"
)

const DefaultReconnectDelay = time.Second

// Config holds the viewer's connection settings.
type Config struct {
	// URL of the feed websocket, e.g. "ws://localhost:8080/ws".
	URL string
	// HistoryURL of the REST fallback, e.g. "http://localhost:8080/api/history".
	// Empty disables the fallback.
	HistoryURL string
	Symbol     string

	// ReconnectDelay is the fixed wait between attempts. Defaults to 1s.
	ReconnectDelay time.Duration
	HTTPClient     *http.Client
}

func (c *Config) defaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
}

// Client drives one ClientView from a feed server.
type Client struct {
	cfg  Config
	view *view.ClientView

	everConnected bool
	fallbackTried bool

	// Optional hooks, called from the Run goroutine.
	OnReconnect   func()
	OnServerError func(message string)
}

// New creates a Client. The view is only touched from the Run goroutine.
func New(cfg Config, v *view.ClientView) (*Client, error) {
	cfg.defaults()
	if cfg.Symbol == "" {
		return nil, errors.New("viewer: symbol is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("viewer: bad url: %w", err)
	}
	return &Client{cfg: cfg, view: v}, nil
}

// Run connects and streams until ctx is cancelled. Disconnects are retried
// forever with a fixed delay.
func (c *Client) Run(ctx context.Context) error {
	if c.view.Symbol() == "" {
		c.view.Select(c.cfg.Symbol)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := c.runOnce(ctx)
		if err == nil {
			return nil
		}

		if !c.everConnected && !c.fallbackTried && c.cfg.HistoryURL != "" {
			c.fallbackTried = true
			if ferr := c.fetchHistory(ctx); ferr != nil {
				slog.Warn("[viewer] history fallback failed", "error", ferr)
			}
		}

		slog.Warn("[viewer] disconnected, reconnecting", "error", err, "delay", c.cfg.ReconnectDelay.String())
		if c.OnReconnect != nil {
			c.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancel. It returns nil only when ctx was cancelled.
func (c *Client) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	c.everConnected = true
	slog.Info("[viewer] connected", "url", c.cfg.URL)

	var writeMu sync.Mutex
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			writeMu.Lock()
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			writeMu.Unlock()
			conn.Close()
		case <-done:
		}
	}()

	send := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		if err := c.handle(raw, send); err != nil {
			return err
		}
	}
}

// handle routes one server message into the view. Unparseable messages are
// logged and skipped; only a failed write ends the connection.
func (c *Client) handle(raw []byte, send func(any) error) error {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("[viewer] parse error", "error", err)
		return nil
	}

	switch env.Type {
	case protocol.TypeSymbols:
		var msg protocol.SymbolsMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("[viewer] bad symbols message", "error", err)
			return nil
		}
		slog.Info("[viewer] universe", "symbols", msg.Payload)
		return send(protocol.NewSubscribe(c.cfg.Symbol))

	case protocol.TypeHistory:
		var msg protocol.HistoryMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("[viewer] bad history message", "error", err)
			return nil
		}
		c.view.LoadHistory(msg.Symbol, msg.History)

	case protocol.TypeTick:
		var msg protocol.TickMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("[viewer] bad tick message", "error", err)
			return nil
		}
		c.view.ApplyBatch(msg.Payload)

	case protocol.TypeError:
		var msg protocol.ErrorMsg
		json.Unmarshal(raw, &msg)
		slog.Warn("[viewer] server error", "message", msg.Message)
		if c.OnServerError != nil {
			c.OnServerError(msg.Message)
		}

	default:
		slog.Debug("[viewer] ignoring message", "type", env.Type)
	}
	return nil
}

// fetchHistory loads the symbol's history over HTTP.
func (c *Client) fetchHistory(ctx context.Context) error {
	u, err := url.Parse(c.cfg.HistoryURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("symbol", c.cfg.Symbol)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("history %s: status %d", c.cfg.Symbol, resp.StatusCode)
	}
	var body protocol.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}
	c.view.LoadHistory(body.Symbol, body.History)
	slog.Info("[viewer] loaded history over http", "symbol", body.Symbol, "points", len(body.History))
	return nil
}
