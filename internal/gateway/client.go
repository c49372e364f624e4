package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tickstream/internal/logger"
	"tickstream/internal/model"
	"tickstream/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

// State is where a connection is in its lifecycle.
type State int

const (
	StateConnected State = iota
	StateSubscribed
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Client represents a single websocket peer.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	ctx  context.Context // carries the conn id for logging

	send chan []byte

	mu     sync.Mutex
	state  State
	symbol string
	closed bool
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	return &Client{
		id:    id,
		conn:  conn,
		hub:   h,
		ctx:   logger.WithConnID(context.Background(), id),
		send:  make(chan []byte, sendBufferSize),
		state: StateConnected,
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// State returns the lifecycle state and, when subscribed, the symbol.
func (c *Client) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.symbol
}

func (c *Client) setSubscribed(symbol string) {
	c.mu.Lock()
	if !c.closed {
		c.state = StateSubscribed
		c.symbol = symbol
	}
	c.mu.Unlock()
}

// enqueue offers msg to the write pump without blocking. It reports false
// when the buffer is full or the client is already gone.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("[gateway] encode failed", append(logger.ConnAttrs(c.ctx), "error", err)...)
		return
	}
	if !c.enqueue(data) {
		c.hub.metrics.BroadcastDrops.Inc()
	}
}

// close moves the client to Disconnected and releases the send buffer.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.state = StateDisconnected
	close(c.send)
}

// handleMessage processes one inbound message. Malformed input is dropped
// without a reply; the connection stays open.
func (c *Client) handleMessage(raw []byte) {
	msg, err := protocol.ParseSubscribe(raw)
	if err != nil {
		if errors.Is(err, model.ErrMalformedMessage) {
			c.hub.metrics.MalformedMessages.Inc()
			slog.Debug("[gateway] dropping inbound message", append(logger.ConnAttrs(c.ctx), "error", err)...)
		}
		return
	}
	c.hub.subscribe(c, msg.Symbol)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles inbound messages one at a time until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("[gateway] read error", append(logger.ConnAttrs(c.ctx), "error", err)...)
			}
			return
		}
		c.handleMessage(msg)
	}
}
