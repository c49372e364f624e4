// Package protocol defines the JSON messages exchanged between the feed
// server and viewers over the websocket, plus the REST history response.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"tickstream/internal/model"
)

// Message types.
const (
	TypeSymbols   = "symbols"
	TypeHistory   = "history"
	TypeTick      = "tick"
	TypeError     = "error"
	TypeSubscribe = "subscribe"
)

// SymbolsMsg lists the universe. Sent once per connection.
type SymbolsMsg struct {
	Type    string   `json:"type"`
	Payload []string `json:"payload"`
}

// HistoryMsg answers a subscribe request with the symbol's retained series.
type HistoryMsg struct {
	Type    string         `json:"type"`
	Symbol  string         `json:"symbol"`
	History []model.Sample `json:"history"`
}

// TickMsg carries one generator batch to every connection.
type TickMsg struct {
	Type    string        `json:"type"`
	Payload []model.Quote `json:"payload"`
}

// ErrorMsg reports a rejected request to the requesting connection only.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SubscribeMsg is the only client-to-server request.
type SubscribeMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Symbol  string         `json:"symbol"`
	History []model.Sample `json:"history"`
}

// Envelope is the common head of every message, used to dispatch on type.
type Envelope struct {
	Type string `json:"type"`
}

func NewSymbols(symbols []string) SymbolsMsg {
	return SymbolsMsg{Type: TypeSymbols, Payload: symbols}
}

func NewHistory(symbol string, history []model.Sample) HistoryMsg {
	if history == nil {
		history = []model.Sample{}
	}
	return HistoryMsg{Type: TypeHistory, Symbol: symbol, History: history}
}

func NewTick(quotes []model.Quote) TickMsg {
	if quotes == nil {
		quotes = []model.Quote{}
	}
	return TickMsg{Type: TypeTick, Payload: quotes}
}

func NewError(format string, args ...any) ErrorMsg {
	return ErrorMsg{Type: TypeError, Message: fmt.Sprintf(format, args...)}
}

func NewSubscribe(symbol string) SubscribeMsg {
	return SubscribeMsg{Type: TypeSubscribe, Symbol: symbol}
}

// ParseSubscribe decodes an inbound client message. Anything that is not a
// well-formed subscribe request with a non-empty symbol yields
// model.ErrMalformedMessage.
func ParseSubscribe(raw []byte) (SubscribeMsg, error) {
	var msg SubscribeMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return SubscribeMsg{}, fmt.Errorf("%w: %v", model.ErrMalformedMessage, err)
	}
	if msg.Type != TypeSubscribe {
		return SubscribeMsg{}, fmt.Errorf("%w: unexpected type %q", model.ErrMalformedMessage, msg.Type)
	}
	msg.Symbol = strings.TrimSpace(msg.Symbol)
	if msg.Symbol == "" {
		return SubscribeMsg{}, fmt.Errorf("%w: missing symbol", model.ErrMalformedMessage)
	}
	return msg, nil
}
