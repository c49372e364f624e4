package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"tickstream/internal/protocol"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers the websocket endpoint and the REST fallbacks.
func RegisterRoutes(mux *http.ServeMux, hub *Hub) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("[gateway] ws upgrade error", "error", err, "remote", r.RemoteAddr)
			return
		}
		hub.ServeWS(conn)
	})

	mux.HandleFunc("/api/symbols", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, http.StatusOK, map[string][]string{"symbols": hub.universe.Symbols()})
	})

	mux.HandleFunc("/api/history", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		requested := r.URL.Query().Get("symbol")
		if requested == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing symbol"})
			return
		}
		symbol, ok := hub.universe.Canonical(requested)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown symbol: " + requested})
			return
		}
		history, err := hub.store.History(symbol)
		if err != nil {
			slog.Error("[gateway] history lookup failed", "symbol", symbol, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
			return
		}
		resp := protocol.NewHistory(symbol, history)
		writeJSON(w, http.StatusOK, protocol.HistoryResponse{Symbol: resp.Symbol, History: resp.History})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		lag := hub.Latency.Snapshot()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"ws_clients": hub.ClientCount(),
			"uptime_sec": int64(time.Since(hub.startedAt).Seconds()),
			"fanout_lag": lag,
			"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
