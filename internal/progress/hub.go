// Package progress serves a live Snapshot fan-out over
// WebSocket so a dashboard can watch a run without waiting for its
// artifacts to be written.
package progress

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/kairos-alloy/alloy/pkg/types"
)

// Snapshot is one progress update broadcast to connected clients.
type Snapshot struct {
	RunID        string              `json:"run_id"`
	BarIndex     int                 `json:"bar_index"`
	TotalBars    int                 `json:"total_bars"`
	TimestampUTC int64               `json:"timestamp_utc"`
	Equity       types.EquityPoint   `json:"equity"`
	Status       types.RunStatus     `json:"status"`
}

// Hub fans out progress snapshots to WebSocket subscribers.
type Hub struct {
	mu       sync.RWMutex
	log      *zap.Logger
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]struct{}
}

// NewHub constructs a progress Hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns a CORS-wrapped http.Handler exposing GET /progress
// (WebSocket upgrade) and GET /healthz.
func (h *Hub) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/progress", h.handleWebSocket).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(router)
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.log != nil {
			h.log.Warn("progress websocket upgrade failed", zap.Error(err))
		}
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go h.drainClient(conn)
}

// drainClient discards incoming frames until the client disconnects;
// this hub only pushes, it never reads application messages.
func (h *Hub) drainClient(conn *websocket.Conn) {
	defer h.removeClient(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Broadcast pushes snap to every connected client, dropping any
// connection that fails to accept the write.
func (h *Hub) Broadcast(snap Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.removeClient(c)
		}
	}
}
