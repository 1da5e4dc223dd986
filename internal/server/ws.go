package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mzmatch/mzmatch/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Progress frames carry no secrets and the UI may be served from
	// another port during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub broadcasts progress updates to connected websocket clients. Delivery is
// best effort: a client that cannot keep up is dropped, never blocking a
// matching run.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		logger:  logger,
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Broadcast sends the update to every connected client. The write loop runs
// under the lock: gorilla/websocket allows only one concurrent writer per
// connection, and Broadcast is called from every matching worker.
func (h *Hub) Broadcast(update models.ProgressUpdate) {
	h.mu.Lock()
	var dropped []*websocket.Conn
	for conn := range h.clients {
		if err := conn.WriteJSON(update); err != nil {
			h.logger.Debug("dropping websocket client", zap.Error(err))
			delete(h.clients, conn)
			dropped = append(dropped, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range dropped {
		_ = conn.Close()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	s.hub.add(conn)
	s.logger.Debug("websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	// Reader loop: clients only send pings or get disconnected, frames are
	// discarded. Exiting the loop unregisters the client.
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
