package websockets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type client struct {
	userID string
	conn   *websocket.Conn
}

// Hub tracks websocket connections held by this process and publishes to
// them directly. It is used by the local server.
type Hub struct {
	mu      sync.Mutex
	clients map[string]client
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]client)}
}

// Attach registers a connection for userID.
func (h *Hub) Attach(connectionID, userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[connectionID] = client{userID: userID, conn: conn}
}

// Detach forgets a connection.
func (h *Hub) Detach(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connectionID)
}

// Len reports the number of attached connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish writes the message to every attached connection whose user is a
// recipient. Connections that fail to accept the write are dropped.
func (h *Hub) Publish(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		if !addressed(message, c.userID) {
			continue
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Info("dropping local connection after failed write", "connectionId", id, "error", err)
			_ = c.conn.Close()
			delete(h.clients, id)
		}
	}
	return nil
}

func addressed(message Message, userID string) bool {
	return len(message.Recipients) == 0 || slices.Contains(message.Recipients, userID)
}
