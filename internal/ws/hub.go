package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionGone is returned by Emit when the target connection is no
// longer registered.
var ErrConnectionGone = errors.New("connection is gone")

const writeWait = 10 * time.Second

// Envelope is the frame format used in both directions.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // gorilla allows one concurrent writer
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub keeps the live WebSocket connections keyed by connection id and
// delivers events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

// Register adds a connection under connID.
func (h *Hub) Register(connID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[connID] = &client{conn: conn}
}

// Unregister removes connID.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connID)
}

// Emit writes one event to connID. A failed write closes the connection;
// its read loop then runs the disconnect path.
func (h *Hub) Emit(connID, event string, payload any) error {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrConnectionGone
	}

	if err := c.write(Envelope{Event: event, Data: payload}); err != nil {
		c.conn.Close()
		return err
	}
	return nil
}

// CloseAll sends a close frame to every connection and closes it. Used on
// shutdown, since http.Server.Shutdown does not track hijacked connections.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range h.clients {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.mu.Unlock()
		c.conn.Close()
	}
}
