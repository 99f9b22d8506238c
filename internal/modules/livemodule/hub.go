// Package livemodule pushes gallery change notifications to connected
// browsers over websockets.
package livemodule

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lumengallery/lumen/internal/logger"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The gallery UI is served from arbitrary local origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Notification is the message pushed to clients. The frontend refetches
// the current page when it sees imagesUpdated.
type Notification struct {
	Type  string `json:"type"`
	Image string `json:"image,omitempty"`
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(n)
}

// Hub tracks connected websocket clients and fans notifications out to
// all of them. A client whose write fails is dropped immediately.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Handle upgrades an HTTP request and keeps the connection registered
// until the peer goes away. Inbound messages are drained and ignored.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed: %v", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	logger.Debug("Websocket client connected: %s", c.id)

	go h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.drop(c.id)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
		logger.Debug("Websocket client disconnected: %s", id)
	}
}

// Broadcast sends a notification to every connected client.
func (h *Hub) Broadcast(n Notification) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(n); err != nil {
			logger.Warn("Dropping websocket client %s: %v", c.id, err)
			h.drop(c.id)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}
