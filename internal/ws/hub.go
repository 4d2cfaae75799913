// Package ws delivers real-time notifications to connected browsers. It
// is strictly downstream of the core's publish boundary: a Redis
// subscriber bridge feeds the hub, and the hub fans messages out to the
// WebSocket connections subscribed to each recipient's channel.
package ws

import (
	"net/http"
	"sync"

	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub tracks connections per channel key (one key per recipient).
// All operations are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

type client struct {
	channel string
	send    chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{})}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.channel] == nil {
		h.clients[c.channel] = make(map[*client]struct{})
	}
	h.clients[c.channel][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.clients[c.channel]
	if !ok {
		return
	}
	if _, ok := subscribers[c]; !ok {
		return
	}
	delete(subscribers, c)
	if len(subscribers) == 0 {
		delete(h.clients, c.channel)
	}
	close(c.send)
}

// Broadcast sends payload to every connection subscribed to channel. A
// connection with a full buffer is skipped rather than blocking the hub.
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[channel] {
		select {
		case c.send <- payload:
		default:
		}
	}
}

// ConnectionCount returns the number of connections on a channel.
func (h *Hub) ConnectionCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[channel])
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // fronting proxy enforces origin policy
	},
}

// Handler upgrades HTTP connections and binds each one to the channel
// derived from the request by channelFor.
type Handler struct {
	hub        *Hub
	channelFor func(r *http.Request) (string, error)
	log        zerolog.Logger
}

func NewHandler(hub *Hub, channelFor func(r *http.Request) (string, error), log zerolog.Logger) *Handler {
	return &Handler{hub: hub, channelFor: channelFor, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel, err := h.channelFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		channel: channel,
		send:    make(chan []byte, 256),
	}
	h.hub.register(c)

	go h.writePump(c, conn)
	go h.readPump(c, conn)
}

// readPump discards inbound frames; the connection is one-way. It exists
// to detect closure and unregister the client.
func (h *Handler) readPump(c *client, conn *gorillaws.Conn) {
	defer func() {
		h.hub.unregister(c)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(c *client, conn *gorillaws.Conn) {
	defer conn.Close()

	for payload := range c.send {
		if err := conn.WriteMessage(gorillaws.TextMessage, payload); err != nil {
			return
		}
	}
}
