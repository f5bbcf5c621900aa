// Package logsink fans out script print() output to connected websocket
// clients — the channel a script's log messages (the old Server.webSocketSend
// "lua"/"log" channel) reach developers through.
package logsink

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"homescript-controller/internal/logger"
)

// Message is the envelope broadcast to every connected client.
type Message struct {
	Channel string `json:"channel"`
	Topic   string `json:"topic"`
	Script  string `json:"script"`
	Payload string `json:"payload"`
}

// client wraps a single websocket connection with the mutex gorilla's
// single-writer-at-a-time contract requires.
type client struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

func (c *client) write(msg Message) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.conn.WriteJSON(msg)
}

// Hub accepts websocket connections and broadcasts log messages to all of
// them, dropping any client whose connection has gone bad.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*client]struct{}
}

// NewHub creates an empty log-sink hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades an incoming request to a websocket and registers it as
// a broadcast target until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("logsink: websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	// Drain and discard inbound frames; this channel is broadcast-only but
	// we must keep reading to notice the peer closing the connection.
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	_ = c.conn.Close()
}

// Log broadcasts a formatted script log line to every connected client,
// mirroring the script host's print() -> websocket "lua"/"log" path.
func (h *Hub) Log(script, payload string) {
	msg := Message{Channel: "lua", Topic: "log", Script: script, Payload: payload}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.write(msg); err != nil {
			h.remove(c)
		}
	}
}

// ListenAndServe starts an HTTP server exposing the hub at /ws.
func (h *Hub) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	logger.Info("log sink listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
