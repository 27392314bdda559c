package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/firstbites/firstbites/internal/allergen"
	"github.com/firstbites/firstbites/internal/metrics"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins — callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SnapshotSource supplies the current snapshot for immediate delivery to
// newly connected clients. The exposure cache satisfies it.
type SnapshotSource interface {
	Current() (allergen.Snapshot, bool)
}

// updateMessage is the JSON envelope sent to clients.
type updateMessage struct {
	Type       string            `json:"type"`
	Records    []allergen.Record `json:"records"`
	ComputedAt time.Time         `json:"computed_at"`
}

// Hub manages WebSocket client connections and fans each published snapshot
// out to all of them.
type Hub struct {
	source SnapshotSource

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that reads the connect-time snapshot from source.
func New(source SnapshotSource) *Hub {
	return &Hub{
		source:  source,
		clients: make(map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Publish delivers snap to every registered client. Safe to call from any
// goroutine; the write itself happens on each client's writer goroutine, so
// Publish never waits on a slow connection. Clients whose buffer is full are
// disconnected rather than allowed to stall the rest.
func (h *Hub) Publish(snap allergen.Snapshot) {
	data, err := marshalUpdate(snap)
	if err != nil {
		slog.Error("ws: marshal update failed", "err", err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			slog.Warn("ws: client buffer full — disconnecting", "client", c.id)
			h.unregister(c)
		}
	}
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// The current snapshot, if one exists, is sent immediately on connect.
// Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	if snap, ok := h.source.Current(); ok {
		if data, err := marshalUpdate(snap); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}
	}

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func marshalUpdate(snap allergen.Snapshot) ([]byte, error) {
	return json.Marshal(updateMessage{
		Type:       "update",
		Records:    snap.Records,
		ComputedAt: snap.ComputedAt,
	})
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectedClients.Set(float64(n))
	slog.Info("ws: client connected", "client", c.id, "total", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.ConnectedClients.Set(float64(n))
		slog.Info("ws: client disconnected", "client", c.id, "total", n)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.ConnectedClients.Set(0)
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process control messages (pong,
// close) and detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
