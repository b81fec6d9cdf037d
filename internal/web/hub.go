package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/proxtrend/internal/metrics"
	"github.com/sweeney/proxtrend/internal/status"
)

const (
	writeWait   = 2 * time.Second
	eventBuffer = 64
)

// Hub pushes status snapshots to websocket clients whenever the dashboard
// reports a change.
type Hub struct {
	tracker  *status.Tracker
	logger   *slog.Logger
	upgrader websocket.Upgrader
	events   chan string

	mu      sync.RWMutex
	clients map[*wsClient]bool
}

// wsClient serialises writes; a websocket connection allows one writer.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// NewHub creates a hub reading snapshots from tracker.
func NewHub(tracker *status.Tracker, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		tracker: tracker,
		logger:  logger.With("component", "ws"),
		upgrader: websocket.Upgrader{
			// Same-site dashboard on a plant network; no auth.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		events:  make(chan string, eventBuffer),
		clients: make(map[*wsClient]bool),
	}
}

// Notify queues event for broadcast. Events are dropped when the queue is
// full; the next one carries the latest snapshot anyway.
func (h *Hub) Notify(event string) {
	select {
	case h.events <- event:
	default:
	}
}

// Run broadcasts queued events until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("closing websocket clients", "clients", h.Clients())
			return
		case event := <-h.events:
			h.broadcast(status.FormatEvent(h.tracker.Snapshot(), event))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &wsClient{conn: conn}

	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.SetWSClients(n)
	h.logger.Debug("client connected", "remote_addr", r.RemoteAddr)

	if err := c.write(status.FormatEvent(h.tracker.Snapshot(), "hello")); err != nil {
		h.remove(c)
		return
	}

	// Reads only detect disconnects.
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.logger.Debug("dropping websocket client", "error", err)
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
		metrics.SetWSClients(n)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]bool)
	h.mu.Unlock()
	for c := range clients {
		c.conn.Close()
	}
	metrics.SetWSClients(0)
}
