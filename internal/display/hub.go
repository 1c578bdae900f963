package display

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ColonelBlimp/handmorse/internal/logging"
	"github.com/ColonelBlimp/handmorse/internal/metrics"
	"github.com/ColonelBlimp/handmorse/internal/recovery"
)

const writeTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local display pages
	},
}

// hubClient is one browser connection with its own writer goroutine.
type hubClient struct {
	conn *websocket.Conn
	box  *mailbox
	done chan struct{}
}

// Hub broadcasts decoder state to websocket clients as JSON
// ({"signal":"..","sentence":".."}). Each client gets the latest state on
// connect and then every change; slow clients only ever see the newest state.
type Hub struct {
	metrics *metrics.Metrics
	log     zerolog.Logger
	encode  func(any) ([]byte, error)

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	latest  Update
	closed  bool
}

// NewHub creates an empty hub. A nil m records to metrics.Default.
func NewHub(m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.Default
	}
	return &Hub{
		metrics: m,
		log:     logging.WithComponent("display-hub"),
		encode:  json.Marshal,
		clients: make(map[*hubClient]struct{}),
	}
}

// Show records u as the latest state and queues it for every client.
func (h *Hub) Show(u Update) {
	h.mu.Lock()
	changed := u != h.latest
	h.latest = u
	h.mu.Unlock()

	if !changed {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.box.put(u)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams updates until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := &hubClient{conn: conn, box: newMailbox(), done: make(chan struct{})}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[c] = struct{}{}
	c.box.put(h.latest)
	h.mu.Unlock()
	h.metrics.DisplayClients.Inc()
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("display client connected")

	go func() {
		if recovery.Guard("display-hub", func() { h.write(c) }) {
			// Unblocks the read loop below.
			_ = conn.Close()
		}
	}()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.done)
		h.metrics.DisplayClients.Dec()
		h.log.Debug().Str("remote", r.RemoteAddr).Msg("display client disconnected")
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) write(c *hubClient) {
	for {
		select {
		case <-c.done:
			return
		case u := <-c.box.ch:
			msg, err := h.encode(u)
			if err != nil {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// Unblocks the read loop in ServeHTTP.
				_ = c.conn.Close()
				return
			}
		}
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		_ = c.conn.Close()
	}
	return nil
}
