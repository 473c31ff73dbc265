// Package live streams detections to websocket subscribers (dashboards,
// operators tailing a machine).
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ghalamif/accelsentry/internal/domain"
	"github.com/ghalamif/accelsentry/internal/ports"
)

const broadcastBuffer = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the envelope written to subscribers.
type Message struct {
	Type    string           `json:"type"`
	Payload domain.Detection `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts detections.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	obs        ports.Observability

	mu      sync.RWMutex
	running bool
}

func NewHub(obs ports.Observability) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		obs:        obs,
	}
}

// Run dispatches registrations and broadcasts until ctx is cancelled, then
// closes every client. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.running = false
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.obs.LogInfo("live_client_registered", ports.Field{Key: "remote", Value: c.remote})

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow consumer
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Name() string { return "live" }

// WriteBatch never blocks the scoring pipeline: when the broadcast buffer is
// full the detection is skipped for live subscribers.
func (h *Hub) WriteBatch(dets []domain.Detection) error {
	for _, d := range dets {
		msg, err := json.Marshal(Message{Type: "detection", Payload: d})
		if err != nil {
			return err
		}
		select {
		case h.broadcast <- msg:
		default:
		}
	}
	return nil
}

// ServeHTTP upgrades the connection and subscribes it to detections.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		http.Error(w, "live feed not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.obs.LogError("live_upgrade_failed", err)
		return
	}

	c := &Client{hub: h, conn: conn, send: make(chan []byte, 64), remote: conn.RemoteAddr().String()}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

var _ ports.ResultSink = (*Hub)(nil)
