package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalscan/scanner/internal/events"
	"github.com/signalscan/scanner/pkg/logger"
)

const (
	writeWait     = 10 * time.Second
	clientBacklog = 64
	maxClients    = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the dashboard is served from a different origin in development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Envelope wraps every pushed event with its type tag
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// EventHub fans the internal event bus out to websocket subscribers.
// Slow clients are disconnected rather than allowed to back up the bus.
type EventHub struct {
	bus    *events.Bus
	logger *logger.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Envelope
}

// NewEventHub creates a hub over the given bus
func NewEventHub(bus *events.Bus, log *logger.Logger) *EventHub {
	return &EventHub{
		bus:     bus,
		logger:  log,
		clients: make(map[*websocket.Conn]chan Envelope),
	}
}

// Run drains the bus and broadcasts until the context is cancelled
func (h *EventHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case ev := <-h.bus.Snapshots():
			h.broadcast(Envelope{Type: "snapshot", Data: ev})
		case ev := <-h.bus.News():
			h.broadcast(Envelope{Type: "news", Data: ev})
		}
	}
}

// Serve upgrades the connection and streams events until the client leaves
// GET /ws/events
func (h *EventHub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	send := make(chan Envelope, clientBacklog)
	if !h.register(conn, send) {
		conn.Close()
		return
	}
	h.logger.WithField("remote", r.RemoteAddr).Debug("Websocket client connected")

	go h.writeLoop(conn, send)
	h.readLoop(conn)
}

func (h *EventHub) register(conn *websocket.Conn, send chan Envelope) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) >= maxClients {
		h.logger.Warn("Websocket client limit reached")
		return false
	}
	h.clients[conn] = send
	return true
}

func (h *EventHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
}

// broadcast queues the envelope to every client; a full backlog drops
// the client instead of blocking the pump
func (h *EventHub) broadcast(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, send := range h.clients {
		select {
		case send <- env:
		default:
			delete(h.clients, conn)
			close(send)
			conn.Close()
			h.logger.Warn("Dropped slow websocket client")
		}
	}
}

func (h *EventHub) writeLoop(conn *websocket.Conn, send <-chan Envelope) {
	defer conn.Close()

	for env := range send {
		payload, err := json.Marshal(env)
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// readLoop discards inbound frames and detects disconnects
func (h *EventHub) readLoop(conn *websocket.Conn) {
	defer h.unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount reports the connected subscriber count
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *EventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, send := range h.clients {
		delete(h.clients, conn)
		close(send)
		conn.Close()
	}
}
