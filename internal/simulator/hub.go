package simulator

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Broadcaster fans messages out to viewers.
type Broadcaster interface {
	Publish(msg Message)
	Viewers() int
}

// Hub keeps the websocket connections of all viewers. Messages are delivered
// to every viewer in publish order; a viewer that cannot keep up is dropped.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	clients   map[string]*client
	closed    bool
	onMessage func(ClientMessage)
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

var _ Broadcaster = (*Hub)(nil)

// NewHub returns an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// OnMessage sets the handler for frames received from viewers.
func (h *Hub) OnMessage(fn func(ClientMessage)) {
	h.mu.Lock()
	h.onMessage = fn
	h.mu.Unlock()
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues msg for every viewer. It never blocks.
func (h *Hub) Publish(msg Message) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal websocket message", slog.String("type", msg.Type), slog.String("error", err.Error()))
		return
	}

	var slow []*client
	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow viewer", slog.String("client_id", c.id))
		h.drop(c)
	}
}

// ServeHTTP upgrades the request and serves the viewer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("viewer connected", slog.String("client_id", c.id), slog.Int("viewers", n))

	go h.writePump(c)
	h.readPump(c)
}

// Close disconnects every viewer and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	removed := false
	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
		removed = true
	}
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	if removed {
		h.log.Info("viewer disconnected", slog.String("client_id", c.id), slog.Int("viewers", n))
	}
}

func (h *Hub) readPump(c *client) {
	defer h.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("viewer read error", slog.String("client_id", c.id), slog.String("error", err.Error()))
			}
			return
		}

		h.mu.RLock()
		fn := h.onMessage
		h.mu.RUnlock()
		if fn != nil {
			fn(msg)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		case <-c.done:
			return
		}
	}
}
