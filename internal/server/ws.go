package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmfenton/plotdesk/internal/bus"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI is same-origin in production; the dev server proxies.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wireEvent is the JSON frame pushed to every connected client.
type wireEvent struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload,omitempty"`
}

// hub fans bus events out to websocket clients. Clients that cannot keep up
// are dropped rather than blocking the bus.
type hub struct {
	mu          sync.Mutex
	clients     map[string]*client
	unsubscribe func()
	closed      bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan wireEvent
}

func newHub(events *bus.Bus) *hub {
	h := &hub{clients: make(map[string]*client)}
	h.unsubscribe = events.Subscribe(func(e bus.Event) {
		h.broadcast(wireEvent{Topic: e.Topic(), Payload: e})
	})
	return h
}

func (h *hub) broadcast(e wireEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- e:
		default:
			// Slow consumer: drop the connection.
			slog.Debug("dropping slow websocket client", "client", id)
			close(c.send)
			delete(h.clients, id)
		}
	}
}

func (h *hub) close() {
	h.unsubscribe()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

// handleConnect upgrades the request and starts the client's pumps.
func (h *hub) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "err", err)
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan wireEvent, sendBufferSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c.id] = c
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// writePump pushes events and pings until the send channel closes.
func (h *hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

// readPump discards inbound frames; the feed is one-way. It exists to
// process control frames and detect disconnects.
func (h *hub) readPump(c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

// drop removes the client if it is still registered.
func (h *hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		close(c.send)
		delete(h.clients, c.id)
	}
}
