package web

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Hub fans rendered panel updates out to the live connections of each
// session.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// client is one websocket connection.
type client struct {
	conn *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	version uint64
	closed  bool
}

func newHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{})}
}

// Count returns the number of connections open for a session.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Total returns the number of open connections across sessions.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, cs := range h.clients {
		n += len(cs)
	}
	return n
}

// Publish sends msg, rendered at version, to every connection of a
// session. Connections that already got a newer version skip it.
func (h *Hub) Publish(sessionID string, version uint64, msg []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[sessionID]))
	for c := range h.clients[sessionID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.offer(version, msg) {
			// Outgoing buffer is full; drop the client.
			h.unregister(sessionID, c)
		}
	}
}

// serve upgrades the request and streams updates for sessionID until the
// connection closes. initial is sent right after the upgrade.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, sessionID string, version uint64, initial []byte) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		log.Printf("Failed to upgrade live connection: %v", err)
		return
	}

	c := &client{
		conn:    conn,
		send:    make(chan []byte, sendBufSize),
		version: version,
	}
	c.send <- initial
	h.register(sessionID, c)
	defer h.unregister(sessionID, c)

	go c.writePump()
	c.readPump()
}

func (h *Hub) register(sessionID string, c *client) {
	h.mu.Lock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*client]struct{})
	}
	h.clients[sessionID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(sessionID string, c *client) {
	h.mu.Lock()
	if cs, ok := h.clients[sessionID]; ok {
		if _, ok := cs[c]; ok {
			delete(cs, c)
			c.close()
		}
		if len(cs) == 0 {
			delete(h.clients, sessionID)
		}
	}
	h.mu.Unlock()
}

// closeSession disconnects every client of a session.
func (h *Hub) closeSession(sessionID string) {
	h.mu.Lock()
	for c := range h.clients[sessionID] {
		c.close()
	}
	delete(h.clients, sessionID)
	h.mu.Unlock()
}

// offer queues msg unless the client already has a newer version. It
// returns false when the queue is full.
func (c *client) offer(version uint64, msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || version <= c.version {
		return true
	}
	select {
	case c.send <- msg:
		c.version = version
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump forwards queued messages to the connection and sends periodic
// pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames and detects disconnects. Blocks until
// the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
