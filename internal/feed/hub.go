package feed

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Client is one websocket subscriber of the feed.
type Client struct {
	ID           string
	UserID       string
	SecretariaID string
	// Global clients receive entries of every secretaria.
	Global bool
	Conn   *websocket.Conn
	Send   chan Entry
}

func (c *Client) accepts(entry Entry) bool {
	return c.Global || entry.SecretariaID == c.SecretariaID
}

// Hub fans committed feed entries out to the connected clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Entry
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	connected  atomic.Int64
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewHub starts a hub. Close stops it.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Entry, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
	go h.run()
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Publish queues entry for delivery. It never blocks the caller.
func (h *Hub) Publish(entry Entry) {
	select {
	case h.broadcast <- entry:
	default:
		h.logger.Warn("Feed broadcast channel full, dropping entry",
			zap.String("entry_id", entry.ID.String()),
			zap.String("tipo", string(entry.Tipo)))
	}
}

// Serve upgrades the request and streams matching entries until the client leaves.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID, secretariaID string, global bool) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	client := &Client{
		ID:           uuid.NewString(),
		UserID:       userID,
		SecretariaID: secretariaID,
		Global:       global,
		Conn:         conn,
		Send:         make(chan Entry, sendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.stop:
		conn.Close()
		return fmt.Errorf("feed hub is closed")
	}

	go h.writePump(client)
	go h.readPump(client)
	return nil
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	return int(h.connected.Load())
}

// Close disconnects every client and stops the hub.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// readPump only watches for the client going away; the feed is one-way.
func (h *Hub) readPump(c *Client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stop:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Feed client read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case entry, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(entry); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.connected.Add(1)
			h.logger.Debug("Feed client registered",
				zap.String("client_id", c.ID), zap.String("user_id", c.UserID))

		case c := <-h.unregister:
			h.drop(c)

		case entry := <-h.broadcast:
			for c := range h.clients {
				if !c.accepts(entry) {
					continue
				}
				select {
				case c.Send <- entry:
				default:
					h.drop(c)
				}
			}

		case <-h.stop:
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.Send)
	h.connected.Add(-1)
}
