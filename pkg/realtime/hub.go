package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"knowledgecheckr/internal/auth"
)

// Message is the envelope for every event pushed over a feed connection.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Authorize decides whether a user may watch a check's attempt feed.
// Wired to the collaborative-permissions predicate in main.
type Authorize func(shareKey, userID string) bool

// Hub fans attempt lifecycle events out to the owners and collaborators
// watching a check, keyed by share key.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]map[*client]bool
	register   chan *client
	unregister chan *client
	authorize  Authorize
	log        *zap.SugaredLogger
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	shareKey string
}

func NewHub(authorize Authorize, log *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		authorize:  authorize,
		log:        log,
	}
}

// Run owns the room bookkeeping; call it once in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.shareKey] == nil {
				h.rooms[c.shareKey] = make(map[*client]bool)
			}
			h.rooms[c.shareKey][c] = true
			h.mu.Unlock()
			h.log.Debugw("feed client joined", "share_key", c.shareKey)

		case c := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[c.shareKey]; ok {
				if room[c] {
					delete(room, c)
					close(c.send)
					if len(room) == 0 {
						delete(h.rooms, c.shareKey)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast pushes an event to every watcher of the check. Slow consumers
// are dropped rather than blocking the caller.
func (h *Hub) Broadcast(shareKey, event string, data interface{}) {
	payload, err := json.Marshal(Message{Type: event, Data: data})
	if err != nil {
		h.log.Warnw("failed to marshal feed event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	room := h.rooms[shareKey]
	clients := make([]*client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warnw("feed client too slow, dropping", "share_key", shareKey)
			go func(c *client) { h.unregister <- c }(c)
		}
	}
}

// HandleWebSocket upgrades GET /ws/checks/{shareKey} for authorized editors.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	shareKey := mux.Vars(r)["shareKey"]
	userID, _ := auth.UserID(r.Context())

	if h.authorize != nil && !h.authorize(shareKey, userID) {
		http.Error(w, "not allowed to watch this check", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "share_key", shareKey, "error", err)
		return
	}

	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 16),
		shareKey: shareKey,
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
