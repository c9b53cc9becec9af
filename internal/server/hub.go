package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/diarist/internal/models"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 10 * time.Second
	pongWait     = 3 * pingInterval
	sendBuffer   = 16
)

// DiaryEvent is pushed to a user's sockets when one of their diaries is written.
type DiaryEvent struct {
	UserID    string `json:"user_id"`
	DiaryDate string `json:"diary_date"`
	Emotion   string `json:"emotion"`
}

// Hub fans diary events out to the WebSocket connections of each user.
type Hub struct {
	upgrader websocket.Upgrader
	loc      *time.Location
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// NewHub creates a hub formatting diary days in loc.
func NewHub(loc *time.Location, logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local dev
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		loc:     loc,
		logger:  logger,
		clients: make(map[string]map[*wsClient]struct{}),
	}
}

// Broadcast sends d to every socket of its user. Slow sockets drop the event.
func (h *Hub) Broadcast(d models.Diary) {
	msg, err := json.Marshal(DiaryEvent{
		UserID:    d.UserID,
		DiaryDate: models.FormatDay(d.DiaryDate, h.loc),
		Emotion:   d.Emotion,
	})
	if err != nil {
		h.logger.Error("failed to encode diary event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[d.UserID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping diary event for slow socket", "user_id", d.UserID)
		}
	}
}

// Clients returns the number of open sockets for userID.
func (h *Hub) Clients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// ServeWS upgrades the request and streams the user's diary events until the
// client disconnects or the hub closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	c := &wsClient{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.logger.Debug("websocket connected", "user_id", userID)

	go c.writePump()
	c.readPump()

	h.unregister(c)
	h.logger.Debug("websocket disconnected", "user_id", userID)
}

// Close disconnects every socket.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for userID, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, userID)
	}
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.userID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// readPump discards client messages and keeps the connection alive via pongs.
func (c *wsClient) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
