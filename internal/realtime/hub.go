// Package realtime pushes queue changes and notifications to connected admin
// consoles and student apps over websockets.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
)

// EventNotification is the event name used when a notification is delivered live.
const EventNotification = "notification.created"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Consoles are served from a different origin; auth happens on the token.
		return true
	},
}

type Hub struct {
	connections map[int32]map[*Connection]bool

	register   chan *Connection
	unregister chan *Connection

	broadcast chan *Message

	mu sync.RWMutex
}

type Connection struct {
	ws      *websocket.Conn
	userID  int32
	isAdmin bool
	send    chan *Message
	hub     *Hub
}

type Message struct {
	UserID int32  `json:"user_id,omitempty"`
	Type   string `json:"type"`
	Data   any    `json:"data"`
	// admins routes the message to every admin connection instead of UserID.
	admins bool
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[int32]map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *Message, 256),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.RLock()
			var conns []*Connection
			for _, m := range h.connections {
				for c := range m {
					conns = append(conns, c)
				}
			}
			h.mu.RUnlock()

			// Close outside the lock so the pumps can unregister.
			for _, c := range conns {
				_ = c.ws.Close()
			}
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.userID] == nil {
				h.connections[conn.userID] = make(map[*Connection]bool)
			}
			h.connections[conn.userID][conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(conn)
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for userID, conns := range h.connections {
				if !message.admins && userID != message.UserID {
					continue
				}
				for conn := range conns {
					if message.admins && !conn.isAdmin {
						continue
					}
					select {
					case conn.send <- message:
					default:
						h.dropLocked(conn)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) dropLocked(conn *Connection) {
	conns, ok := h.connections[conn.userID]
	if !ok {
		return
	}
	if _, exists := conns[conn]; !exists {
		return
	}
	delete(conns, conn)
	close(conn.send)
	if len(conns) == 0 {
		delete(h.connections, conn.userID)
	}
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		logger.Warn("Hub broadcast channel is full, dropping message", "type", message.Type, "userID", message.UserID)
	}
}

// PublishToUser sends an event to every connection of userID.
func (h *Hub) PublishToUser(userID int32, event string, payload any) {
	h.enqueue(&Message{UserID: userID, Type: event, Data: payload})
}

// PublishToAdmins sends an event to every admin console.
func (h *Hub) PublishToAdmins(event string, payload any) {
	h.enqueue(&Message{Type: event, Data: payload, admins: true})
}

func (h *Hub) Name() string { return "websocket" }

// Notify delivers a persisted notification live. Offline users simply miss it.
func (h *Hub) Notify(ctx context.Context, account *domain.Account, note *domain.Notification) error {
	h.PublishToUser(note.UserID, EventNotification, note)
	return nil
}

// Connected reports how many sockets userID has open.
func (h *Hub) Connected(userID int32) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, userID int32, isAdmin bool) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", "userID", userID, "error", err)
		return
	}

	conn := &Connection{
		ws:      ws,
		userID:  userID,
		isAdmin: isAdmin,
		send:    make(chan *Message, 256),
		hub:     h,
	}

	h.register <- conn

	go conn.writePump()
	go conn.readPump()
}

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10
)

func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", "userID", c.userID, "error", err)
			}
			break
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(message); err != nil {
				logger.Warn("WebSocket write error", "userID", c.userID, "error", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
