package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Envelope is the frame pushed to clients: a channel event plus payload.
type Envelope struct {
	Event     string    `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans envelopes out to named channels. A client subscribes to its own
// user channel and the channel of the room it sits in. Delivery is
// best-effort: a client with a full send buffer is dropped.
type Hub struct {
	clients    map[*Client]bool
	channels   map[string]map[*Client]bool
	broadcast  chan *channelMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

type channelMessage struct {
	Channel  string
	Envelope Envelope
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		channels:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *channelMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// RoomChannel and UserChannel build the channel names used across the
// backend. User ids pass through sanitization so arbitrary identifiers stay
// valid channel names.
func RoomChannel(roomID string) string { return "room-" + roomID }
func UserChannel(userID string) string { return "user-" + SanitizeID(userID) }

// SanitizeID replaces every character outside [A-Za-z0-9_-] with '-'.
func SanitizeID(id string) string {
	out := []byte(id)
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			out[i] = '-'
		}
	}
	return string(out)
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[Hub] shutting down")
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	for _, ch := range client.channels {
		if h.channels[ch] == nil {
			h.channels[ch] = make(map[*Client]bool)
		}
		h.channels[ch][client] = true
	}
	log.Printf("[Hub] client %s subscribed to %v", client.UserID, client.channels)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	for _, ch := range client.channels {
		if subs, ok := h.channels[ch]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	log.Printf("[Hub] client %s disconnected", client.UserID)
}

func (h *Hub) deliver(msg *channelMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.channels[msg.Channel]
	if !ok {
		return
	}

	data, err := json.Marshal(msg.Envelope)
	if err != nil {
		log.Printf("[Hub] marshal error on %s: %v", msg.Channel, err)
		return
	}

	for client := range subs {
		select {
		case client.send <- data:
		default:
			// Slow consumer; drop it rather than block the hub.
			close(client.send)
			delete(h.clients, client)
			delete(subs, client)
		}
	}
}

// Emit pushes an event onto a channel. Fire-and-forget: if the hub's queue
// is full the message is dropped.
func (h *Hub) Emit(channel, event string, payload any) {
	msg := &channelMessage{
		Channel:  channel,
		Envelope: Envelope{Event: event, Payload: payload, Timestamp: time.Now()},
	}
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("[Hub] dropped %s on %s: queue full", event, channel)
	}
}

// EmitRoom and EmitUser implement the broadcaster port used by the engine.
func (h *Hub) EmitRoom(roomID, event string, payload any) {
	h.Emit(RoomChannel(roomID), event, payload)
}

func (h *Hub) EmitUser(userID, event string, payload any) {
	h.Emit(UserChannel(userID), event, payload)
}

// Client is one websocket connection subscribed to a fixed channel set.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	UserID   string
	channels []string
}

// NewClient subscribes conn to the user's own channel plus the given room
// channel (when roomID is non-empty).
func NewClient(hub *Hub, conn *websocket.Conn, userID, roomID string) *Client {
	channels := []string{UserChannel(userID)}
	if roomID != "" {
		channels = append(channels, RoomChannel(roomID))
	}
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		UserID:   userID,
		channels: channels,
	}
}

// Register registers the client with the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

// ReadPump drains the connection for keepalive; clients act through the HTTP
// surface, so inbound frames other than pings are ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Hub] read error: %v", err)
			}
			break
		}
	}
}

// WritePump pumps envelopes from the hub to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush queued messages into the same frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
