package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Client represents a feed connection
type Client struct {
	ID   string
	Conn *websocket.Conn
	Hub  *Hub
	Send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]bool
}

// NewClient creates a new feed client
func NewClient(conn *websocket.Conn, hub *Hub, id string) *Client {
	return &Client{
		ID:            id,
		Conn:          conn,
		Hub:           hub,
		Send:          make(chan []byte, sendBuffer),
		subscriptions: make(map[string]bool),
	}
}

// ReadPump reads subscription requests until the connection drops
func (c *Client) ReadPump() {
	defer func() {
		send(c.Hub, c.Hub.Unregister, c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithError(err).WithField("client_id", c.ID).Debug("Feed connection closed")
			}
			return
		}
		c.handleMessage(message)
	}
}

// WritePump writes queued messages and keepalive pings to the connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("invalid message format", http.StatusBadRequest)
		return
	}

	switch msg.Type {
	case MessageTypeSubscribe:
		c.subscribe(msg.Topic)
	case MessageTypeUnsubscribe:
		c.unsubscribe(msg.Topic)
	case MessageTypePing:
		c.Hub.reply(c, Message{Type: MessageTypePong})
	default:
		c.sendError("unknown message type", http.StatusBadRequest)
	}
}

func (c *Client) subscribe(topic string) {
	if !knownTopics[topic] {
		c.sendError("unknown topic", http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	c.subscriptions[topic] = true
	c.mu.Unlock()

	if send(c.Hub, c.Hub.Subscribe, &Subscription{Client: c, Topic: topic}) {
		c.Hub.reply(c, Message{Type: MessageTypeSubscribed, Topic: topic})
	}
}

func (c *Client) unsubscribe(topic string) {
	c.mu.Lock()
	delete(c.subscriptions, topic)
	c.mu.Unlock()

	if send(c.Hub, c.Hub.Unsubscribe, &Subscription{Client: c, Topic: topic}) {
		c.Hub.reply(c, Message{Type: MessageTypeUnsubscribed, Topic: topic})
	}
}

func (c *Client) sendError(errorMsg string, code int) {
	c.Hub.reply(c, Message{Type: MessageTypeError, Error: errorMsg, Code: code})
}

// IsSubscribed checks if the client asked for topic
func (c *Client) IsSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscriptions[topic]
}
