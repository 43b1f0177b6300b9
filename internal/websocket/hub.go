package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Subscription represents a client subscription to a topic
type Subscription struct {
	Client *Client
	Topic  string
}

// Hub maintains the set of active clients and fans published events out to
// the clients subscribed to each topic.
type Hub struct {
	// Registered clients. A client's Send channel is closed only when it is
	// removed from this map, under mu.
	clients map[*Client]bool

	// Topic subscriptions: topic -> clients
	subscriptions map[string]map[*Client]bool

	Register    chan *Client
	Unregister  chan *Client
	Subscribe   chan *Subscription
	Unsubscribe chan *Subscription

	stats  ConnectionStats
	logger logrus.FieldLogger

	mu       sync.RWMutex
	stop     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a new feed hub
func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		Subscribe:     make(chan *Subscription),
		Unsubscribe:   make(chan *Subscription),
		logger:        logger,
		stop:          make(chan struct{}),
		stats:         ConnectionStats{LastUpdate: time.Now()},
	}
}

// Run handles registrations and subscriptions until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case sub := <-h.Subscribe:
			h.subscribeClient(sub)
		case sub := <-h.Unsubscribe:
			h.unsubscribeClient(sub)
		case <-h.stop:
			return
		}
	}
}

// send hands a request to the Run loop, giving up once the hub is stopped
func send[T any](h *Hub, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ActiveConnections = len(h.clients)
	h.stats.LastUpdate = time.Now()
	metrics.FeedClients.Set(float64(len(h.clients)))

	h.logger.WithFields(logrus.Fields{
		"client_id": client.ID,
		"active":    len(h.clients),
	}).Debug("Feed client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.removeLocked(client) {
		h.logger.WithFields(logrus.Fields{
			"client_id": client.ID,
			"active":    len(h.clients),
		}).Debug("Feed client unregistered")
	}
}

// removeLocked drops client from the hub and closes its Send channel.
// Callers hold mu.
func (h *Hub) removeLocked(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.Send)

	for topic, clients := range h.subscriptions {
		if _, subscribed := clients[client]; subscribed {
			delete(clients, client)
			h.stats.TotalSubscriptions--
			if len(clients) == 0 {
				delete(h.subscriptions, topic)
			}
		}
	}
	h.stats.ActiveConnections = len(h.clients)
	h.stats.LastUpdate = time.Now()
	metrics.FeedClients.Set(float64(len(h.clients)))
	return true
}

func (h *Hub) subscribeClient(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[sub.Client] {
		return
	}
	if h.subscriptions[sub.Topic] == nil {
		h.subscriptions[sub.Topic] = make(map[*Client]bool)
	}
	if !h.subscriptions[sub.Topic][sub.Client] {
		h.subscriptions[sub.Topic][sub.Client] = true
		h.stats.TotalSubscriptions++
		h.stats.LastUpdate = time.Now()
	}
}

func (h *Hub) unsubscribeClient(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, exists := h.subscriptions[sub.Topic]
	if !exists {
		return
	}
	if _, subscribed := clients[sub.Client]; subscribed {
		delete(clients, sub.Client)
		h.stats.TotalSubscriptions--
		h.stats.LastUpdate = time.Now()
		if len(clients) == 0 {
			delete(h.subscriptions, sub.Topic)
		}
	}
}

// Publish sends payload to every client subscribed to topic. It never blocks:
// a client whose buffer is full is disconnected.
func (h *Hub) Publish(topic string, payload interface{}) {
	data, err := json.Marshal(Message{
		Type:      MessageTypeEvent,
		Topic:     topic,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.WithError(err).WithField("topic", topic).Error("Failed to marshal feed event")
		return
	}

	h.mu.RLock()
	slow := make([]*Client, 0)
	sent := int64(0)
	for client := range h.subscriptions[topic] {
		select {
		case client.Send <- data:
			sent++
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	h.mu.Lock()
	for _, client := range slow {
		if h.removeLocked(client) {
			h.logger.WithField("client_id", client.ID).Warn("Dropped slow feed client")
		}
	}
	h.stats.MessagesSent += sent
	h.stats.MessagesDropped += int64(len(slow))
	h.stats.LastUpdate = time.Now()
	h.mu.Unlock()
}

// reply queues a direct response to one client. It reports false when the
// client is gone or its buffer is full.
func (h *Hub) reply(client *Client, msg Message) bool {
	msg.Timestamp = time.Now().UTC()
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		return false
	}
}

// GetStats returns current connection statistics
func (h *Hub) GetStats() ConnectionStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

// GetClientCount returns the number of active clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetSubscriberCount returns the number of clients subscribed to topic
func (h *Hub) GetSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[topic])
}

// Stop stops the hub and disconnects every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)

		// WritePump sees the closed Send channel and sends the close frame.
		h.mu.Lock()
		for client := range h.clients {
			h.removeLocked(client)
		}
		h.mu.Unlock()
	})
}
