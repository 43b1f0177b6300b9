package websocket

import (
	"time"
)

// MessageType represents different types of feed messages
type MessageType string

const (
	MessageTypeSubscribe    MessageType = "subscribe"
	MessageTypeSubscribed   MessageType = "subscribed"
	MessageTypeUnsubscribe  MessageType = "unsubscribe"
	MessageTypeUnsubscribed MessageType = "unsubscribed"
	MessageTypeEvent        MessageType = "event"
	MessageTypeError        MessageType = "error"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
)

// Feed topics. Publishers use the same names.
const (
	TopicTrades      = "trades"
	TopicClaims      = "claims"
	TopicGraduations = "graduations"
)

var knownTopics = map[string]bool{
	TopicTrades:      true,
	TopicClaims:      true,
	TopicGraduations: true,
}

// Message is the envelope for everything sent over the feed
type Message struct {
	Type      MessageType `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      int         `json:"code,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConnectionStats represents feed connection statistics
type ConnectionStats struct {
	TotalConnections   int       `json:"total_connections"`
	ActiveConnections  int       `json:"active_connections"`
	TotalSubscriptions int       `json:"total_subscriptions"`
	MessagesSent       int64     `json:"messages_sent"`
	MessagesDropped    int64     `json:"messages_dropped"`
	LastUpdate         time.Time `json:"last_update"`
}
