package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/sirupsen/logrus"
)

// Server serves the live event feed
type Server struct {
	Hub      *Hub
	upgrader websocket.Upgrader
	logger   logrus.FieldLogger
}

// NewServer creates a new feed server
func NewServer(logger logrus.FieldLogger) *Server {
	return &Server{
		Hub: NewHub(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed is public and read-only.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Start starts the hub loop
func (s *Server) Start() {
	go s.Hub.Run()
	s.logger.Info("Feed server started")
}

// Stop disconnects all clients
func (s *Server) Stop() {
	s.Hub.Stop()
	s.logger.Info("Feed server stopped")
}

// Publish fans an event out to the topic's subscribers
func (s *Server) Publish(topic string, payload interface{}) {
	s.Hub.Publish(topic, payload)
}

// HandleFeed upgrades the connection. Topics listed in the "topics" query
// parameter are subscribed immediately; more can be added over the socket.
func (s *Server) HandleFeed(c *gin.Context) {
	var topics []string
	if raw := c.Query("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if !knownTopics[t] {
				apperrors.Respond(c, apperrors.ErrInvalidRequest.WithReason("unknown topic %q", t))
				return
			}
			topics = append(topics, t)
		}
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Feed upgrade failed")
		return
	}

	client := NewClient(conn, s.Hub, uuid.NewString())
	if !send(s.Hub, s.Hub.Register, client) {
		conn.Close()
		return
	}
	for _, t := range topics {
		client.subscribe(t)
	}

	go client.WritePump()
	go client.ReadPump()
}

// HandleStats returns feed connection statistics
func (s *Server) HandleStats(c *gin.Context) {
	stats := s.Hub.GetStats()
	stats.LastUpdate = time.Now()
	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers feed routes with the Gin router
func (s *Server) RegisterRoutes(router *gin.Engine) {
	ws := router.Group("/ws")
	{
		ws.GET("/feed", s.HandleFeed)
		ws.GET("/stats", s.HandleStats)
	}
}
