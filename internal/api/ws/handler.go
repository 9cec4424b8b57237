package ws

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/events"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/infrastructure/monitoring"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	bufferSize = 64
)

// message is what clients may send
type message struct {
	Type string `json:"type"`
}

// Handler streams lifecycle events over WebSocket connections
type Handler struct {
	hub      *events.Hub
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a handler fanning out hub. Browser clients are limited
// to origins; an empty list allows any.
func NewHandler(hub *events.Hub, metrics *monitoring.Metrics, origins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:     hub,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(origins) == 0 || slices.Contains(origins, origin)
			},
		},
		logger: logger,
	}
}

// HandleConnection upgrades the request and forwards events until the
// client goes away. ?environment=<handle> limits the stream to one
// environment.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	filter := c.Query("environment")
	stream, cancel := h.hub.Subscribe(bufferSize)
	defer cancel()

	h.metrics.IncEventSubscribers()
	defer h.metrics.DecEventSubscribers()

	h.logger.Debug("Event subscriber connected", zap.String("remote", c.ClientIP()), zap.String("environment", filter))

	pongs := make(chan struct{}, 1)
	closed := make(chan struct{})
	go h.read(conn, pongs, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := h.send(conn, gin.H{"type": "system", "message": "subscribed"}); err != nil {
		return
	}

	for {
		select {
		case e, ok := <-stream:
			if !ok {
				return
			}
			if filter != "" && e.Environment != filter {
				continue
			}
			if err := h.send(conn, gin.H{"type": "event", "event": e}); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-pongs:
			if err := h.send(conn, gin.H{"type": "pong"}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// read consumes client messages. Only ping is understood; the connection
// ends when reading fails.
func (h *Handler) read(conn *websocket.Conn, pongs chan<- struct{}, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "ping":
			select {
			case pongs <- struct{}{}:
			default:
			}
		default:
			h.logger.Debug("Ignoring WebSocket message", zap.String("type", msg.Type))
		}
	}
}

// send writes one JSON message. Only the HandleConnection goroutine writes.
func (h *Handler) send(conn *websocket.Conn, data any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(data)
}
