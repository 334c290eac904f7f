package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/iamasit07/hextron/backend/internal/domain"
	"github.com/iamasit07/hextron/backend/pkg/uid"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Registry is the part of the match registry the gateway drives.
type Registry interface {
	Join(connID string, req domain.JoinRequest) (*domain.Match, error)
	RouteMove(connID string, req domain.MoveRequest) error
	RouteSetup(connID string, req domain.ReadyRequest) error
	Disconnect(connID string)
}

// Handler manages WebSocket dependencies
type Handler struct {
	ConnManager *ConnectionManager
	Registry    Registry
	Upgrader    websocket.Upgrader
}

func NewHandler(cm *ConnectionManager, registry Registry, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &Handler{
		ConnManager: cm,
		Registry:    registry,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleWebSocket upgrades the request and serves the connection until it closes
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("[WS] Upgrade error: %v", err)
		return
	}

	h.handleConnection(conn)
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (h *Handler) handleConnection(conn *websocket.Conn) {
	connID := uid.GenerateConnectionID()
	h.ConnManager.AddConnection(connID, conn)
	log.Infof("[WS] Connection %s opened from %s", connID, conn.RemoteAddr())

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	go h.keepAlive(connID, done)

	defer func() {
		close(done)
		h.Registry.Disconnect(connID)
		h.ConnManager.RemoveConnection(connID)
		log.Infof("[WS] Connection %s closed", connID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("[WS] Connection %s dropped: %v", connID, err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(connID, domain.ErrTypeInvalidInput, "malformed frame")
			continue
		}
		h.processMessage(connID, msg)
	}
}

func (h *Handler) keepAlive(connID string, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := h.ConnManager.Ping(connID); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) processMessage(connID string, msg inbound) {
	switch msg.Event {
	case domain.EventJoinGame:
		var req domain.JoinRequest
		if !h.decode(connID, msg.Data, &req) {
			return
		}
		if _, err := h.Registry.Join(connID, req); err != nil {
			h.reportError(connID, err, domain.ErrTypeGameCreationFailed)
		}

	case domain.EventNextMove:
		var req domain.MoveRequest
		if !h.decode(connID, msg.Data, &req) {
			return
		}
		if err := h.Registry.RouteMove(connID, req); err != nil {
			h.reportError(connID, err, domain.ErrTypeGameError)
		}

	case domain.EventPlayerReady:
		var req domain.ReadyRequest
		if !h.decode(connID, msg.Data, &req) {
			return
		}
		if err := h.Registry.RouteSetup(connID, req); err != nil {
			h.reportError(connID, err, domain.ErrTypeGameError)
		}

	case domain.EventDisconnecting:
		h.Registry.Disconnect(connID)

	default:
		h.sendError(connID, domain.ErrTypeInvalidInput, "unknown event "+msg.Event)
	}
}

func (h *Handler) decode(connID string, data json.RawMessage, target any) bool {
	if len(data) == 0 {
		h.sendError(connID, domain.ErrTypeInvalidInput, "missing data")
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.sendError(connID, domain.ErrTypeInvalidInput, "malformed data")
		return false
	}
	return true
}

func (h *Handler) reportError(connID string, err error, fallback string) {
	errType := errorType(err, fallback)
	log.Debugf("[WS] %s for %s: %v", errType, connID, err)
	h.sendError(connID, errType, err.Error())
}

func (h *Handler) sendError(connID, errType, message string) {
	payload := domain.ErrorPayload{Type: errType, Message: message}
	if err := h.ConnManager.Send(connID, domain.EventError, payload); err != nil {
		log.Warnf("[WS] Failed to send error to %s: %v", connID, err)
	}
}

// errorType maps domain errors to their wire type.
func errorType(err error, fallback string) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return domain.ErrTypeInvalidInput
	case errors.Is(err, domain.ErrMatchNotFound):
		return domain.ErrTypeGameNotFound
	case errors.Is(err, domain.ErrPlayerNotFound):
		return domain.ErrTypePlayerNotFound
	case errors.Is(err, domain.ErrAlreadyInGame):
		return domain.ErrTypeAlreadyInGame
	case errors.Is(err, domain.ErrInvalidPosition):
		return domain.ErrTypeInvalidPosition
	}
	return fallback
}
