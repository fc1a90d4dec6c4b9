package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/audit"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/hub"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/service"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub            *hub.Hub
	service        service.RealtimeService
	authMiddleware *middleware.AuthMiddleware
}

func NewWSHandler(h *hub.Hub, svc service.RealtimeService, authMiddleware *middleware.AuthMiddleware) *WSHandler {
	return &WSHandler{
		hub:            h,
		service:        svc,
		authMiddleware: authMiddleware,
	}
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.authMiddleware.RequireAuthOrQuery(), h.HandleWebSocket)
}

// HandleWebSocket upgrades an authenticated request and starts the client pumps.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	userID := middleware.GetUserID(c)
	l := log.Ctx(c.Request.Context())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.NewString()
	session := domain.NewSession(clientID, userID, middleware.GetEmail(c), domain.Role(middleware.GetRole(c)))
	client := hub.NewClient(clientID, h.hub, conn, session)

	// The request context ends with the upgrade; the connection gets its own.
	logger := log.L().With().
		Str(log.FieldClientID, clientID).
		Str(log.FieldUserID, userID).
		Logger()
	ctx := log.WithLogger(context.Background(), logger)

	h.hub.Register(client)
	audit.LogTarget(ctx, audit.ActionConnect, userID, clientID, "client connected")

	go client.WritePump()
	go client.ReadPump(
		func(c *hub.Client, message []byte) { h.handleMessage(ctx, c, message) },
		func(c *hub.Client, rooms []string) { h.service.HandleDisconnect(ctx, c, rooms) },
	)
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	l := log.Ctx(ctx)

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypeJoinRoom:
		var msg domain.RoomMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Room == "" {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid join_room message"))
			return
		}
		if err := h.service.HandleJoinRoom(ctx, client, msg.Room); err != nil {
			l.Debug().Err(err).Str(log.FieldRoom, msg.Room).Msg("join room failed")
		}

	case domain.MsgTypeLeaveRoom:
		var msg domain.RoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid leave_room message"))
			return
		}
		if err := h.service.HandleLeaveRoom(ctx, client, msg.Room); err != nil {
			l.Debug().Err(err).Str(log.FieldRoom, msg.Room).Msg("leave room failed")
		}

	case domain.MsgTypeSendMessage:
		var msg domain.SendRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Room == "" {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid send_message message"))
			return
		}
		if err := h.service.HandleSendMessage(ctx, client, msg.Room, msg.Message); err != nil {
			l.Debug().Err(err).Str(log.FieldRoom, msg.Room).Msg("send message failed")
		}

	case domain.MsgTypePing:
		client.SendMessage(&domain.PongMessage{Type: domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}
