package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/service"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/middleware"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/response"
)

// Handler handles HTTP requests for the chat service.
type Handler struct {
	messageService service.MessageService
	authMiddleware *middleware.AuthMiddleware
	sendLimiter    *middleware.RateLimiter
}

// NewHandler creates a new HTTP handler. sendLimiter may be nil.
func NewHandler(
	messageService service.MessageService,
	authMiddleware *middleware.AuthMiddleware,
	sendLimiter *middleware.RateLimiter,
) *Handler {
	return &Handler{
		messageService: messageService,
		authMiddleware: authMiddleware,
		sendLimiter:    sendLimiter,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.Use(h.authMiddleware.RequireAuth())
	{
		messages := api.Group("/messages")
		{
			send := []gin.HandlerFunc{h.SendMessage}
			if h.sendLimiter != nil {
				send = append([]gin.HandlerFunc{h.sendLimiter.Middleware()}, send...)
			}
			messages.POST("", send...)
			messages.PUT("/read", h.MarkAsRead)
			messages.GET("/unread/count", h.GetUnreadCount)
			messages.GET("/:user_id", h.GetMessages)
		}

		api.GET("/conversations", h.GetConversations)
		api.GET("/rooms/:user_id", h.GetRoom)
	}
}

// SendMessage stores a message from the caller and announces it.
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind send message request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.messageService.SendMessage(ctx, userID, req.ReceiverID, req.Content)
	if err != nil {
		h.writeError(c, err, "failed to send message")
		return
	}

	response.Created(c, msg)
}

// GetMessages returns the history between the caller and another user.
func (h *Handler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()

	otherID := c.Param("user_id")
	messages, err := h.messageService.GetMessages(ctx, middleware.GetUserID(c), otherID)
	if err != nil {
		h.writeError(c, err, "failed to get messages")
		return
	}

	response.Success(c, messages)
}

// GetConversations lists the caller's conversations, most recent first.
func (h *Handler) GetConversations(c *gin.Context) {
	ctx := c.Request.Context()

	conversations, err := h.messageService.GetConversations(ctx, middleware.GetUserID(c))
	if err != nil {
		h.writeError(c, err, "failed to get conversations")
		return
	}

	response.Success(c, conversations)
}

// MarkAsRead marks messages addressed to the caller as read.
func (h *Handler) MarkAsRead(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind mark read request")
		response.BadRequest(c, err.Error())
		return
	}

	updated, err := h.messageService.MarkMessagesAsRead(ctx, middleware.GetUserID(c), req.MessageIDs)
	if err != nil {
		h.writeError(c, err, "failed to mark messages as read")
		return
	}

	response.Success(c, domain.MarkReadResponse{Updated: updated})
}

// GetUnreadCount returns the number of unread messages addressed to the caller.
func (h *Handler) GetUnreadCount(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.messageService.GetUnreadCount(ctx, middleware.GetUserID(c))
	if err != nil {
		h.writeError(c, err, "failed to count unread messages")
		return
	}

	response.Success(c, domain.UnreadCountResponse{Count: count})
}

// GetRoom returns the realtime room the caller shares with another user.
func (h *Handler) GetRoom(c *gin.Context) {
	otherID := c.Param("user_id")
	if otherID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}
	response.Success(c, gin.H{"room": domain.RoomName(middleware.GetUserID(c), otherID)})
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrInvalidContent), errors.Is(err, service.ErrSelfMessage),
		errors.Is(err, service.ErrTooManyMessageIDs):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrPrincipalNotFound):
		response.NotFound(c, err.Error())
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(msg)
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalError, msg)
	}
}
