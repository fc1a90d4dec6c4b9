package service

import (
	"context"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/hub"
)

// MessageService stores direct messages and derives conversations from them.
type MessageService interface {
	SendMessage(ctx context.Context, senderID, receiverID, content string) (*domain.MessageResponse, error)
	GetMessages(ctx context.Context, userID, otherUserID string) ([]domain.MessageView, error)
	GetConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	MarkMessagesAsRead(ctx context.Context, userID string, messageIDs []string) (int64, error)
	GetUnreadCount(ctx context.Context, userID string) (int64, error)
}

// PrincipalService resolves principals and keeps the local directory current.
type PrincipalService interface {
	FindByID(ctx context.Context, id string) (*domain.Principal, error)
	HandlePrincipalEvent(ctx context.Context, event *domain.PrincipalEvent) error
}

// RealtimeService handles the room protocol of websocket clients.
type RealtimeService interface {
	HandleJoinRoom(ctx context.Context, client *hub.Client, room string) error
	HandleLeaveRoom(ctx context.Context, client *hub.Client, room string) error
	HandleSendMessage(ctx context.Context, client *hub.Client, room string, message []byte) error
	HandleDisconnect(ctx context.Context, client *hub.Client, rooms []string)
}
