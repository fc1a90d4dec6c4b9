package repository

import (
	"context"
	"errors"
	"time"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
)

var (
	ErrPrincipalNotFound = errors.New("principal not found")
)

// QueryOptions tunes message reads.
type QueryOptions struct {
	// WithParticipants loads sender and receiver principals alongside each message.
	WithParticipants bool
}

// QueryOption mutates QueryOptions.
type QueryOption func(*QueryOptions)

// WithParticipants opts in to loading the sender and receiver rows.
func WithParticipants() QueryOption {
	return func(o *QueryOptions) { o.WithParticipants = true }
}

func buildOptions(opts []QueryOption) QueryOptions {
	var o QueryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MessageRepository defines the interface for message persistence.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// ListBetween returns every message exchanged by a and b, oldest first.
	ListBetween(ctx context.Context, a, b string, opts ...QueryOption) ([]domain.Message, error)
	// ListInvolving returns every message userID sent or received, newest first.
	ListInvolving(ctx context.Context, userID string, opts ...QueryOption) ([]domain.Message, error)
	CountUnreadFrom(ctx context.Context, receiverID, senderID string) (int64, error)
	CountUnread(ctx context.Context, receiverID string) (int64, error)
	// MarkRead flips unread messages addressed to receiverID among ids and
	// returns the messages it changed. Ids addressed to anyone else are ignored.
	MarkRead(ctx context.Context, receiverID string, ids []string, at time.Time) ([]domain.Message, error)
}

// PrincipalRepository defines the interface for the local principal directory.
type PrincipalRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
	Upsert(ctx context.Context, p *domain.Principal) error
	Delete(ctx context.Context, id string) error
}
