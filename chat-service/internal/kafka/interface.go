package kafka

import (
	"context"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
)

// EventProducer publishes domain events for downstream consumers.
type EventProducer interface {
	PublishMessageCreated(ctx context.Context, event *domain.MessageCreatedEvent) error
	Close() error
}

// PrincipalEventHandler applies principal directory changes.
type PrincipalEventHandler interface {
	HandlePrincipalEvent(ctx context.Context, event *domain.PrincipalEvent) error
}

// NoopProducer drops every event. Used when event publishing is disabled.
type NoopProducer struct{}

func (NoopProducer) PublishMessageCreated(context.Context, *domain.MessageCreatedEvent) error {
	return nil
}

func (NoopProducer) Close() error { return nil }
