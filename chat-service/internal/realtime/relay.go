package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/hub"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/pubsub"
)

// Relay consumes room events from the bus and delivers them to local members.
type Relay struct {
	bus pubsub.Subscriber
	hub *hub.Hub
}

func NewRelay(bus pubsub.Subscriber, h *hub.Hub) *Relay {
	return &Relay{bus: bus, hub: h}
}

// Start subscribes to every chat room and relays until ctx is cancelled or
// the bus closes the subscription. The returned channel is closed on exit.
func (r *Relay) Start(ctx context.Context) (<-chan struct{}, error) {
	events, err := r.bus.SubscribePattern(ctx, pubsub.PatternChatRoom)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to chat rooms: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		l := log.L()
		l.Info().Str("pattern", pubsub.PatternChatRoom).Msg("realtime relay started")

		for event := range events {
			r.Deliver(event)
		}
		l.Info().Msg("realtime relay stopped")
	}()
	return done, nil
}

// Deliver turns one bus event into a websocket frame for its room.
func (r *Relay) Deliver(event *pubsub.Event) int {
	l := log.L()

	frame, err := frameFor(event)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldRoom, event.Room).Str("event_type", event.Type).Msg("dropping realtime event")
		return 0
	}

	data, err := json.Marshal(frame)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldRoom, event.Room).Msg("failed to marshal realtime frame")
		return 0
	}

	n := r.hub.BroadcastRaw(event.Room, data)
	l.Debug().Str(log.FieldRoom, event.Room).Str("event_type", event.Type).Int("clients", n).Msg("relayed realtime event")
	return n
}

func frameFor(event *pubsub.Event) (interface{}, error) {
	if event.Room == "" {
		return nil, domain.ErrInvalidRoom
	}

	switch event.Type {
	case pubsub.EventNewMessage:
		return &domain.NewMessageOut{
			Type:    domain.MsgTypeNewMessage,
			Room:    event.Room,
			From:    event.Origin,
			Message: event.Payload,
		}, nil

	case pubsub.EventMessagesRead:
		var payload domain.MessagesReadPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			return nil, err
		}
		return &domain.MessagesReadOut{
			Type:       domain.MsgTypeMessagesRead,
			Room:       event.Room,
			ReaderID:   payload.ReaderID,
			MessageIDs: payload.MessageIDs,
		}, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
}
