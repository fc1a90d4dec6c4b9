package realtime

import (
	"context"
	"fmt"

	"github.com/iDecide-Org/iDecide-API-sub000/pkg/pubsub"
)

// Broadcaster fans an event out to every connection joined to a room, on
// every gateway instance. Delivery is best-effort: no ack, no retry.
type Broadcaster interface {
	Broadcast(ctx context.Context, room, eventType, from string, payload interface{}) error
}

// BusBroadcaster publishes room events on the pubsub bus; a Relay on each
// instance turns them into websocket frames.
type BusBroadcaster struct {
	bus pubsub.Publisher
}

func NewBusBroadcaster(bus pubsub.Publisher) *BusBroadcaster {
	return &BusBroadcaster{bus: bus}
}

func (b *BusBroadcaster) Broadcast(ctx context.Context, room, eventType, from string, payload interface{}) error {
	event, err := pubsub.NewEvent(eventType, room, payload)
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	event.Origin = from

	if err := b.bus.Publish(ctx, pubsub.ChatRoomChannel(room), event); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}
