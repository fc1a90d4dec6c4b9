package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
)

// DirectoryConsumer mirrors principal changes from the identity provider
// into the local users table.
type DirectoryConsumer struct {
	consumer *kafka.Consumer
	topic    string
	handler  PrincipalEventHandler
	doneCh   chan struct{}
	started  bool
}

func NewDirectoryConsumer(brokers, topic, groupID string, handler PrincipalEventHandler) (*DirectoryConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &DirectoryConsumer{
		consumer: c,
		topic:    topic,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start subscribes and consumes until ctx is cancelled.
func (dc *DirectoryConsumer) Start(ctx context.Context) error {
	if err := dc.consumer.Subscribe(dc.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", dc.topic, err)
	}

	l := log.L()
	l.Info().Str("topic", dc.topic).Msg("principal directory consumer started")

	dc.started = true
	go dc.consumeLoop(ctx)
	return nil
}

func (dc *DirectoryConsumer) consumeLoop(ctx context.Context) {
	l := log.L()
	defer close(dc.doneCh)

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("principal directory consumer shutting down")
			return
		default:
		}

		msg, err := dc.consumer.ReadMessage(100 * time.Millisecond)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			l.Error().Err(err).Msg("principal directory consumer error")
			continue
		}

		dc.processMessage(ctx, msg.Value)
	}
}

func (dc *DirectoryConsumer) processMessage(ctx context.Context, value []byte) {
	l := log.L()

	var event domain.PrincipalEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.Error().Err(err).Msg("failed to unmarshal principal event")
		return
	}

	if err := dc.handler.HandlePrincipalEvent(ctx, &event); err != nil {
		l.Error().Err(err).Str(log.FieldUserID, event.ID).Str("event_type", event.Type).Msg("failed to apply principal event")
	}
}

// Close waits for the consume loop to exit, then closes the consumer.
// Cancel the Start context first.
func (dc *DirectoryConsumer) Close() error {
	if dc.started {
		<-dc.doneCh
	}
	if err := dc.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}
