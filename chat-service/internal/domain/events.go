package domain

import "time"

// MessageCreatedEvent is published to Kafka after a message is stored.
type MessageCreatedEvent struct {
	EventID    string    `json:"event_id"`
	MessageID  string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Room       string    `json:"room"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// Principal directory events consumed from the identity provider.
const (
	PrincipalEventUpserted = "principal.upserted"
	PrincipalEventDeleted  = "principal.deleted"
)

// PrincipalEvent keeps the local users table in step with the identity provider.
type PrincipalEvent struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Role        Role   `json:"role,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}
