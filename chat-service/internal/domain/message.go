package domain

import "time"

// Message is a direct message between two principals.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Content    string
	IsRead     bool
	ReadAt     *time.Time
	CreatedAt  time.Time

	// Populated only when the query asked for participants.
	Sender   *Principal
	Receiver *Principal
}

// PeerOf returns the participant that is not userID.
func (m *Message) PeerOf(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Peer returns the loaded principal on the other side from userID, if any.
func (m *Message) Peer(userID string) *Principal {
	if m.SenderID == userID {
		return m.Receiver
	}
	return m.Sender
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

// MaxMarkReadIDs caps the ids accepted by one mark-read request.
const MaxMarkReadIDs = 500

// MarkReadRequest is the body of PUT /messages/read.
type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids" binding:"max=500"`
}

// MessageResponse is a message as returned to its sender.
type MessageResponse struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

// ToResponse converts a Message to its API shape.
func (m *Message) ToResponse() MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Timestamp:  m.CreatedAt,
		Read:       m.IsRead,
	}
}

// MessageView is a history entry with participant names flattened in.
type MessageView struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	Read         bool      `json:"read"`
	SenderID     string    `json:"sender_id"`
	ReceiverID   string    `json:"receiver_id"`
	SenderName   string    `json:"sender_name"`
	ReceiverName string    `json:"receiver_name"`
}

// ToView flattens a message loaded with participants.
func (m *Message) ToView() MessageView {
	v := MessageView{
		ID:         m.ID,
		Content:    m.Content,
		Timestamp:  m.CreatedAt,
		Read:       m.IsRead,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
	}
	if m.Sender != nil {
		v.SenderName = m.Sender.DisplayName
	}
	if m.Receiver != nil {
		v.ReceiverName = m.Receiver.DisplayName
	}
	return v
}

// LastMessage previews the most recent message of a conversation.
type LastMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	SenderID  string    `json:"sender_id"`
}

// Conversation summarises everything exchanged with one peer. It is derived
// on every request and never stored.
type Conversation struct {
	OtherUser   PrincipalSummary `json:"other_user"`
	LastMessage LastMessage      `json:"last_message"`
	UnreadCount int64            `json:"unread_count"`
}

// MarkReadResponse reports how many messages changed state.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

// UnreadCountResponse is the body of GET /messages/unread/count.
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}
