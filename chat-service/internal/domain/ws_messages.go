package domain

import "encoding/json"

// WebSocket message types from client.
const (
	MsgTypeJoinRoom    = "join_room"
	MsgTypeLeaveRoom   = "leave_room"
	MsgTypeSendMessage = "send_message"
	MsgTypePing        = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeRoomJoined   = "room_joined"
	MsgTypeRoomLeft     = "room_left"
	MsgTypeNewMessage   = "new_message"
	MsgTypeMessagesRead = "messages_read"
	MsgTypeError        = "error"
	MsgTypePong         = "pong"
)

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotInRoom     = "NOT_IN_ROOM"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseMessage is decoded first to dispatch on Type.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server

type RoomMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// SendRoomMessage relays an arbitrary payload to a joined room. Nothing is stored.
type SendRoomMessage struct {
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	Message json.RawMessage `json:"message"`
}

// Server -> Client

type RoomAckMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type NewMessageOut struct {
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	From    string          `json:"from,omitempty"`
	Message json.RawMessage `json:"message"`
}

type MessagesReadOut struct {
	Type       string   `json:"type"`
	Room       string   `json:"room"`
	ReaderID   string   `json:"reader_id"`
	MessageIDs []string `json:"message_ids"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

// MessagesReadPayload travels on the bus for EventMessagesRead.
type MessagesReadPayload struct {
	ReaderID   string   `json:"reader_id"`
	MessageIDs []string `json:"message_ids"`
}
