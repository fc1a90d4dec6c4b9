package pubsub

import (
	"fmt"
	"strings"
)

// Channels follow {prefix}:room:{room}:to_{target}; the Kafka driver maps
// them onto topic "{prefix}-to-{target}" keyed by room.
const (
	ChannelChatRoom = "chat:room:%s:to_gateway"
	PatternChatRoom = "chat:room:*:to_gateway"
	TopicChatRoom   = "chat-to-gateway"
)

// Event types relayed to websocket gateways.
const (
	EventNewMessage   = "new_message"
	EventMessagesRead = "messages_read"
)

// ChatRoomChannel returns the channel carrying events for a room.
func ChatRoomChannel(room string) string {
	return fmt.Sprintf(ChannelChatRoom, room)
}

// RoomFromChannel extracts the room segment of a chat channel.
func RoomFromChannel(channel string) (string, bool) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[1] != "room" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
