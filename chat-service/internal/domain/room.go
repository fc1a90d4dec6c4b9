package domain

import (
	"errors"
	"sort"
	"strings"
)

const roomSeparator = "_"

var ErrInvalidRoom = errors.New("invalid room name")

// RoomName derives the realtime room shared by two participants. Ids are
// sorted so both sides compute the same name.
func RoomName(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, roomSeparator)
}

// ParseRoomName returns the two participant ids encoded in a room name.
func ParseRoomName(room string) (string, string, error) {
	a, b, ok := strings.Cut(room, roomSeparator)
	if !ok || a == "" || b == "" || strings.Contains(b, roomSeparator) {
		return "", "", ErrInvalidRoom
	}
	if RoomName(a, b) != room {
		return "", "", ErrInvalidRoom
	}
	return a, b, nil
}

// IsParticipant reports whether userID is one of the room's two participants.
func IsParticipant(room, userID string) bool {
	a, b, err := ParseRoomName(room)
	if err != nil {
		return false
	}
	return userID == a || userID == b
}
