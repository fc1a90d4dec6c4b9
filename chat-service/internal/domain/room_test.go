package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomName_OrderIndependent(t *testing.T) {
	assert.Equal(t, "alice_bob", RoomName("alice", "bob"))
	assert.Equal(t, RoomName("alice", "bob"), RoomName("bob", "alice"))
	assert.Equal(t, "3f2a_9c1d", RoomName("9c1d", "3f2a"))
}

func TestParseRoomName(t *testing.T) {
	a, b, err := ParseRoomName(RoomName("bob", "alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)

	for _, bad := range []string{"", "alice", "_bob", "alice_", "bob_alice", "a_b_c"} {
		_, _, err := ParseRoomName(bad)
		assert.ErrorIs(t, err, ErrInvalidRoom, bad)
	}
}

func TestIsParticipant(t *testing.T) {
	room := RoomName("alice", "bob")
	assert.True(t, IsParticipant(room, "alice"))
	assert.True(t, IsParticipant(room, "bob"))
	assert.False(t, IsParticipant(room, "carol"))
	assert.False(t, IsParticipant("garbage", "garbage"))
}

func TestMessage_Peer(t *testing.T) {
	alice := &Principal{ID: "alice", DisplayName: "Alice"}
	bob := &Principal{ID: "bob", DisplayName: "Bob", Role: RoleAdvisor}
	m := &Message{SenderID: "alice", ReceiverID: "bob", Sender: alice, Receiver: bob}

	assert.Equal(t, "bob", m.PeerOf("alice"))
	assert.Equal(t, "alice", m.PeerOf("bob"))
	assert.Equal(t, bob, m.Peer("alice"))
	assert.Equal(t, PrincipalSummary{ID: "bob", DisplayName: "Bob", Role: RoleAdvisor}, m.Peer("alice").Summary())

	view := m.ToView()
	assert.Equal(t, "Alice", view.SenderName)
	assert.Equal(t, "Bob", view.ReceiverName)
}

func TestSession_Rooms(t *testing.T) {
	s := NewSession("c1", "alice", "alice@example.edu", RoleStudent)

	assert.True(t, s.JoinRoom("alice_bob"))
	assert.False(t, s.JoinRoom("alice_bob"))
	assert.True(t, s.InRoom("alice_bob"))
	assert.Equal(t, []string{"alice_bob"}, s.Rooms())

	assert.True(t, s.LeaveRoom("alice_bob"))
	assert.False(t, s.LeaveRoom("alice_bob"))
	assert.Empty(t, s.Rooms())
}
