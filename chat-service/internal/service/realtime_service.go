package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/audit"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/hub"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/metrics"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/realtime"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/pubsub"
)

var (
	ErrNotParticipant = errors.New("not a participant of this room")
	ErrNotInRoom      = errors.New("not in room")
	ErrEmptyPayload   = errors.New("message payload is required")
)

type realtimeServiceImpl struct {
	hub         *hub.Hub
	broadcaster realtime.Broadcaster
}

// NewRealtimeService handles room membership for connections on h and
// relays realtime sends through broadcaster.
func NewRealtimeService(h *hub.Hub, broadcaster realtime.Broadcaster) RealtimeService {
	return &realtimeServiceImpl{hub: h, broadcaster: broadcaster}
}

// HandleJoinRoom admits the client to a room it participates in. Joining a
// room twice is acknowledged again.
func (s *realtimeServiceImpl) HandleJoinRoom(ctx context.Context, client *hub.Client, room string) error {
	userID := client.UserID()
	l := log.Ctx(ctx)

	if !domain.IsParticipant(room, userID) {
		audit.LogTarget(ctx, audit.ActionJoinDenied, userID, room, "room join denied")
		s.sendError(ctx, client, domain.ErrCodeForbidden, ErrNotParticipant.Error())
		return ErrNotParticipant
	}

	s.hub.Join(client, room)
	client.Session.JoinRoom(room)

	audit.LogTarget(ctx, audit.ActionJoinRoom, userID, room, "room joined")
	l.Debug().Str(log.FieldRoom, room).Int("members", s.hub.RoomSize(room)).Msg("client joined room")

	return client.SendMessage(&domain.RoomAckMessage{Type: domain.MsgTypeRoomJoined, Room: room})
}

// HandleLeaveRoom removes the client from a room. Leaving a room that was
// never joined is still acknowledged.
func (s *realtimeServiceImpl) HandleLeaveRoom(ctx context.Context, client *hub.Client, room string) error {
	if room == "" {
		s.sendError(ctx, client, domain.ErrCodeBadRequest, domain.ErrInvalidRoom.Error())
		return domain.ErrInvalidRoom
	}

	s.hub.Leave(client, room)
	client.Session.LeaveRoom(room)
	audit.LogTarget(ctx, audit.ActionLeaveRoom, client.UserID(), room, "room left")

	return client.SendMessage(&domain.RoomAckMessage{Type: domain.MsgTypeRoomLeft, Room: room})
}

// HandleSendMessage relays a payload to every member of room, the sender
// included. Nothing is persisted.
func (s *realtimeServiceImpl) HandleSendMessage(ctx context.Context, client *hub.Client, room string, message []byte) error {
	if !client.Session.InRoom(room) {
		s.sendError(ctx, client, domain.ErrCodeNotInRoom, ErrNotInRoom.Error())
		return ErrNotInRoom
	}
	if len(message) == 0 || string(message) == "null" {
		s.sendError(ctx, client, domain.ErrCodeBadRequest, ErrEmptyPayload.Error())
		return ErrEmptyPayload
	}

	userID := client.UserID()
	if err := s.broadcaster.Broadcast(ctx, room, pubsub.EventNewMessage, userID, json.RawMessage(message)); err != nil {
		metrics.BroadcastFailuresTotal.WithLabelValues("realtime").Inc()
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoom, room).Msg("realtime relay failed")
		s.sendError(ctx, client, domain.ErrCodeInternalError, "failed to relay message")
		return err
	}

	audit.LogTarget(ctx, audit.ActionRelayMessage, userID, room, "message relayed")
	return nil
}

// HandleDisconnect records the end of a connection. The hub has already
// dropped it from every room.
func (s *realtimeServiceImpl) HandleDisconnect(ctx context.Context, client *hub.Client, rooms []string) {
	for _, room := range rooms {
		client.Session.LeaveRoom(room)
	}
	audit.LogWithDetail(ctx, audit.ActionDisconnect, client.UserID(), client.ID, joinRooms(rooms), "client disconnected")
}

func (s *realtimeServiceImpl) sendError(ctx context.Context, client *hub.Client, code, message string) {
	if err := client.SendMessage(domain.NewErrorMessage(code, message)); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Str(log.FieldClientID, client.ID).Msg("failed to send error frame")
	}
}

func joinRooms(rooms []string) string {
	data, _ := json.Marshal(rooms)
	return string(data)
}
