package audit

import (
	"context"

	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
)

// Audit actions for chat-service.
const (
	ActionSendMessage  = "chat.send_message"
	ActionMarkRead     = "chat.mark_read"
	ActionConnect      = "chat.connect"
	ActionJoinRoom     = "chat.join_room"
	ActionJoinDenied   = "chat.join_denied"
	ActionLeaveRoom    = "chat.leave_room"
	ActionRelayMessage = "chat.relay_message"
	ActionDisconnect   = "chat.disconnect"
)

const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit entry through the context logger.
func Log(ctx context.Context, action, userID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogTarget is Log with the id of the object acted upon.
func LogTarget(ctx context.Context, action, userID, targetID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail is LogTarget with a free-form detail field.
func LogWithDetail(ctx context.Context, action, userID, targetID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Str(FieldDetail, detail).
		Msg(msg)
}
