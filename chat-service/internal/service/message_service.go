package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/audit"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/kafka"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/metrics"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/realtime"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/repository"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/pubsub"
)

var (
	ErrInvalidContent    = errors.New("message content must be non-empty and within the length limit")
	ErrSelfMessage       = errors.New("cannot send a message to yourself")
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrTooManyMessageIDs = fmt.Errorf("at most %d message ids per request", domain.MaxMarkReadIDs)
	ErrInternal          = errors.New("internal error")
)

const (
	defaultMaxContentLength = 8000
	defaultUnreadWorkers    = 8
)

// MessageOptions tunes a MessageService.
type MessageOptions struct {
	MaxContentLength int
	UnreadWorkers    int
}

type messageServiceImpl struct {
	repo        repository.MessageRepository
	principals  PrincipalService
	broadcaster realtime.Broadcaster
	producer    kafka.EventProducer
	clock       *clock
	opts        MessageOptions
}

// NewMessageService wires the store to its collaborators. The broadcaster
// and producer only ever receive; they never call back into the store.
func NewMessageService(
	repo repository.MessageRepository,
	principals PrincipalService,
	broadcaster realtime.Broadcaster,
	producer kafka.EventProducer,
	opts MessageOptions,
) MessageService {
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = defaultMaxContentLength
	}
	if opts.UnreadWorkers <= 0 {
		opts.UnreadWorkers = defaultUnreadWorkers
	}
	if producer == nil {
		producer = kafka.NoopProducer{}
	}
	return &messageServiceImpl{
		repo:        repo,
		principals:  principals,
		broadcaster: broadcaster,
		producer:    producer,
		clock:       newClock(),
		opts:        opts,
	}
}

// SendMessage validates, persists and then announces a message. Once the
// row is written the call succeeds; announcing it is best-effort.
func (s *messageServiceImpl) SendMessage(ctx context.Context, senderID, receiverID, content string) (*domain.MessageResponse, error) {
	content, err := s.normalizeContent(content)
	if err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}

	for _, id := range []string{senderID, receiverID} {
		if _, err := s.principals.FindByID(ctx, id); err != nil {
			return nil, err
		}
	}

	msg := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, ErrInternal
	}

	metrics.MessagesSentTotal.Inc()
	audit.LogTarget(ctx, audit.ActionSendMessage, senderID, msg.ID, "message sent")

	resp := msg.ToResponse()
	room := domain.RoomName(senderID, receiverID)
	s.announce(ctx, room, &resp)

	return &resp, nil
}

func (s *messageServiceImpl) announce(ctx context.Context, room string, resp *domain.MessageResponse) {
	l := log.Ctx(ctx)

	if err := s.broadcaster.Broadcast(ctx, room, pubsub.EventNewMessage, resp.SenderID, resp); err != nil {
		metrics.BroadcastFailuresTotal.WithLabelValues("realtime").Inc()
		l.Warn().Err(err).Str(log.FieldRoom, room).Str(log.FieldMessageID, resp.ID).Msg("realtime broadcast failed")
	}

	event := &domain.MessageCreatedEvent{
		EventID:    uuid.NewString(),
		MessageID:  resp.ID,
		SenderID:   resp.SenderID,
		ReceiverID: resp.ReceiverID,
		Room:       room,
		Content:    resp.Content,
		Timestamp:  resp.Timestamp,
	}
	if err := s.producer.PublishMessageCreated(ctx, event); err != nil {
		metrics.BroadcastFailuresTotal.WithLabelValues("kafka").Inc()
		l.Warn().Err(err).Str(log.FieldMessageID, resp.ID).Msg("message event publish failed")
	}
}

func (s *messageServiceImpl) normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" || !utf8.ValidString(content) {
		return "", ErrInvalidContent
	}
	if utf8.RuneCountInString(content) > s.opts.MaxContentLength {
		return "", ErrInvalidContent
	}
	return content, nil
}

// GetMessages returns the history between two users, oldest first. Unknown
// users simply have no history.
func (s *messageServiceImpl) GetMessages(ctx context.Context, userID, otherUserID string) ([]domain.MessageView, error) {
	messages, err := s.repo.ListBetween(ctx, userID, otherUserID, repository.WithParticipants())
	if err != nil {
		return nil, ErrInternal
	}

	views := make([]domain.MessageView, len(messages))
	for i := range messages {
		views[i] = messages[i].ToView()
	}
	return views, nil
}

// GetConversations returns one entry per peer, most recent first.
func (s *messageServiceImpl) GetConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	messages, err := s.repo.ListInvolving(ctx, userID, repository.WithParticipants())
	if err != nil {
		return nil, ErrInternal
	}

	// Input is newest first, so the first message seen per peer is its latest.
	conversations := make([]domain.Conversation, 0)
	seen := make(map[string]struct{})
	for i := range messages {
		msg := &messages[i]
		peerID := msg.PeerOf(userID)
		if _, ok := seen[peerID]; ok {
			continue
		}
		seen[peerID] = struct{}{}

		other := domain.PrincipalSummary{ID: peerID}
		if peer := msg.Peer(userID); peer != nil {
			other = peer.Summary()
		}

		conversations = append(conversations, domain.Conversation{
			OtherUser: other,
			LastMessage: domain.LastMessage{
				ID:        msg.ID,
				Content:   msg.Content,
				Timestamp: msg.CreatedAt,
				SenderID:  msg.SenderID,
			},
		})
	}

	s.fillUnreadCounts(ctx, userID, conversations)
	return conversations, nil
}

// fillUnreadCounts queries each peer's unread count concurrently. A failed
// count is logged and left at zero.
func (s *messageServiceImpl) fillUnreadCounts(ctx context.Context, userID string, conversations []domain.Conversation) {
	var g errgroup.Group
	g.SetLimit(s.opts.UnreadWorkers)

	for i := range conversations {
		conv := &conversations[i]
		g.Go(func() error {
			count, err := s.repo.CountUnreadFrom(ctx, userID, conv.OtherUser.ID)
			if err != nil {
				l := log.Ctx(ctx)
				l.Warn().Err(err).Str(log.FieldPeerID, conv.OtherUser.ID).Msg("unread count failed, reporting 0")
				return nil
			}
			conv.UnreadCount = count
			return nil
		})
	}
	_ = g.Wait()
}

// MarkMessagesAsRead marks messages addressed to userID as read. Ids of
// messages addressed to someone else are skipped silently.
func (s *messageServiceImpl) MarkMessagesAsRead(ctx context.Context, userID string, messageIDs []string) (int64, error) {
	ids := dedupe(messageIDs)
	if len(ids) == 0 {
		return 0, nil
	}
	if len(ids) > domain.MaxMarkReadIDs {
		return 0, ErrTooManyMessageIDs
	}

	changed, err := s.repo.MarkRead(ctx, userID, ids, s.clock.Now())
	if err != nil {
		return 0, ErrInternal
	}
	if len(changed) == 0 {
		return 0, nil
	}

	metrics.MessagesReadTotal.Add(float64(len(changed)))

	bySender := make(map[string][]string)
	for _, m := range changed {
		bySender[m.SenderID] = append(bySender[m.SenderID], m.ID)
	}
	for senderID, readIDs := range bySender {
		audit.LogWithDetail(ctx, audit.ActionMarkRead, userID, senderID, strings.Join(readIDs, ","), "messages marked read")

		room := domain.RoomName(userID, senderID)
		payload := domain.MessagesReadPayload{ReaderID: userID, MessageIDs: readIDs}
		if err := s.broadcaster.Broadcast(ctx, room, pubsub.EventMessagesRead, userID, payload); err != nil {
			metrics.BroadcastFailuresTotal.WithLabelValues("realtime").Inc()
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoom, room).Msg("read receipt broadcast failed")
		}
	}

	return int64(len(changed)), nil
}

// GetUnreadCount counts every unread message addressed to userID.
func (s *messageServiceImpl) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, ErrInternal
	}
	return count, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
