package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/audit"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/cache"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/repository"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/testutil"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/pubsub"
)

type messageFixture struct {
	svc         MessageService
	repo        repository.MessageRepository
	broadcaster *fakeBroadcaster
	producer    *fakeProducer
}

func newMessageFixture(t *testing.T, opts MessageOptions, wrap func(repository.MessageRepository) repository.MessageRepository) *messageFixture {
	t.Helper()

	db := testutil.NewDB(t)
	testutil.SeedPrincipal(t, db, "alice", domain.RoleStudent)
	testutil.SeedPrincipal(t, db, "bob", domain.RoleAdvisor)
	testutil.SeedPrincipal(t, db, "carol", domain.RoleStudent)

	var repo repository.MessageRepository = repository.NewGormMessageRepository(db)
	if wrap != nil {
		repo = wrap(repo)
	}
	principals := NewPrincipalService(repository.NewGormPrincipalRepository(db), cache.NoopPrincipalCache{}, time.Minute)

	f := &messageFixture{
		repo:        repo,
		broadcaster: &fakeBroadcaster{},
		producer:    &fakeProducer{},
	}
	f.svc = NewMessageService(repo, principals, f.broadcaster, f.producer, opts)
	return f
}

// failingRepo fails selected operations of an otherwise working repository.
type failingRepo struct {
	repository.MessageRepository
	failCreate      bool
	failCountUnread bool
}

var errStorage = errors.New("storage unavailable")

func (r *failingRepo) Create(ctx context.Context, msg *domain.Message) error {
	if r.failCreate {
		return errStorage
	}
	return r.MessageRepository.Create(ctx, msg)
}

func (r *failingRepo) CountUnreadFrom(ctx context.Context, receiverID, senderID string) (int64, error) {
	if r.failCountUnread {
		return 0, errStorage
	}
	return r.MessageRepository.CountUnreadFrom(ctx, receiverID, senderID)
}

func TestSendMessage_PersistsAndAnnounces(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, nil)
	ctx := context.Background()

	before := time.Now()
	msg, err := f.svc.SendMessage(ctx, "alice", "bob", "  Can we meet on Friday?  ")
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Read)
	assert.Equal(t, "Can we meet on Friday?", msg.Content)
	assert.False(t, msg.Timestamp.Before(before))
	assert.Equal(t, time.UTC, msg.Timestamp.Location())

	calls := f.broadcaster.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "alice_bob", calls[0].Room)
	assert.Equal(t, pubsub.EventNewMessage, calls[0].EventType)
	assert.Equal(t, "alice", calls[0].From)

	var announced domain.MessageResponse
	require.NoError(t, json.Unmarshal(calls[0].Payload, &announced))
	assert.Equal(t, msg.ID, announced.ID)

	require.Len(t, f.producer.events, 1)
	assert.Equal(t, msg.ID, f.producer.events[0].MessageID)
	assert.Equal(t, "alice_bob", f.producer.events[0].Room)

	history, err := f.svc.GetMessages(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

func TestSendMessage_UnknownReceiverPersistsNothing(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, nil)
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, "alice", "ghost", "hello?")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)

	_, err = f.svc.SendMessage(ctx, "ghost", "alice", "hello?")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)

	stored, err := f.repo.ListInvolving(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Empty(t, f.broadcaster.Calls())
	assert.Empty(t, f.producer.events)
}

func TestSendMessage_Validation(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{MaxContentLength: 5}, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		receiver string
		content  string
		wantErr  error
	}{
		{name: "empty", receiver: "bob", content: "", wantErr: ErrInvalidContent},
		{name: "whitespace only", receiver: "bob", content: " \n\t ", wantErr: ErrInvalidContent},
		{name: "too long", receiver: "bob", content: "abcdef", wantErr: ErrInvalidContent},
		{name: "invalid utf8", receiver: "bob", content: "\xff\xfe", wantErr: ErrInvalidContent},
		{name: "self", receiver: "alice", content: "memo", wantErr: ErrSelfMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(ctx, "alice", tt.receiver, tt.content)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// The limit counts characters, not bytes.
	_, err := f.svc.SendMessage(ctx, "alice", "bob", "héllo")
	assert.NoError(t, err)
}

func TestSendMessage_BroadcastFailureIsSwallowed(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, nil)
	f.broadcaster.err = errors.New("bus down")
	f.producer.err = errors.New("kafka down")
	ctx := context.Background()

	msg, err := f.svc.SendMessage(ctx, "alice", "bob", "still stored")
	require.NoError(t, err)

	history, err := f.svc.GetMessages(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

func TestSendMessage_StorageFailureIsInternal(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, func(r repository.MessageRepository) repository.MessageRepository {
		return &failingRepo{MessageRepository: r, failCreate: true}
	})

	_, err := f.svc.SendMessage(context.Background(), "alice", "bob", "hi")
	assert.ErrorIs(t, err, ErrInternal)
	assert.NotContains(t, err.Error(), errStorage.Error())
	assert.Empty(t, f.broadcaster.Calls())
}

func TestSendMessage_TimestampsStrictlyIncrease(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, nil)
	ctx := context.Background()

	var last time.Time
	for i := 0; i < 20; i++ {
		msg, err := f.svc.SendMessage(ctx, "alice", "bob", "tick")
		require.NoError(t, err)
		assert.True(t, msg.Timestamp.After(last))
		last = msg.Timestamp
	}
}

func TestGetMessages_SymmetricAscendingWithNames(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, nil)
	ctx := context.Background()

	first, err := f.svc.SendMessage(ctx, "alice", "bob", "one")
	require.NoError(t, err)
	second, err := f.svc.SendMessage(ctx, "bob", "alice", "two")
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, "carol", "alice", "unrelated")
	require.NoError(t, err)

	ab, err := f.svc.GetMessages(ctx, "alice", "bob")
	require.NoError(t, err)
	ba, err := f.svc.GetMessages(ctx, "bob", "alice")
	require.NoError(t, err)

	require.Len(t, ab, 2)
	assert.Equal(t, ab, ba)
	assert.Equal(t, first.ID, ab[0].ID)
	assert.Equal(t, second.ID, ab[1].ID)
	assert.Equal(t, "User alice", ab[0].SenderName)
	assert.Equal(t, "User bob", ab[0].ReceiverName)
	assert.Equal(t, "bob", ab[1].SenderID)
}

func TestGetMessages_EmptyIsNotNil(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, nil)

	history, err := f.svc.GetMessages(context.Background(), "alice", "nobody")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestGetConversations_Scenario(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, nil)
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, "alice", "bob", "hi")
	require.NoError(t, err)
	hello, err := f.svc.SendMessage(ctx, "bob", "alice", "hello")
	require.NoError(t, err)
	question, err := f.svc.SendMessage(ctx, "carol", "alice", "question")
	require.NoError(t, err)

	convs, err := f.svc.GetConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, "carol", convs[0].OtherUser.ID)
	assert.Equal(t, "User carol", convs[0].OtherUser.DisplayName)
	assert.Equal(t, question.ID, convs[0].LastMessage.ID)
	assert.Equal(t, int64(1), convs[0].UnreadCount)

	assert.Equal(t, "bob", convs[1].OtherUser.ID)
	assert.Equal(t, domain.RoleAdvisor, convs[1].OtherUser.Role)
	assert.Equal(t, hello.ID, convs[1].LastMessage.ID)
	assert.Equal(t, "hello", convs[1].LastMessage.Content)
	assert.Equal(t, int64(1), convs[1].UnreadCount)

	// Bob sees one conversation and nothing unread: his only inbound message is alice's.
	bobs, err := f.svc.GetConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, "alice", bobs[0].OtherUser.ID)
	assert.Equal(t, int64(1), bobs[0].UnreadCount)

	_, err = f.svc.MarkMessagesAsRead(ctx, "alice", []string{hello.ID})
	require.NoError(t, err)
	convs, err = f.svc.GetConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), convs[1].UnreadCount)
}

func TestGetConversations_NoMessages(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, nil)

	convs, err := f.svc.GetConversations(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, convs)
	assert.Empty(t, convs)
}

func TestGetConversations_UnreadCountFailureDefaultsToZero(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{UnreadWorkers: 2}, func(r repository.MessageRepository) repository.MessageRepository {
		return &failingRepo{MessageRepository: r, failCountUnread: true}
	})
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, "bob", "alice", "unread")
	require.NoError(t, err)

	convs, err := f.svc.GetConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, int64(0), convs[0].UnreadCount)
}

func TestMarkMessagesAsRead(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, nil)
	ctx := context.Background()

	toBob, err := f.svc.SendMessage(ctx, "alice", "bob", "for bob")
	require.NoError(t, err)
	toAlice, err := f.svc.SendMessage(ctx, "bob", "alice", "for alice")
	require.NoError(t, err)

	t.Run("empty list touches nothing", func(t *testing.T) {
		n, err := f.svc.MarkMessagesAsRead(ctx, "bob", nil)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = f.svc.MarkMessagesAsRead(ctx, "bob", []string{"", "  "})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("only the receiver may mark", func(t *testing.T) {
		n, err := f.svc.MarkMessagesAsRead(ctx, "alice", []string{toBob.ID})
		require.NoError(t, err)
		assert.Zero(t, n)

		count, err := f.svc.GetUnreadCount(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("receiver marks once", func(t *testing.T) {
		calls := len(f.broadcaster.Calls())

		n, err := f.svc.MarkMessagesAsRead(ctx, "bob", []string{toBob.ID, toBob.ID, toAlice.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		all := f.broadcaster.Calls()
		require.Len(t, all, calls+1)
		receipt := all[len(all)-1]
		assert.Equal(t, pubsub.EventMessagesRead, receipt.EventType)
		assert.Equal(t, "alice_bob", receipt.Room)

		var payload domain.MessagesReadPayload
		require.NoError(t, json.Unmarshal(receipt.Payload, &payload))
		assert.Equal(t, "bob", payload.ReaderID)
		assert.Equal(t, []string{toBob.ID}, payload.MessageIDs)
	})

	t.Run("idempotent", func(t *testing.T) {
		calls := len(f.broadcaster.Calls())

		n, err := f.svc.MarkMessagesAsRead(ctx, "bob", []string{toBob.ID})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Len(t, f.broadcaster.Calls(), calls)

		history, err := f.svc.GetMessages(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.True(t, history[0].Read)
		assert.False(t, history[1].Read)
	})
}

func TestGetUnreadCount(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, nil)
	ctx := context.Background()

	for _, from := range []string{"bob", "bob", "carol"} {
		_, err := f.svc.SendMessage(ctx, from, "alice", strings.Repeat("x", 3))
		require.NoError(t, err)
	}
	_, err := f.svc.SendMessage(ctx, "alice", "bob", "reply")
	require.NoError(t, err)

	count, err := f.svc.GetUnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = f.svc.GetUnreadCount(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, count)
}

// stalePrincipals resolves every id, like a cache entry that outlived a
// deleted principal.
type stalePrincipals struct{}

func (stalePrincipals) FindByID(_ context.Context, id string) (*domain.Principal, error) {
	return &domain.Principal{ID: id, DisplayName: id, Role: domain.RoleStudent}, nil
}

func (stalePrincipals) HandlePrincipalEvent(context.Context, *domain.PrincipalEvent) error {
	return nil
}

func TestSendMessage_DeletedReceiverIsNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedPrincipal(t, db, "alice", domain.RoleStudent)
	repo := repository.NewGormMessageRepository(db)
	broadcaster := &fakeBroadcaster{}
	svc := NewMessageService(repo, stalePrincipals{}, broadcaster, &fakeProducer{}, MessageOptions{})

	_, err := svc.SendMessage(context.Background(), "alice", "gone", "are you there?")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
	assert.Empty(t, broadcaster.Calls())
}

func TestMarkMessagesAsRead_AuditsChangedIDsPerSender(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, nil)
	ctx := context.Background()

	fromAlice, err := f.svc.SendMessage(ctx, "alice", "bob", "from alice")
	require.NoError(t, err)
	fromCarol, err := f.svc.SendMessage(ctx, "carol", "bob", "from carol")
	require.NoError(t, err)
	toAlice, err := f.svc.SendMessage(ctx, "bob", "alice", "not bob's to mark")
	require.NoError(t, err)

	var buf bytes.Buffer
	logged := log.WithLogger(ctx, zerolog.New(&buf))
	n, err := f.svc.MarkMessagesAsRead(logged, "bob", []string{fromAlice.ID, fromCarol.ID, toAlice.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	details := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]string
		if json.Unmarshal([]byte(line), &entry) != nil || entry[audit.FieldAction] != audit.ActionMarkRead {
			continue
		}
		assert.Equal(t, "bob", entry[log.FieldUserID])
		details[entry[audit.FieldTargetID]] = entry[audit.FieldDetail]
	}
	assert.Equal(t, map[string]string{
		"alice": fromAlice.ID,
		"carol": fromCarol.ID,
	}, details)
}

func TestMarkMessagesAsRead_RejectsOversizedBatch(t *testing.T) {
	f := newMessageFixture(t, MessageOptions{}, nil)

	ids := make([]string, domain.MaxMarkReadIDs+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("m-%d", i)
	}
	_, err := f.svc.MarkMessagesAsRead(context.Background(), "bob", ids)
	assert.ErrorIs(t, err, ErrTooManyMessageIDs)

	n, err := f.svc.MarkMessagesAsRead(context.Background(), "bob", ids[:domain.MaxMarkReadIDs])
	require.NoError(t, err)
	assert.Zero(t, n)
}
