package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/testutil"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedMessage(t *testing.T, repo *GormMessageRepository, id, from, to string, at time.Time) *domain.Message {
	t.Helper()
	msg := &domain.Message{ID: id, SenderID: from, ReceiverID: to, Content: "msg " + id, CreatedAt: at}
	require.NoError(t, repo.Create(context.Background(), msg))
	return msg
}

func TestMessageRepository_CreateDefaultsUnread(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedPrincipal(t, db, "alice", domain.RoleStudent)
	testutil.SeedPrincipal(t, db, "bob", domain.RoleAdvisor)
	repo := NewGormMessageRepository(db)

	msg := &domain.Message{SenderID: "alice", ReceiverID: "bob", Content: "hi", IsRead: true, CreatedAt: base}
	require.NoError(t, repo.Create(context.Background(), msg))

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.IsRead)

	got, err := repo.ListBetween(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, msg.ID, got[0].ID)
	assert.False(t, got[0].IsRead)
	assert.True(t, got[0].CreatedAt.Equal(base))
	assert.Nil(t, got[0].Sender, "participants are only loaded on request")
}

func TestMessageRepository_CreateRejectsUnknownPrincipal(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedPrincipal(t, db, "alice", domain.RoleStudent)
	repo := NewGormMessageRepository(db)

	err := repo.Create(context.Background(), &domain.Message{SenderID: "alice", ReceiverID: "ghost", Content: "hi", CreatedAt: base})
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestMessageRepository_ListBetweenIsSymmetricAndAscending(t *testing.T) {
	db := testutil.NewDB(t)
	for _, id := range []string{"alice", "bob", "carol"} {
		testutil.SeedPrincipal(t, db, id, domain.RoleStudent)
	}
	repo := NewGormMessageRepository(db)
	ctx := context.Background()

	seedMessage(t, repo, "m3", "alice", "bob", base.Add(3*time.Minute))
	seedMessage(t, repo, "m1", "bob", "alice", base.Add(1*time.Minute))
	seedMessage(t, repo, "m2", "alice", "bob", base.Add(2*time.Minute))
	seedMessage(t, repo, "x1", "alice", "carol", base.Add(90*time.Second))

	ab, err := repo.ListBetween(ctx, "alice", "bob", WithParticipants())
	require.NoError(t, err)
	ba, err := repo.ListBetween(ctx, "bob", "alice", WithParticipants())
	require.NoError(t, err)

	require.Len(t, ab, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(ab))
	assert.Equal(t, ids(ab), ids(ba))

	require.NotNil(t, ab[0].Sender)
	require.NotNil(t, ab[0].Receiver)
	assert.Equal(t, "User bob", ab[0].Sender.DisplayName)
	assert.Equal(t, "User alice", ab[0].Receiver.DisplayName)
}

func TestMessageRepository_OrderTiesBrokenByID(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedPrincipal(t, db, "alice", domain.RoleStudent)
	testutil.SeedPrincipal(t, db, "bob", domain.RoleStudent)
	repo := NewGormMessageRepository(db)
	ctx := context.Background()

	seedMessage(t, repo, "b", "alice", "bob", base)
	seedMessage(t, repo, "a", "bob", "alice", base)

	asc, err := repo.ListBetween(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(asc))

	desc, err := repo.ListInvolving(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(desc))
}

func TestMessageRepository_ListInvolvingDescending(t *testing.T) {
	db := testutil.NewDB(t)
	for _, id := range []string{"alice", "bob", "carol"} {
		testutil.SeedPrincipal(t, db, id, domain.RoleStudent)
	}
	repo := NewGormMessageRepository(db)

	seedMessage(t, repo, "m1", "alice", "bob", base.Add(1*time.Minute))
	seedMessage(t, repo, "m2", "carol", "alice", base.Add(2*time.Minute))
	seedMessage(t, repo, "m3", "bob", "carol", base.Add(3*time.Minute))

	got, err := repo.ListInvolving(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m1"}, ids(got))
}

func TestMessageRepository_MarkReadOnlyAffectsReceiver(t *testing.T) {
	db := testutil.NewDB(t)
	for _, id := range []string{"alice", "bob", "carol"} {
		testutil.SeedPrincipal(t, db, id, domain.RoleStudent)
	}
	repo := NewGormMessageRepository(db)
	ctx := context.Background()

	seedMessage(t, repo, "to-bob-1", "alice", "bob", base)
	seedMessage(t, repo, "to-bob-2", "carol", "bob", base.Add(time.Second))
	seedMessage(t, repo, "to-alice", "bob", "alice", base.Add(2*time.Second))

	readAt := base.Add(time.Hour)
	changed, err := repo.MarkRead(ctx, "bob", []string{"to-bob-1", "to-bob-2", "to-alice", "missing"}, readAt)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"to-bob-1", "to-bob-2"}, ids(changed))
	for _, m := range changed {
		assert.True(t, m.IsRead)
		require.NotNil(t, m.ReadAt)
	}

	// Already read: nothing changes the second time.
	again, err := repo.MarkRead(ctx, "bob", []string{"to-bob-1", "to-bob-2"}, readAt)
	require.NoError(t, err)
	assert.Empty(t, again)

	count, err := repo.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "bob cannot mark alice's message read")
}

func TestMessageRepository_MarkReadConcurrentCallersSplitRows(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedPrincipal(t, db, "alice", domain.RoleStudent)
	testutil.SeedPrincipal(t, db, "bob", domain.RoleAdvisor)
	repo := NewGormMessageRepository(db)

	all := []string{"r1", "r2", "r3", "r4"}
	for i, id := range all {
		seedMessage(t, repo, id, "alice", "bob", base.Add(time.Duration(i)*time.Second))
	}

	const callers = 4
	results := make(chan []domain.Message, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := repo.MarkRead(context.Background(), "bob", all, base.Add(time.Hour))
			assert.NoError(t, err)
			results <- changed
		}()
	}
	wg.Wait()
	close(results)

	var reported []string
	for changed := range results {
		reported = append(reported, ids(changed)...)
	}
	assert.ElementsMatch(t, all, reported, "every row is reported by exactly one caller")
}

func TestUnreadAmong_LocksSelectedRows(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "chat:chat@tcp(127.0.0.1:3306)/chat?parseTime=True",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []domain.MessageModel
		return unreadAmong(tx, "bob", []string{"r1", "r2"}).Find(&rows)
	})
	assert.Contains(t, sql, "FOR UPDATE")
	assert.Contains(t, sql, "receiver_id = 'bob'")
}

func TestMessageRepository_MarkReadEmptyIDs(t *testing.T) {
	repo := NewGormMessageRepository(testutil.NewDB(t))

	changed, err := repo.MarkRead(context.Background(), "bob", nil, base)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestMessageRepository_CountUnread(t *testing.T) {
	db := testutil.NewDB(t)
	for _, id := range []string{"alice", "bob", "carol"} {
		testutil.SeedPrincipal(t, db, id, domain.RoleStudent)
	}
	repo := NewGormMessageRepository(db)
	ctx := context.Background()

	seedMessage(t, repo, "m1", "alice", "bob", base)
	seedMessage(t, repo, "m2", "alice", "bob", base.Add(time.Second))
	seedMessage(t, repo, "m3", "carol", "bob", base.Add(2*time.Second))
	seedMessage(t, repo, "m4", "bob", "alice", base.Add(3*time.Second))

	_, err := repo.MarkRead(ctx, "bob", []string{"m1"}, base.Add(time.Hour))
	require.NoError(t, err)

	fromAlice, err := repo.CountUnreadFrom(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fromAlice)

	total, err := repo.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestMessageRepository_DeletingPrincipalCascades(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedPrincipal(t, db, "alice", domain.RoleStudent)
	testutil.SeedPrincipal(t, db, "bob", domain.RoleStudent)
	repo := NewGormMessageRepository(db)
	principals := NewGormPrincipalRepository(db)
	ctx := context.Background()

	seedMessage(t, repo, "m1", "alice", "bob", base)
	seedMessage(t, repo, "m2", "bob", "alice", base.Add(time.Second))

	require.NoError(t, principals.Delete(ctx, "alice"))

	got, err := repo.ListInvolving(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func ids(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].ID
	}
	return out
}
