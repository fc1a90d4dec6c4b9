package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create inserts msg, assigning an id when it has none.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	l := log.Ctx(ctx)

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.IsRead = false
	msg.ReadAt = nil

	model := domain.MessageToModel(msg)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		if r.missingParticipant(ctx, msg) {
			l.Warn().Str(log.FieldMessageID, msg.ID).Msg("message participant no longer exists")
			return ErrPrincipalNotFound
		}
		l.Error().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to create message in db")
		return err
	}

	msg.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldMessageID, msg.ID).Msg("message created in db")
	return nil
}

// missingParticipant reports whether a failed insert was caused by a sender
// or receiver row that is gone. Drivers word foreign key errors differently,
// so the rows are checked directly.
func (r *GormMessageRepository) missingParticipant(ctx context.Context, msg *domain.Message) bool {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.PrincipalModel{}).
		Where("id IN ?", []string{msg.SenderID, msg.ReceiverID}).
		Count(&n).Error
	return err == nil && n < 2
}

// ListBetween returns the messages exchanged by a and b in ascending order.
func (r *GormMessageRepository) ListBetween(ctx context.Context, a, b string, opts ...QueryOption) ([]domain.Message, error) {
	l := log.Ctx(ctx)

	query := r.query(ctx, buildOptions(opts)).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at ASC").Order("id ASC")

	var models []domain.MessageModel
	if err := query.Find(&models).Error; err != nil {
		l.Error().Err(err).Str(log.FieldPeerID, b).Msg("failed to list messages between users")
		return nil, err
	}
	return toDomain(models), nil
}

// ListInvolving returns the messages userID sent or received in descending order.
func (r *GormMessageRepository) ListInvolving(ctx context.Context, userID string, opts ...QueryOption) ([]domain.Message, error) {
	l := log.Ctx(ctx)

	query := r.query(ctx, buildOptions(opts)).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").Order("id DESC")

	var models []domain.MessageModel
	if err := query.Find(&models).Error; err != nil {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list messages involving user")
		return nil, err
	}
	return toDomain(models), nil
}

// CountUnreadFrom counts unread messages senderID sent to receiverID.
func (r *GormMessageRepository) CountUnreadFrom(ctx context.Context, receiverID, senderID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Count(&count).Error
	return count, err
}

// CountUnread counts every unread message addressed to receiverID.
func (r *GormMessageRepository) CountUnread(ctx context.Context, receiverID string) (int64, error) {
	l := log.Ctx(ctx)

	var count int64
	err := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Count(&count).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, receiverID).Msg("failed to count unread messages")
	}
	return count, err
}

// MarkRead marks the unread messages among ids that are addressed to
// receiverID and returns exactly the rows this call changed.
func (r *GormMessageRepository) MarkRead(ctx context.Context, receiverID string, ids []string, at time.Time) ([]domain.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	l := log.Ctx(ctx)

	var changed []domain.MessageModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := unreadAmong(tx, receiverID, ids).Find(&changed).Error; err != nil {
			return err
		}
		if len(changed) == 0 {
			return nil
		}

		pending := make([]string, len(changed))
		for i := range changed {
			pending[i] = changed[i].ID
		}

		return tx.Model(&domain.MessageModel{}).
			Where("id IN ? AND receiver_id = ? AND is_read = ?", pending, receiverID, false).
			Updates(map[string]interface{}{
				"is_read": true,
				"read_at": at,
			}).Error
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, receiverID).Int("ids", len(ids)).Msg("failed to mark messages read")
		return nil, err
	}

	out := toDomain(changed)
	for i := range out {
		out[i].IsRead = true
		out[i].ReadAt = &at
	}
	l.Debug().Int("updated", len(out)).Msg("messages marked read in db")
	return out, nil
}

// unreadAmong selects the unread rows among ids addressed to receiverID and
// locks them until the transaction ends, so two concurrent MarkRead calls
// never both report the same rows. SQLite ignores the lock and serializes
// writers instead.
func unreadAmong(tx *gorm.DB, receiverID string, ids []string) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ? AND receiver_id = ? AND is_read = ?", ids, receiverID, false)
}

func (r *GormMessageRepository) query(ctx context.Context, o QueryOptions) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&domain.MessageModel{})
	if o.WithParticipants {
		q = q.Preload("Sender").Preload("Receiver")
	}
	return q
}

func toDomain(models []domain.MessageModel) []domain.Message {
	out := make([]domain.Message, len(models))
	for i := range models {
		out[i] = *models[i].ToDomain()
	}
	return out
}
