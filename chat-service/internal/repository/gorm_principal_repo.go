package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
)

// GormPrincipalRepository implements PrincipalRepository over the users table.
type GormPrincipalRepository struct {
	db *gorm.DB
}

// NewGormPrincipalRepository creates a new GORM-based principal repository.
func NewGormPrincipalRepository(db *gorm.DB) *GormPrincipalRepository {
	return &GormPrincipalRepository{db: db}
}

// GetByID retrieves a principal by ID.
func (r *GormPrincipalRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	var model domain.PrincipalModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrPrincipalNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldUserID, id).Msg("failed to get principal by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// Upsert inserts p or refreshes its mutable columns.
func (r *GormPrincipalRepository) Upsert(ctx context.Context, p *domain.Principal) error {
	if p.Role == "" {
		p.Role = domain.RoleStudent
	}

	model := domain.PrincipalToModel(p)
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "display_name", "role", "updated_at"}),
	}).Create(model)
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldUserID, p.ID).Msg("failed to upsert principal")
		return result.Error
	}

	p.CreatedAt = model.CreatedAt
	p.UpdatedAt = model.UpdatedAt
	return nil
}

// Delete removes a principal; their messages go with them.
func (r *GormPrincipalRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.PrincipalModel{}, "id = ?", id)
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldUserID, id).Msg("failed to delete principal")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}
