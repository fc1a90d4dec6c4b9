package cache

import (
	"context"
	"time"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
)

// PrincipalCache is a read-through cache in front of the principal directory.
type PrincipalCache interface {
	Get(ctx context.Context, id string) (*domain.Principal, error)
	Set(ctx context.Context, p *domain.Principal, ttl time.Duration) error
	Delete(ctx context.Context, ids ...string) error
	Close() error
}
