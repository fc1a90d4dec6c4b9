package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/cache"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/repository"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
)

var ErrInvalidPrincipalEvent = errors.New("invalid principal event")

type principalServiceImpl struct {
	repo     repository.PrincipalRepository
	cache    cache.PrincipalCache
	cacheTTL time.Duration
	sf       singleflight.Group
}

func NewPrincipalService(
	repo repository.PrincipalRepository,
	principalCache cache.PrincipalCache,
	cacheTTL time.Duration,
) PrincipalService {
	if principalCache == nil {
		principalCache = cache.NoopPrincipalCache{}
	}
	return &principalServiceImpl{
		repo:     repo,
		cache:    principalCache,
		cacheTTL: cacheTTL,
	}
}

func (s *principalServiceImpl) FindByID(ctx context.Context, id string) (*domain.Principal, error) {
	if id == "" {
		return nil, ErrPrincipalNotFound
	}

	result, err, _ := s.sf.Do(id, func() (interface{}, error) {
		return s.fetchWithCache(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	p, ok := result.(*domain.Principal)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	// Callers get their own copy; the shared result may be handed to others.
	cp := *p
	return &cp, nil
}

func (s *principalServiceImpl) fetchWithCache(ctx context.Context, id string) (*domain.Principal, error) {
	cached, err := s.cache.Get(ctx, id)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, ErrInternal
	}

	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.cache.Set(cacheCtx, p, s.cacheTTL); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("cache set error")
		}
	}()

	return p, nil
}

// HandlePrincipalEvent applies a directory change and drops the cached entry.
func (s *principalServiceImpl) HandlePrincipalEvent(ctx context.Context, event *domain.PrincipalEvent) error {
	if event == nil || event.ID == "" {
		return ErrInvalidPrincipalEvent
	}

	l := log.Ctx(ctx)

	switch event.Type {
	case domain.PrincipalEventUpserted:
		role := event.Role
		if !role.Valid() {
			role = domain.RoleStudent
		}
		p := &domain.Principal{
			ID:          event.ID,
			Email:       event.Email,
			DisplayName: event.DisplayName,
			Role:        role,
		}
		if err := s.repo.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert principal %s: %w", event.ID, err)
		}
	case domain.PrincipalEventDeleted:
		if err := s.repo.Delete(ctx, event.ID); err != nil && !errors.Is(err, repository.ErrPrincipalNotFound) {
			return fmt.Errorf("delete principal %s: %w", event.ID, err)
		}
	default:
		l.Debug().Str("event_type", event.Type).Msg("ignoring principal event")
		return nil
	}

	if err := s.cache.Delete(ctx, event.ID); err != nil {
		l.Warn().Err(err).Str(log.FieldUserID, event.ID).Msg("cache delete error")
	}
	l.Info().Str("event_type", event.Type).Str(log.FieldUserID, event.ID).Msg("principal directory updated")
	return nil
}
