package tenancy

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/asakaida/catalogattr/internal/entities"
	"github.com/asakaida/catalogattr/internal/repositories"
	"github.com/asakaida/catalogattr/pkg/cache"
	"go.uber.org/zap"
)

// Resolver turns a caller entity into the scope of entities it may read.
// Resolved scopes are cached when a cache is configured.
type Resolver struct {
	sharing repositories.SharingRepository
	cache   cache.Cache[*entities.Scope]
	ttl     time.Duration
	logger  *zap.Logger
}

// ScopeSize estimates the cached size of a scope in bytes
func ScopeSize(s *entities.Scope) int64 {
	return int64(8 + 8*len(s.Visible))
}

// NewResolver creates a resolver. scopes may be nil to disable caching.
func NewResolver(sharing repositories.SharingRepository, scopes cache.Cache[*entities.Scope], ttl time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		sharing: sharing,
		cache:   scopes,
		ttl:     ttl,
		logger:  logger,
	}
}

// Resolve returns the scope of entity, including entities that share products with it
func (r *Resolver) Resolve(ctx context.Context, entity int64) (*entities.Scope, error) {
	if entity <= 0 {
		return nil, fmt.Errorf("%w: entity must be positive, got %d", entities.ErrInvalidArgument, entity)
	}

	key := strconv.FormatInt(entity, 10)
	if r.cache != nil {
		if scope, ok := r.cache.Get(ctx, key); ok {
			return scope, nil
		}
	}

	shared, err := r.sharing.SharedEntities(ctx, entity, entities.ProductElement)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scope of entity %d: %w", entity, err)
	}

	scope, err := entities.NewScope(entity, shared...)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, scope, r.ttl); err != nil {
			r.logger.Warn("failed to cache scope", zap.Int64("entity", entity), zap.Error(err))
		}
	}

	r.logger.Debug("resolved scope",
		zap.Int64("entity", entity),
		zap.Int64s("visible", scope.Visible),
	)

	return scope, nil
}

// Invalidate drops the cached scope of entity
func (r *Resolver) Invalidate(ctx context.Context, entity int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, strconv.FormatInt(entity, 10)); err != nil {
		r.logger.Warn("failed to invalidate scope", zap.Int64("entity", entity), zap.Error(err))
	}
}

// InvalidateAll drops every cached scope
func (r *Resolver) InvalidateAll(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Clear(ctx); err != nil {
		r.logger.Warn("failed to clear scope cache", zap.Error(err))
	}
}
