package services

import (
	"context"
	"fmt"

	"github.com/asakaida/catalogattr/internal/entities"
	"github.com/asakaida/catalogattr/internal/repositories"
	"github.com/asakaida/catalogattr/internal/services/filter"
	"go.uber.org/zap"
)

// ScopeResolver resolves the tenant scope of a caller entity
type ScopeResolver interface {
	Resolve(ctx context.Context, entity int64) (*entities.Scope, error)
}

// AttributeServiceInterface defines the product attribute operations
type AttributeServiceInterface interface {
	Fetch(ctx context.Context, entity int64, id int64) (*entities.Attribute, error)
	FetchAll(ctx context.Context, entity int64, filterExpr string) ([]*entities.Attribute, error)
	Create(ctx context.Context, entity int64, attr *entities.Attribute) (int64, error)
	Update(ctx context.Context, entity int64, attr *entities.Attribute) error
	Delete(ctx context.Context, entity int64, id int64) error
	CountChildProducts(ctx context.Context, entity int64, id int64) (int64, error)
	MoveUp(ctx context.Context, entity int64, id int64) error
	MoveDown(ctx context.Context, entity int64, id int64) error
	Normalize(ctx context.Context, entity int64) error
	UpdateOrder(ctx context.Context, entity int64, ids []int64) error
}

// AttributeService handles product attribute operations on behalf of a caller entity
type AttributeService struct {
	attrRepo repositories.AttributeRepository
	resolver ScopeResolver
	filters  *filter.Engine
	logger   *zap.Logger
}

// NewAttributeService creates a new AttributeService
func NewAttributeService(
	attrRepo repositories.AttributeRepository,
	resolver ScopeResolver,
	filters *filter.Engine,
	logger *zap.Logger,
) *AttributeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttributeService{
		attrRepo: attrRepo,
		resolver: resolver,
		filters:  filters,
		logger:   logger.Named("attributes"),
	}
}

// Fetch retrieves a single attribute visible to entity
func (s *AttributeService) Fetch(ctx context.Context, entity int64, id int64) (*entities.Attribute, error) {
	scope, err := s.resolver.Resolve(ctx, entity)
	if err != nil {
		return nil, err
	}
	return s.attrRepo.Fetch(ctx, scope, id)
}

// FetchAll lists the attributes visible to entity in display order,
// optionally narrowed by a CEL filter expression
func (s *AttributeService) FetchAll(ctx context.Context, entity int64, filterExpr string) ([]*entities.Attribute, error) {
	var f *filter.Filter
	if filterExpr != "" {
		if s.filters == nil {
			return nil, fmt.Errorf("%w: filtering is not enabled", entities.ErrInvalidArgument)
		}
		compiled, err := s.filters.Compile(filterExpr)
		if err != nil {
			return nil, err
		}
		f = compiled
	}

	scope, err := s.resolver.Resolve(ctx, entity)
	if err != nil {
		return nil, err
	}

	attrs, err := s.attrRepo.FetchAll(ctx, scope)
	if err != nil {
		return nil, err
	}

	return f.Apply(attrs)
}

// Create stores a new attribute owned by entity and returns its id
func (s *AttributeService) Create(ctx context.Context, entity int64, attr *entities.Attribute) (int64, error) {
	if attr == nil {
		return 0, fmt.Errorf("%w: attribute is required", entities.ErrInvalidArgument)
	}

	scope, err := s.resolver.Resolve(ctx, entity)
	if err != nil {
		return 0, err
	}

	id, err := s.attrRepo.Create(ctx, scope, attr)
	if err != nil {
		return 0, err
	}

	s.logger.Info("attribute created",
		zap.Int64("entity", entity),
		zap.Int64("id", id),
		zap.String("ref", attr.Ref),
	)
	return id, nil
}

// Update overwrites ref, label and rank of an attribute visible to entity
func (s *AttributeService) Update(ctx context.Context, entity int64, attr *entities.Attribute) error {
	if attr == nil {
		return fmt.Errorf("%w: attribute is required", entities.ErrInvalidArgument)
	}

	existing, err := s.Fetch(ctx, entity, attr.ID)
	if err != nil {
		return err
	}

	attr.Entity = existing.Entity
	attr.CreatedAt = existing.CreatedAt
	if err := s.attrRepo.Update(ctx, attr); err != nil {
		return err
	}

	s.logger.Info("attribute updated",
		zap.Int64("entity", entity),
		zap.Int64("id", attr.ID),
		zap.String("ref", attr.Ref),
		zap.Int("rank", attr.Rank),
	)
	return nil
}

// Delete removes an attribute visible to entity. Combination rows referencing it
// are left untouched; callers check CountChildProducts first when that matters.
func (s *AttributeService) Delete(ctx context.Context, entity int64, id int64) error {
	if _, err := s.Fetch(ctx, entity, id); err != nil {
		return err
	}

	if err := s.attrRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("attribute deleted", zap.Int64("entity", entity), zap.Int64("id", id))
	return nil
}

// CountChildProducts counts combination values of entity's visible products using the attribute
func (s *AttributeService) CountChildProducts(ctx context.Context, entity int64, id int64) (int64, error) {
	scope, err := s.resolver.Resolve(ctx, entity)
	if err != nil {
		return 0, err
	}
	return s.attrRepo.CountChildProducts(ctx, scope, id)
}

// MoveUp swaps the attribute with its predecessor in display order
func (s *AttributeService) MoveUp(ctx context.Context, entity int64, id int64) error {
	return s.move(ctx, entity, id, entities.Up)
}

// MoveDown swaps the attribute with its successor in display order
func (s *AttributeService) MoveDown(ctx context.Context, entity int64, id int64) error {
	return s.move(ctx, entity, id, entities.Down)
}

func (s *AttributeService) move(ctx context.Context, entity int64, id int64, dir entities.Direction) error {
	scope, err := s.resolver.Resolve(ctx, entity)
	if err != nil {
		return err
	}

	if err := s.attrRepo.Move(ctx, scope, id, dir); err != nil {
		return err
	}

	s.logger.Info("attribute moved",
		zap.Int64("entity", entity),
		zap.Int64("id", id),
		zap.Stringer("direction", dir),
	)
	return nil
}

// Normalize renumbers the ranks of entity's attributes to 1..N
func (s *AttributeService) Normalize(ctx context.Context, entity int64) error {
	scope, err := s.resolver.Resolve(ctx, entity)
	if err != nil {
		return err
	}

	if err := s.attrRepo.Normalize(ctx, scope); err != nil {
		return err
	}

	s.logger.Info("attribute ranks normalized", zap.Int64("entity", entity))
	return nil
}

// UpdateOrder sets the display order explicitly: each id gets its index as rank
func (s *AttributeService) UpdateOrder(ctx context.Context, entity int64, ids []int64) error {
	scope, err := s.resolver.Resolve(ctx, entity)
	if err != nil {
		return err
	}

	if err := s.attrRepo.UpdateOrder(ctx, scope, ids); err != nil {
		return err
	}

	s.logger.Info("attribute order updated", zap.Int64("entity", entity), zap.Int64s("ids", ids))
	return nil
}
