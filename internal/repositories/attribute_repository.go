package repositories

import (
	"context"

	"github.com/asakaida/catalogattr/internal/entities"
)

// AttributeRepository defines the interface for product attribute data access
type AttributeRepository interface {
	// Fetch retrieves an attribute visible in scope.
	// Returns ErrInvalidArgument for a non-positive id and ErrNotFound when no visible row matches.
	Fetch(ctx context.Context, scope *entities.Scope, id int64) (*entities.Attribute, error)

	// FetchAll retrieves all attributes visible in scope, ordered by rank
	FetchAll(ctx context.Context, scope *entities.Scope) ([]*entities.Attribute, error)

	// Create inserts a new attribute owned by scope.Entity and returns its id
	Create(ctx context.Context, scope *entities.Scope, attr *entities.Attribute) (int64, error)

	// Update overwrites ref, label and rank of the attribute with attr.ID
	Update(ctx context.Context, attr *entities.Attribute) error

	// Delete removes an attribute. Combination rows referencing it are left untouched.
	Delete(ctx context.Context, id int64) error

	// CountChildProducts counts combination values referencing the attribute
	CountChildProducts(ctx context.Context, scope *entities.Scope, id int64) (int64, error)

	// Normalize renumbers the ranks of scope.Entity into a dense 1..N sequence,
	// unranked (rank 0) attributes first
	Normalize(ctx context.Context, scope *entities.Scope) error

	// Move swaps the attribute with its neighbor in the given direction
	Move(ctx context.Context, scope *entities.Scope, id int64, dir entities.Direction) error

	// UpdateOrder sets the rank of each attribute to its index in ids
	UpdateOrder(ctx context.Context, scope *entities.Scope, ids []int64) error
}
