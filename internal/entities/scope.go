package entities

import (
	"fmt"
	"slices"
)

// ProductElement is the sharing element that governs attribute visibility.
const ProductElement = "product"

// Scope is the tenant scope of a caller: the entity it acts as and the
// entities whose attributes it may read.
type Scope struct {
	Entity  int64
	Visible []int64
}

// NewScope builds a scope for entity that can also see shared.
// The visible list always contains entity, is sorted and has no duplicates.
func NewScope(entity int64, shared ...int64) (*Scope, error) {
	if entity <= 0 {
		return nil, fmt.Errorf("%w: entity must be positive, got %d", ErrInvalidArgument, entity)
	}

	visible := make([]int64, 0, len(shared)+1)
	visible = append(visible, entity)
	for _, e := range shared {
		if e > 0 {
			visible = append(visible, e)
		}
	}
	slices.Sort(visible)
	visible = slices.Compact(visible)

	return &Scope{Entity: entity, Visible: visible}, nil
}

// CanSee reports whether rows owned by entity are visible in this scope
func (s *Scope) CanSee(entity int64) bool {
	_, found := slices.BinarySearch(s.Visible, entity)
	return found
}
