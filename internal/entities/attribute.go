package entities

import (
	"fmt"
	"strings"
	"time"
)

// Attribute represents a product attribute definition
// Example: ref "COLOR", label "Color", rank 1
// Attribute values (e.g. "Red") and variant combinations live elsewhere.
type Attribute struct {
	ID        int64  // Assigned by storage on creation
	Ref       string // Short code, always stored uppercase
	Label     string // Display name
	Rank      int    // Display order within the entity, lower first; 0 means unranked
	Entity    int64  // Owning entity (tenant scope), set on creation
	CreatedAt time.Time
	UpdatedAt time.Time
}

// String returns a string representation of the attribute
// Format: entity/ref#id (label) @rank
func (a *Attribute) String() string {
	return fmt.Sprintf("%d/%s#%d (%s) @%d", a.Entity, a.Ref, a.ID, a.Label, a.Rank)
}

// NormalizeRef uppercases the ref in place.
func (a *Attribute) NormalizeRef() {
	a.Ref = strings.ToUpper(a.Ref)
}

// Validate checks if the attribute can be written
func (a *Attribute) Validate() error {
	if strings.TrimSpace(a.Ref) == "" {
		return fmt.Errorf("%w: attribute ref is required", ErrInvalidArgument)
	}
	if a.Rank < 0 {
		return fmt.Errorf("%w: attribute rank must not be negative, got %d", ErrInvalidArgument, a.Rank)
	}
	return nil
}

// Clone returns an independent copy of the attribute
func (a *Attribute) Clone() *Attribute {
	c := *a
	return &c
}
