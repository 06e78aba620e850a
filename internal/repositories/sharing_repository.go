package repositories

import "context"

// SharingRepository defines access to entity sharing rules
type SharingRepository interface {
	// SharedEntities returns the entities whose rows of element are visible to entity.
	// The entity itself is not included.
	SharedEntities(ctx context.Context, entity int64, element string) ([]int64, error)

	// Share makes element rows of sharedEntity visible to entity. Idempotent.
	Share(ctx context.Context, entity int64, element string, sharedEntity int64) error
}
