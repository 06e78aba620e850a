package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/asakaida/catalogattr/internal/repositories"
)

// SharingRepository implements repositories.SharingRepository using SQLite
type SharingRepository struct {
	db *sql.DB
}

// NewSharingRepository creates a new SQLite sharing repository
func NewSharingRepository(db *sql.DB) repositories.SharingRepository {
	return &SharingRepository{db: db}
}

// SharedEntities returns the entities whose rows of element are visible to entity
func (r *SharingRepository) SharedEntities(ctx context.Context, entity int64, element string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT shared_entity
		FROM entity_sharing
		WHERE entity = ? AND element = ? AND shared_entity <> ?
		ORDER BY shared_entity
	`, entity, element, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to read shared entities: %w", err)
	}
	defer rows.Close()

	var shared []int64
	for rows.Next() {
		var e int64
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("failed to scan shared entity: %w", err)
		}
		shared = append(shared, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shared entities: %w", err)
	}

	return shared, nil
}

// Share records that entity can see element rows of sharedEntity
func (r *SharingRepository) Share(ctx context.Context, entity int64, element string, sharedEntity int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO entity_sharing (entity, element, shared_entity)
		VALUES (?, ?, ?)
	`, entity, element, sharedEntity)
	if err != nil {
		return fmt.Errorf("failed to write sharing rule: %w", err)
	}
	return nil
}
