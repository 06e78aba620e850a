package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/asakaida/catalogattr/internal/repositories"
)

// PostgresSharingRepository implements SharingRepository using PostgreSQL
type PostgresSharingRepository struct {
	db *sql.DB
}

// NewPostgresSharingRepository creates a new PostgreSQL sharing repository
func NewPostgresSharingRepository(db *sql.DB) repositories.SharingRepository {
	return &PostgresSharingRepository{db: db}
}

// SharedEntities returns the entities whose rows of element are visible to entity
func (r *PostgresSharingRepository) SharedEntities(ctx context.Context, entity int64, element string) ([]int64, error) {
	query := `
		SELECT DISTINCT shared_entity
		FROM entity_sharing
		WHERE entity = $1 AND element = $2 AND shared_entity <> $1
		ORDER BY shared_entity
	`
	rows, err := r.db.QueryContext(ctx, query, entity, element)
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
func (r *PostgresSharingRepository) Share(ctx context.Context, entity int64, element string, sharedEntity int64) error {
	query := `
		INSERT INTO entity_sharing (entity, element, shared_entity)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity, element, shared_entity) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, entity, element, sharedEntity); err != nil {
		return fmt.Errorf("failed to write sharing rule: %w", err)
	}
	return nil
}
