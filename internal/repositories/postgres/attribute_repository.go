package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/asakaida/catalogattr/internal/entities"
	"github.com/asakaida/catalogattr/internal/repositories"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresAttributeRepository implements AttributeRepository using PostgreSQL
type PostgresAttributeRepository struct {
	db *sql.DB
}

// NewPostgresAttributeRepository creates a new PostgreSQL attribute repository
func NewPostgresAttributeRepository(db *sql.DB) repositories.AttributeRepository {
	return &PostgresAttributeRepository{db: db}
}

// Fetch retrieves an attribute visible in scope
func (r *PostgresAttributeRepository) Fetch(ctx context.Context, scope *entities.Scope, id int64) (*entities.Attribute, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: attribute id must be positive, got %d", entities.ErrInvalidArgument, id)
	}
	return fetchAttribute(ctx, r.db, scope, id)
}

// FetchAll retrieves all attributes visible in scope, ordered by rank
func (r *PostgresAttributeRepository) FetchAll(ctx context.Context, scope *entities.Scope) ([]*entities.Attribute, error) {
	query := `
		SELECT id, ref, label, display_rank, entity, created_at, updated_at
		FROM product_attribute
		WHERE entity = ANY($1)
		ORDER BY display_rank ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(scope.Visible))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attributes: %w", err)
	}
	defer rows.Close()

	attrs := make([]*entities.Attribute, 0)
	for rows.Next() {
		attr, err := scanAttribute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attribute: %w", err)
		}
		attrs = append(attrs, attr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attributes: %w", err)
	}

	return attrs, nil
}

// Create inserts a new attribute owned by scope.Entity
func (r *PostgresAttributeRepository) Create(ctx context.Context, scope *entities.Scope, attr *entities.Attribute) (int64, error) {
	if err := attr.Validate(); err != nil {
		return 0, fmt.Errorf("invalid attribute: %w", err)
	}

	attr.NormalizeRef()

	query := `
		INSERT INTO product_attribute (ref, label, display_rank, entity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	now := time.Now()
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		attr.Ref, attr.Label, attr.Rank, scope.Entity, now, now,
	).Scan(&id)
	if err != nil {
		return 0, writeError("create attribute", err)
	}

	attr.ID = id
	attr.Entity = scope.Entity
	attr.CreatedAt = now
	attr.UpdatedAt = now

	return id, nil
}

// Update overwrites ref, label and rank of the attribute
func (r *PostgresAttributeRepository) Update(ctx context.Context, attr *entities.Attribute) error {
	if attr.ID <= 0 {
		return fmt.Errorf("%w: attribute id must be positive, got %d", entities.ErrInvalidArgument, attr.ID)
	}
	if err := attr.Validate(); err != nil {
		return fmt.Errorf("invalid attribute: %w", err)
	}

	attr.NormalizeRef()

	query := `
		UPDATE product_attribute
		SET ref = $1, label = $2, display_rank = $3, updated_at = $4
		WHERE id = $5
	`
	now := time.Now()
	if _, err := r.db.ExecContext(ctx, query, attr.Ref, attr.Label, attr.Rank, now, attr.ID); err != nil {
		return writeError("update attribute", err)
	}

	attr.UpdatedAt = now
	return nil
}

// Delete removes an attribute without touching combination rows
func (r *PostgresAttributeRepository) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: attribute id must be positive, got %d", entities.ErrInvalidArgument, id)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM product_attribute WHERE id = $1`, id); err != nil {
		return writeError("delete attribute", err)
	}

	return nil
}

// CountChildProducts counts combination values referencing the attribute
func (r *PostgresAttributeRepository) CountChildProducts(ctx context.Context, scope *entities.Scope, id int64) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM product_attribute_combination2val pac2v
		LEFT JOIN product_attribute_combination pac ON pac2v.fk_prod_combination = pac.id
		WHERE pac2v.fk_prod_attr = $1 AND pac.entity = ANY($2)
	`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, id, pq.Array(scope.Visible)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count child products: %w", err)
	}

	return count, nil
}

// Normalize renumbers the ranks of scope.Entity in a single transaction
func (r *PostgresAttributeRepository) Normalize(ctx context.Context, scope *entities.Scope) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return writeError("begin transaction", err)
	}
	defer tx.Rollback()

	if err := normalizeEntity(ctx, tx, scope.Entity); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return writeError("commit transaction", err)
	}

	return nil
}

// Move swaps the attribute with the sibling holding the target rank.
// The entity is normalized first, inside the same transaction.
func (r *PostgresAttributeRepository) Move(ctx context.Context, scope *entities.Scope, id int64, dir entities.Direction) error {
	if id <= 0 {
		return fmt.Errorf("%w: attribute id must be positive, got %d", entities.ErrInvalidArgument, id)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return writeError("begin transaction", err)
	}
	defer tx.Rollback()

	attr, err := fetchAttribute(ctx, tx, scope, id)
	if err != nil {
		return err
	}

	if err := normalizeEntity(ctx, tx, attr.Entity); err != nil {
		return err
	}

	// Reload to pick up the normalized rank
	attr, err = fetchAttribute(ctx, tx, scope, id)
	if err != nil {
		return err
	}

	newRank, err := dir.Target(attr.Rank)
	if err != nil {
		return fmt.Errorf("failed to move attribute %d %s: %w", id, dir, err)
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE product_attribute
		SET display_rank = $1, updated_at = $2
		WHERE entity = $3 AND display_rank = $4 AND id <> $5
	`, attr.Rank, now, attr.Entity, newRank, attr.ID)
	if err != nil {
		return writeError("swap attribute rank", err)
	}

	swapped, err := res.RowsAffected()
	if err != nil {
		return writeError("swap attribute rank", err)
	}
	if swapped == 0 {
		return fmt.Errorf("failed to move attribute %d %s: %w", id, dir, entities.ErrAtBoundary)
	}

	if err := setRank(ctx, tx, attr.ID, newRank, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return writeError("commit transaction", err)
	}

	return nil
}

// UpdateOrder sets the rank of each attribute to its index in ids, atomically
func (r *PostgresAttributeRepository) UpdateOrder(ctx context.Context, scope *entities.Scope, ids []int64) error {
	if err := entities.ValidateOrder(ids); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return writeError("begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for rank, id := range ids {
		if _, err := fetchAttribute(ctx, tx, scope, id); err != nil {
			return fmt.Errorf("failed to reorder attribute %d: %w", id, err)
		}
		if err := setRank(ctx, tx, id, rank, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return writeError("commit transaction", err)
	}

	return nil
}

// fetchAttribute loads an attribute by id within the visible entities
func fetchAttribute(ctx context.Context, q dbtx, scope *entities.Scope, id int64) (*entities.Attribute, error) {
	query := `
		SELECT id, ref, label, display_rank, entity, created_at, updated_at
		FROM product_attribute
		WHERE id = $1 AND entity = ANY($2)
	`
	attr, err := scanAttribute(q.QueryRowContext(ctx, query, id, pq.Array(scope.Visible)))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", entities.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attribute: %w", err)
	}

	return attr, nil
}

// normalizeEntity renumbers all attributes of entity, locking them for the transaction
func normalizeEntity(ctx context.Context, tx *sql.Tx, entity int64) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, display_rank
		FROM product_attribute
		WHERE entity = $1
		ORDER BY display_rank ASC, id ASC
		FOR UPDATE
	`, entity)
	if err != nil {
		return fmt.Errorf("failed to read attribute ranks: %w", err)
	}

	var ranks []entities.RankedID
	for rows.Next() {
		var r entities.RankedID
		if err := rows.Scan(&r.ID, &r.Rank); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan attribute rank: %w", err)
		}
		ranks = append(ranks, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating attribute ranks: %w", err)
	}

	now := time.Now()
	for _, change := range entities.Renumber(ranks) {
		if err := setRank(ctx, tx, change.ID, change.To, now); err != nil {
			return err
		}
	}

	return nil
}

func setRank(ctx context.Context, tx *sql.Tx, id int64, rank int, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE product_attribute
		SET display_rank = $1, updated_at = $2
		WHERE id = $3
	`, rank, now, id)
	if err != nil {
		return writeError("update attribute rank", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttribute(row rowScanner) (*entities.Attribute, error) {
	var attr entities.Attribute
	if err := row.Scan(
		&attr.ID, &attr.Ref, &attr.Label, &attr.Rank, &attr.Entity, &attr.CreatedAt, &attr.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &attr, nil
}

// writeError classifies a store rejection
func writeError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("failed to %s: %w (%s)", op, entities.ErrDuplicateRef, pqErr.Message)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, entities.ErrWriteFailed, err)
}
