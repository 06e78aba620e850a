package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asakaida/catalogattr/internal/entities"
	"github.com/asakaida/catalogattr/internal/repositories"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const attributeColumns = "id, ref, label, display_rank, entity, created_at, updated_at"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AttributeRepository implements repositories.AttributeRepository using SQLite
type AttributeRepository struct {
	db *sql.DB
}

// NewAttributeRepository creates a new SQLite attribute repository
func NewAttributeRepository(db *sql.DB) repositories.AttributeRepository {
	return &AttributeRepository{db: db}
}

// Fetch retrieves an attribute visible in scope
func (r *AttributeRepository) Fetch(ctx context.Context, scope *entities.Scope, id int64) (*entities.Attribute, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: attribute id must be positive, got %d", entities.ErrInvalidArgument, id)
	}
	return fetchAttribute(ctx, r.db, scope, id)
}

// FetchAll retrieves all attributes visible in scope, ordered by rank
func (r *AttributeRepository) FetchAll(ctx context.Context, scope *entities.Scope) ([]*entities.Attribute, error) {
	in, args := inClause(scope.Visible)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+attributeColumns+`
		FROM product_attribute
		WHERE entity IN (`+in+`)
		ORDER BY display_rank ASC, id ASC
	`, args...)
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
func (r *AttributeRepository) Create(ctx context.Context, scope *entities.Scope, attr *entities.Attribute) (int64, error) {
	if err := attr.Validate(); err != nil {
		return 0, fmt.Errorf("invalid attribute: %w", err)
	}

	attr.NormalizeRef()

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO product_attribute (ref, label, display_rank, entity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, attr.Ref, attr.Label, attr.Rank, scope.Entity, now, now)
	if err != nil {
		return 0, writeError("create attribute", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, writeError("read attribute id", err)
	}

	attr.ID = id
	attr.Entity = scope.Entity
	attr.CreatedAt = now
	attr.UpdatedAt = now

	return id, nil
}

// Update overwrites ref, label and rank of the attribute
func (r *AttributeRepository) Update(ctx context.Context, attr *entities.Attribute) error {
	if attr.ID <= 0 {
		return fmt.Errorf("%w: attribute id must be positive, got %d", entities.ErrInvalidArgument, attr.ID)
	}
	if err := attr.Validate(); err != nil {
		return fmt.Errorf("invalid attribute: %w", err)
	}

	attr.NormalizeRef()

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE product_attribute
		SET ref = ?, label = ?, display_rank = ?, updated_at = ?
		WHERE id = ?
	`, attr.Ref, attr.Label, attr.Rank, now, attr.ID)
	if err != nil {
		return writeError("update attribute", err)
	}

	attr.UpdatedAt = now
	return nil
}

// Delete removes an attribute without touching combination rows
func (r *AttributeRepository) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: attribute id must be positive, got %d", entities.ErrInvalidArgument, id)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM product_attribute WHERE id = ?`, id); err != nil {
		return writeError("delete attribute", err)
	}

	return nil
}

// CountChildProducts counts combination values referencing the attribute
func (r *AttributeRepository) CountChildProducts(ctx context.Context, scope *entities.Scope, id int64) (int64, error) {
	in, args := inClause(scope.Visible)
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM product_attribute_combination2val pac2v
		LEFT JOIN product_attribute_combination pac ON pac2v.fk_prod_combination = pac.id
		WHERE pac2v.fk_prod_attr = ? AND pac.entity IN (`+in+`)
	`, append([]any{id}, args...)...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count child products: %w", err)
	}

	return count, nil
}

// Normalize renumbers the ranks of scope.Entity in a single transaction
func (r *AttributeRepository) Normalize(ctx context.Context, scope *entities.Scope) error {
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

// Move swaps the attribute with the sibling holding the target rank
func (r *AttributeRepository) Move(ctx context.Context, scope *entities.Scope, id int64, dir entities.Direction) error {
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

	attr, err = fetchAttribute(ctx, tx, scope, id)
	if err != nil {
		return err
	}

	newRank, err := dir.Target(attr.Rank)
	if err != nil {
		return fmt.Errorf("failed to move attribute %d %s: %w", id, dir, err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE product_attribute
		SET display_rank = ?, updated_at = ?
		WHERE entity = ? AND display_rank = ? AND id <> ?
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
func (r *AttributeRepository) UpdateOrder(ctx context.Context, scope *entities.Scope, ids []int64) error {
	if err := entities.ValidateOrder(ids); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return writeError("begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
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

func fetchAttribute(ctx context.Context, q dbtx, scope *entities.Scope, id int64) (*entities.Attribute, error) {
	in, args := inClause(scope.Visible)
	row := q.QueryRowContext(ctx, `
		SELECT `+attributeColumns+`
		FROM product_attribute
		WHERE id = ? AND entity IN (`+in+`)
	`, append([]any{id}, args...)...)

	attr, err := scanAttribute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", entities.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attribute: %w", err)
	}

	return attr, nil
}

func normalizeEntity(ctx context.Context, tx *sql.Tx, entity int64) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, display_rank
		FROM product_attribute
		WHERE entity = ?
		ORDER BY display_rank ASC, id ASC
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
	// The single connection must be released before the updates below
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating attribute ranks: %w", err)
	}

	now := time.Now().UTC()
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
		SET display_rank = ?, updated_at = ?
		WHERE id = ?
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

// inClause expands ids into "?, ?, ?" with matching arguments
func inClause(ids []int64) (string, []any) {
	if len(ids) == 0 {
		return "NULL", nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}

func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// writeError classifies a store rejection
func writeError(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to %s: %w", op, entities.ErrDuplicateRef)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, entities.ErrWriteFailed, err)
}
