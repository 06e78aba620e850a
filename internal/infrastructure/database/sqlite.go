package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// sqliteSchema mirrors the PostgreSQL migrations for embedded use.
// No foreign keys from combination rows: deleting an attribute never cascades.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS product_attribute (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ref           TEXT NOT NULL,
	label         TEXT NOT NULL,
	display_rank  INTEGER NOT NULL DEFAULT 0 CHECK (display_rank >= 0),
	entity        INTEGER NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS uk_product_attribute_entity_ref
	ON product_attribute (entity, ref);

CREATE INDEX IF NOT EXISTS idx_product_attribute_entity_rank
	ON product_attribute (entity, display_rank, id);

CREATE TABLE IF NOT EXISTS product_attribute_combination (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	fk_product_parent  INTEGER NOT NULL,
	fk_product_child   INTEGER NOT NULL,
	entity             INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS product_attribute_combination2val (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	fk_prod_combination  INTEGER NOT NULL,
	fk_prod_attr         INTEGER NOT NULL,
	fk_prod_attr_val     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pac2v_attr ON product_attribute_combination2val (fk_prod_attr);

CREATE TABLE IF NOT EXISTS entity_sharing (
	entity         INTEGER NOT NULL,
	element        TEXT NOT NULL,
	shared_entity  INTEGER NOT NULL,
	PRIMARY KEY (entity, element, shared_entity)
);
`

// SQLite represents an embedded SQLite database
type SQLite struct {
	DB *sql.DB
}

// NewSQLite opens (or creates) the SQLite database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single connection also keeps
	// ":memory:" databases from being per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLite{DB: db}, nil
}

// HealthCheck checks if the database connection is healthy
func (s *SQLite) HealthCheck() error {
	return healthCheck(s.DB)
}

// Close closes the database connection
func (s *SQLite) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
