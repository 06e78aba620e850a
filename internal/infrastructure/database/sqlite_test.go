package database

import (
	"path/filepath"
	"testing"
)

func TestNewSQLite_InMemory(t *testing.T) {
	db, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer db.Close()

	if err := db.HealthCheck(); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	tables := []string{
		"product_attribute",
		"product_attribute_combination",
		"product_attribute_combination2val",
		"entity_sharing",
	}
	for _, table := range tables {
		var name string
		err := db.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}
}

func TestNewSQLite_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attrs.db")

	db, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	if _, err := db.DB.Exec(`INSERT INTO product_attribute (ref, label, entity) VALUES ('COLOR', 'Color', 1)`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Schema creation must be idempotent
	db, err = NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() reopen error = %v", err)
	}
	defer db.Close()

	var count int
	if err := db.DB.QueryRow(`SELECT COUNT(*) FROM product_attribute`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 attribute after reopen, got %d", count)
	}
}

func TestSQLite_CloseNil(t *testing.T) {
	s := &SQLite{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}
