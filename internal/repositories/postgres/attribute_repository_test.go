package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/asakaida/catalogattr/internal/entities"
	"github.com/asakaida/catalogattr/internal/repositories"
)

func mustScope(t *testing.T, entity int64, shared ...int64) *entities.Scope {
	t.Helper()
	scope, err := entities.NewScope(entity, shared...)
	if err != nil {
		t.Fatalf("Failed to build scope: %v", err)
	}
	return scope
}

func createAttr(t *testing.T, repo repositories.AttributeRepository, scope *entities.Scope, ref string, rank int) int64 {
	t.Helper()
	id, err := repo.Create(context.Background(), scope, &entities.Attribute{Ref: ref, Label: ref + " label", Rank: rank})
	if err != nil {
		t.Fatalf("Failed to create attribute %s: %v", ref, err)
	}
	return id
}

func rankOf(t *testing.T, repo repositories.AttributeRepository, scope *entities.Scope, id int64) int {
	t.Helper()
	attr, err := repo.Fetch(context.Background(), scope, id)
	if err != nil {
		t.Fatalf("Failed to fetch attribute %d: %v", id, err)
	}
	return attr.Rank
}

func TestAttributeRepository_CreateAndFetch(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresAttributeRepository(db)
	ctx := context.Background()
	scope := mustScope(t, 1)

	t.Run("正常系: refは大文字で保存される", func(t *testing.T) {
		attr := &entities.Attribute{Ref: "color", Label: "Color", Rank: 0}
		id, err := repo.Create(ctx, scope, attr)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if id <= 0 || attr.ID != id {
			t.Fatalf("Expected positive id assigned to attribute, got %d / %d", id, attr.ID)
		}

		got, err := repo.Fetch(ctx, scope, id)
		if err != nil {
			t.Fatalf("Failed to fetch: %v", err)
		}
		if got.Ref != "COLOR" {
			t.Errorf("Expected ref COLOR, got %s", got.Ref)
		}
		if got.Label != "Color" || got.Entity != 1 {
			t.Errorf("Unexpected attribute: %v", got)
		}
	})

	t.Run("異常系: idが0", func(t *testing.T) {
		_, err := repo.Fetch(ctx, scope, 0)
		if !errors.Is(err, entities.ErrInvalidArgument) {
			t.Fatalf("Expected ErrInvalidArgument, got: %v", err)
		}
	})

	t.Run("異常系: 他テナントの属性は見えない", func(t *testing.T) {
		other := mustScope(t, 2)
		id := createAttr(t, repo, other, "size", 0)

		_, err := repo.Fetch(ctx, scope, id)
		if !errors.Is(err, entities.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got: %v", err)
		}

		shared := mustScope(t, 1, 2)
		if _, err := repo.Fetch(ctx, shared, id); err != nil {
			t.Fatalf("Expected shared entity to be visible, got: %v", err)
		}
	})

	t.Run("異常系: 同じrefの重複", func(t *testing.T) {
		createAttr(t, repo, scope, "material", 0)
		_, err := repo.Create(ctx, scope, &entities.Attribute{Ref: "MATERIAL", Label: "Material"})
		if !errors.Is(err, entities.ErrDuplicateRef) {
			t.Fatalf("Expected ErrDuplicateRef, got: %v", err)
		}
	})
}

func TestAttributeRepository_FetchAll(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresAttributeRepository(db)
	ctx := context.Background()
	scope := mustScope(t, 1)

	createAttr(t, repo, scope, "c", 3)
	createAttr(t, repo, scope, "a", 1)
	createAttr(t, repo, scope, "b", 2)
	createAttr(t, repo, mustScope(t, 9), "hidden", 0)

	attrs, err := repo.FetchAll(ctx, scope)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}
	for i, want := range []string{"A", "B", "C"} {
		if attrs[i].Ref != want {
			t.Errorf("attrs[%d].Ref = %s, want %s", i, attrs[i].Ref, want)
		}
	}
}

func TestAttributeRepository_UpdateAndDelete(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresAttributeRepository(db)
	ctx := context.Background()
	scope := mustScope(t, 1)
	id := createAttr(t, repo, scope, "color", 0)

	attr, err := repo.Fetch(ctx, scope, id)
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	attr.Ref = "colour"
	attr.Label = "Colour"
	attr.Rank = 4
	if err := repo.Update(ctx, attr); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got, err := repo.Fetch(ctx, scope, id)
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if got.Ref != "COLOUR" || got.Label != "Colour" || got.Rank != 4 {
		t.Errorf("Unexpected attribute after update: %v", got)
	}

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := repo.Fetch(ctx, scope, id); !errors.Is(err, entities.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got: %v", err)
	}
}

func insertCombination(t *testing.T, db *sql.DB, entity int64, attrID int64) {
	t.Helper()
	var combID int64
	err := db.QueryRow(`
		INSERT INTO product_attribute_combination (fk_product_parent, fk_product_child, entity)
		VALUES (1, 2, $1) RETURNING id
	`, entity).Scan(&combID)
	if err != nil {
		t.Fatalf("Failed to insert combination: %v", err)
	}
	_, err = db.Exec(`
		INSERT INTO product_attribute_combination2val (fk_prod_combination, fk_prod_attr, fk_prod_attr_val)
		VALUES ($1, $2, 1)
	`, combID, attrID)
	if err != nil {
		t.Fatalf("Failed to insert combination value: %v", err)
	}
}

func TestAttributeRepository_CountChildProducts(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresAttributeRepository(db)
	ctx := context.Background()
	scope := mustScope(t, 1)
	id := createAttr(t, repo, scope, "color", 0)

	insertCombination(t, db, 1, id)
	insertCombination(t, db, 1, id)
	insertCombination(t, db, 5, id)

	count, err := repo.CountChildProducts(ctx, scope, id)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 child products, got %d", count)
	}

	// Delete is unconditional
	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Expected delete to succeed, got: %v", err)
	}
}

func TestAttributeRepository_Ordering(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresAttributeRepository(db)
	ctx := context.Background()
	scope := mustScope(t, 1)

	red := createAttr(t, repo, scope, "red", 0)
	blue := createAttr(t, repo, scope, "BLUE", 0)
	green := createAttr(t, repo, scope, "green", 0)

	t.Run("正常系: 正規化で1..Nが割り当てられる", func(t *testing.T) {
		if err := repo.Normalize(ctx, scope); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		for id, want := range map[int64]int{red: 1, blue: 2, green: 3} {
			if got := rankOf(t, repo, scope, id); got != want {
				t.Errorf("rank of %d = %d, want %d", id, got, want)
			}
		}
	})

	t.Run("正常系: moveDownで隣と入れ替わる", func(t *testing.T) {
		if err := repo.Move(ctx, scope, red, entities.Down); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if got := rankOf(t, repo, scope, red); got != 2 {
			t.Errorf("red rank = %d, want 2", got)
		}
		if got := rankOf(t, repo, scope, blue); got != 1 {
			t.Errorf("blue rank = %d, want 1", got)
		}
		if got := rankOf(t, repo, scope, green); got != 3 {
			t.Errorf("green rank = %d, want 3", got)
		}
	})

	t.Run("異常系: 先頭のmoveUpは拒否される", func(t *testing.T) {
		err := repo.Move(ctx, scope, blue, entities.Up)
		if !errors.Is(err, entities.ErrAtBoundary) {
			t.Fatalf("Expected ErrAtBoundary, got: %v", err)
		}
		if got := rankOf(t, repo, scope, blue); got != 1 {
			t.Errorf("blue rank = %d, want 1", got)
		}
	})

	t.Run("異常系: 末尾のmoveDownは拒否される", func(t *testing.T) {
		err := repo.Move(ctx, scope, green, entities.Down)
		if !errors.Is(err, entities.ErrAtBoundary) {
			t.Fatalf("Expected ErrAtBoundary, got: %v", err)
		}
		if got := rankOf(t, repo, scope, green); got != 3 {
			t.Errorf("green rank = %d, want 3", got)
		}
	})

	t.Run("正常系: 一括並び替え", func(t *testing.T) {
		if err := repo.UpdateOrder(ctx, scope, []int64{green, red, blue}); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		for id, want := range map[int64]int{green: 0, red: 1, blue: 2} {
			if got := rankOf(t, repo, scope, id); got != want {
				t.Errorf("rank of %d = %d, want %d", id, got, want)
			}
		}
	})

	t.Run("異常系: 一括並び替えは存在しないidで全体がロールバックされる", func(t *testing.T) {
		err := repo.UpdateOrder(ctx, scope, []int64{blue, 999999})
		if !errors.Is(err, entities.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got: %v", err)
		}
		if got := rankOf(t, repo, scope, blue); got != 2 {
			t.Errorf("blue rank = %d, want 2 (unchanged)", got)
		}
	})
}

func TestSharingRepository_SharedEntities(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	_, err := db.Exec(`
		INSERT INTO entity_sharing (entity, element, shared_entity) VALUES
		(1, 'product', 3), (1, 'product', 2), (1, 'thirdparty', 4), (2, 'product', 1)
	`)
	if err != nil {
		t.Fatalf("Failed to insert sharing rules: %v", err)
	}

	repo := NewPostgresSharingRepository(db)
	shared, err := repo.SharedEntities(context.Background(), 1, entities.ProductElement)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(shared) != 2 || shared[0] != 2 || shared[1] != 3 {
		t.Errorf("Expected [2 3], got %v", shared)
	}
}
