package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/asakaida/catalogattr/internal/entities"
	"github.com/asakaida/catalogattr/internal/infrastructure/database"
	"github.com/asakaida/catalogattr/internal/repositories"
	"github.com/asakaida/catalogattr/internal/repositories/sqlite"
	"github.com/asakaida/catalogattr/internal/services/filter"
	"github.com/asakaida/catalogattr/internal/services/tenancy"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type serviceFixture struct {
	service *AttributeService
	sharing repositories.SharingRepository
	db      *sql.DB
	logs    *observer.ObservedLogs
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	store, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := filter.NewEngine()
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	sharing := sqlite.NewSharingRepository(store.DB)
	resolver := tenancy.NewResolver(sharing, nil, 0, nil)

	return &serviceFixture{
		service: NewAttributeService(sqlite.NewAttributeRepository(store.DB), resolver, engine, zap.New(core)),
		sharing: sharing,
		db:      store.DB,
		logs:    logs,
	}
}

func (f *serviceFixture) create(t *testing.T, entity int64, ref string) int64 {
	t.Helper()
	id, err := f.service.Create(context.Background(), entity, &entities.Attribute{Ref: ref, Label: ref})
	require.NoError(t, err)
	return id
}

func (f *serviceFixture) order(t *testing.T, entity int64) []string {
	t.Helper()
	attrs, err := f.service.FetchAll(context.Background(), entity, "")
	require.NoError(t, err)
	refs := make([]string, len(attrs))
	for i, attr := range attrs {
		refs[i] = attr.Ref
	}
	return refs
}

func TestAttributeService_CreateAndFetch(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	id := f.create(t, 1, "color")

	attr, err := f.service.Fetch(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, "COLOR", attr.Ref)
	assert.Equal(t, int64(1), attr.Entity)

	_, err = f.service.Fetch(ctx, 2, id)
	assert.ErrorIs(t, err, entities.ErrNotFound)

	_, err = f.service.Fetch(ctx, 0, id)
	assert.ErrorIs(t, err, entities.ErrInvalidArgument)

	_, err = f.service.Create(ctx, 1, nil)
	assert.ErrorIs(t, err, entities.ErrInvalidArgument)

	created := f.logs.FilterMessage("attribute created").All()
	require.Len(t, created, 1)
	assert.Equal(t, "COLOR", created[0].ContextMap()["ref"])
}

func TestAttributeService_SharedVisibility(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	theirs := f.create(t, 2, "size")
	f.create(t, 1, "color")

	_, err := f.service.Fetch(ctx, 1, theirs)
	require.ErrorIs(t, err, entities.ErrNotFound)

	require.NoError(t, f.sharing.Share(ctx, 1, entities.ProductElement, 2))

	attr, err := f.service.Fetch(ctx, 1, theirs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), attr.Entity)
	assert.Len(t, f.order(t, 1), 2)
	assert.Len(t, f.order(t, 2), 1)
}

func TestAttributeService_Update(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	id := f.create(t, 1, "color")

	t.Run("overwrites visible attribute", func(t *testing.T) {
		err := f.service.Update(ctx, 1, &entities.Attribute{ID: id, Ref: "colour", Label: "Colour", Rank: 3})
		require.NoError(t, err)

		attr, err := f.service.Fetch(ctx, 1, id)
		require.NoError(t, err)
		assert.Equal(t, "COLOUR", attr.Ref)
		assert.Equal(t, 3, attr.Rank)
		assert.Equal(t, int64(1), attr.Entity)
	})

	t.Run("invisible attribute is not found", func(t *testing.T) {
		err := f.service.Update(ctx, 2, &entities.Attribute{ID: id, Ref: "x", Label: "x"})
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})

	t.Run("zero id is invalid", func(t *testing.T) {
		err := f.service.Update(ctx, 1, &entities.Attribute{Ref: "x", Label: "x"})
		assert.ErrorIs(t, err, entities.ErrInvalidArgument)
	})
}

func TestAttributeService_FetchAllFilter(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.create(t, 1, "color")
	f.create(t, 1, "size")
	f.create(t, 1, "collar")
	require.NoError(t, f.service.Normalize(ctx, 1))

	attrs, err := f.service.FetchAll(ctx, 1, `attribute.ref.startsWith("CO")`)
	require.NoError(t, err)
	refs := make([]string, len(attrs))
	for i, attr := range attrs {
		refs[i] = attr.Ref
	}
	if diff := cmp.Diff([]string{"COLOR", "COLLAR"}, refs); diff != "" {
		t.Errorf("filtered refs mismatch (-want +got):\n%s", diff)
	}

	_, err = f.service.FetchAll(ctx, 1, `attribute.ref +`)
	assert.ErrorIs(t, err, entities.ErrInvalidArgument)
}

func TestAttributeService_Ordering(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	red := f.create(t, 1, "red")
	blue := f.create(t, 1, "blue")
	green := f.create(t, 1, "green")

	require.NoError(t, f.service.Normalize(ctx, 1))
	if diff := cmp.Diff([]string{"RED", "BLUE", "GREEN"}, f.order(t, 1)); diff != "" {
		t.Errorf("order after normalize (-want +got):\n%s", diff)
	}

	require.NoError(t, f.service.MoveDown(ctx, 1, red))
	if diff := cmp.Diff([]string{"BLUE", "RED", "GREEN"}, f.order(t, 1)); diff != "" {
		t.Errorf("order after move down (-want +got):\n%s", diff)
	}

	assert.ErrorIs(t, f.service.MoveUp(ctx, 1, blue), entities.ErrAtBoundary)
	assert.ErrorIs(t, f.service.MoveDown(ctx, 1, green), entities.ErrAtBoundary)

	require.NoError(t, f.service.MoveUp(ctx, 1, green))
	if diff := cmp.Diff([]string{"BLUE", "GREEN", "RED"}, f.order(t, 1)); diff != "" {
		t.Errorf("order after move up (-want +got):\n%s", diff)
	}

	require.NoError(t, f.service.UpdateOrder(ctx, 1, []int64{red, blue, green}))
	if diff := cmp.Diff([]string{"RED", "BLUE", "GREEN"}, f.order(t, 1)); diff != "" {
		t.Errorf("order after bulk update (-want +got):\n%s", diff)
	}

	assert.Equal(t, 2, f.logs.FilterMessage("attribute moved").Len())
}

func (f *serviceFixture) addCombination(t *testing.T, entity, attrID int64) {
	t.Helper()
	res, err := f.db.Exec(`
		INSERT INTO product_attribute_combination (fk_product_parent, fk_product_child, entity)
		VALUES (1, 2, ?)
	`, entity)
	require.NoError(t, err)
	combID, err := res.LastInsertId()
	require.NoError(t, err)
	_, err = f.db.Exec(`
		INSERT INTO product_attribute_combination2val (fk_prod_combination, fk_prod_attr, fk_prod_attr_val)
		VALUES (?, ?, 1)
	`, combID, attrID)
	require.NoError(t, err)
}

func TestAttributeService_DeleteWithChildren(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	id := f.create(t, 1, "color")

	f.addCombination(t, 1, id)
	f.addCombination(t, 1, id)

	count, err := f.service.CountChildProducts(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, f.service.Delete(ctx, 1, id))
	_, err = f.service.Fetch(ctx, 1, id)
	assert.ErrorIs(t, err, entities.ErrNotFound)

	var remaining int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM product_attribute_combination2val WHERE fk_prod_attr = ?`, id).Scan(&remaining))
	assert.Equal(t, 2, remaining, "delete must not cascade to combination rows")
	assert.Equal(t, 1, f.logs.FilterMessage("attribute deleted").Len())
}

func TestAttributeService_DeleteInvisible(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	id := f.create(t, 1, "color")

	err := f.service.Delete(ctx, 2, id)
	assert.ErrorIs(t, err, entities.ErrNotFound)

	got, err := f.service.Fetch(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, "COLOR", got.Ref)
	assert.Zero(t, f.logs.FilterMessage("attribute deleted").Len())

	require.NoError(t, f.sharing.Share(ctx, 2, entities.ProductElement, 1))
	require.NoError(t, f.service.Delete(ctx, 2, id), "shared attributes may be deleted by the sharing entity")
	_, err = f.service.Fetch(ctx, 1, id)
	assert.ErrorIs(t, err, entities.ErrNotFound)
}
