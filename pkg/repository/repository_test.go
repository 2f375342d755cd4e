package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/customsledger/pkg/db/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID        int64 `gorm:"primaryKey"`
	Name      string
	Size      int
	CreatedAt time.Time
}

func setupStore(t *testing.T) Repository[widget] {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))
	return ProvideStore[widget](db)
}

func TestStoreFindAppliesOptions(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.BatchCreate(ctx, []*widget{
		{ID: 1, Name: "a", Size: 1, CreatedAt: base},
		{ID: 2, Name: "b", Size: 5, CreatedAt: base.Add(time.Hour)},
		{ID: 3, Name: "c", Size: 9, CreatedAt: base.Add(2 * time.Hour)},
	}))

	rows, err := store.Find(ctx, &widget{},
		option.ApplyOperator(option.Condition{Field: "size", Operator: option.GTE, Value: 5}),
		option.WithQuerySortBy("created_at", "asc", map[string]bool{"created_at": true}),
	)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].Name)
	assert.Equal(t, "c", rows[1].Name)
}

func TestStoreFindOneMissingReturnsNil(t *testing.T) {
	store := setupStore(t)
	row, err := store.FindOne(context.Background(), &widget{Name: "missing"})
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestStoreUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	require.NoError(t, store.Create(ctx, &widget{ID: 7, Name: "x", Size: 1}))

	require.NoError(t, store.Update(ctx, int64(7), map[string]any{"size": 3}))
	row, err := store.FindOne(ctx, &widget{ID: 7})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 3, row.Size)

	deleted, err := store.Delete(ctx, int64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	count, err := store.Count(ctx, &widget{})
	require.NoError(t, err)
	assert.Zero(t, count)

	deleted, err = store.Delete(ctx, int64(7))
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
