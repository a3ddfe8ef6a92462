package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iCADcl/IDEFWeb/internal/domain"
)

func product(id string, price float64) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     "Diplomado " + id,
		Slug:     "diplomado-" + id,
		Price:    decimal.NewFromFloat(price),
		Currency: "USD",
		IsActive: true,
	}
}

func newTestStore(t *testing.T) (*Store, *MemoryStorage) {
	storage := NewMemoryStorage()
	store, err := NewStore(context.Background(), storage, "session-1")
	require.NoError(t, err)
	return store, storage
}

func TestAddItem_NewLine(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.AddItem(ctx, product("A", 100), 1)
	require.NoError(t, err)

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "A", lines[0].ProductID)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Equal(t, "Diplomado A", lines[0].Name)
}

func TestAddItem_SameProductMergesQuantity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, product("A", 100), 1))
	require.NoError(t, store.AddItem(ctx, product("A", 100), 2))

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, 3, store.ItemCount())
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.AddItem(ctx, product("A", 100), 0), ErrInvalidQuantity)
	assert.ErrorIs(t, store.AddItem(ctx, product("A", 100), -2), ErrInvalidQuantity)
	assert.Empty(t, store.Lines())
}

func TestAddItem_KeepsInsertionOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, product("A", 100), 1))
	require.NoError(t, store.AddItem(ctx, product("B", 50), 1))
	require.NoError(t, store.AddItem(ctx, product("A", 100), 1))

	lines := store.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "A", lines[0].ProductID)
	assert.Equal(t, "B", lines[1].ProductID)
}

func TestRemoveItem_AbsentIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, product("A", 100), 1))
	require.NoError(t, store.RemoveItem(ctx, "missing"))
	assert.Len(t, store.Lines(), 1)
}

func TestUpdateQuantity_SetsExactValue(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, product("A", 100), 2))
	require.NoError(t, store.UpdateQuantity(ctx, "A", 5))

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestUpdateQuantity_ZeroRemovesLine(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, product("A", 100), 2))
	require.NoError(t, store.UpdateQuantity(ctx, "A", 0))

	assert.Empty(t, store.Lines())
	assert.Equal(t, 0, store.ItemCount())
}

func TestUpdateQuantity_AbsentIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, product("A", 100), 1))
	require.NoError(t, store.UpdateQuantity(ctx, "missing", 3))

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "A", lines[0].ProductID)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestTotal_SumsUnitPriceTimesQuantity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, product("A", 100), 1))
	require.NoError(t, store.AddItem(ctx, product("B", 50), 2))

	assert.True(t, store.Total().Equal(decimal.NewFromInt(200)),
		"expected 200, got %s", store.Total())
	assert.Equal(t, "200.00", store.Total().StringFixed(2))
}

func TestTotal_ExactWithFractionalPrices(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// 3 x 539.99 accumulates a rounding error in binary floating point.
	require.NoError(t, store.AddItem(ctx, product("A", 539.99), 3))

	assert.Equal(t, "1619.97", store.Total().StringFixed(2))
}

func TestClear_EmptiesCartAndStorage(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, product("A", 100), 1))
	require.NoError(t, store.Clear(ctx))

	assert.True(t, store.Total().IsZero())
	assert.Equal(t, 0, store.ItemCount())

	_, err := storage.Load(ctx, "session-1")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestStore_WriteThroughAndRehydrate(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, product("A", 100), 1))
	require.NoError(t, store.AddItem(ctx, product("B", 50), 2))

	// A new Store over the same storage sees the persisted state.
	reloaded, err := NewStore(ctx, storage, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.ItemCount())
	assert.Equal(t, "200.00", reloaded.Total().StringFixed(2))
}

type failingStorage struct {
	*MemoryStorage
	failSave bool
}

func (f *failingStorage) Save(ctx context.Context, sessionID string, cart *domain.Cart) error {
	if f.failSave {
		return errors.New("storage down")
	}
	return f.MemoryStorage.Save(ctx, sessionID, cart)
}

func TestStore_MutationNotVisibleWhenPersistFails(t *testing.T) {
	storage := &failingStorage{MemoryStorage: NewMemoryStorage()}
	store, err := NewStore(context.Background(), storage, "session-1")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, product("A", 100), 1))

	storage.failSave = true
	require.Error(t, store.AddItem(ctx, product("B", 50), 1))

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "A", lines[0].ProductID)
}
