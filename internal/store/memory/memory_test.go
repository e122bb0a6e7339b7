package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larder/internal/models"
	"larder/internal/store"
)

func newBatch(name string, weight int64, expiresIn time.Duration) models.IngredientBatch {
	now := time.Now()
	return models.IngredientBatch{
		Name:           name,
		Weight:         decimal.NewFromInt(weight),
		Price:          decimal.NewFromInt(weight / 10),
		AddedDate:      now,
		ExpirationDate: now.Add(expiresIn),
	}
}

func TestFindByNameSortsByExpiration(t *testing.T) {
	st := New()
	ctx := context.Background()

	late := newBatch("flour", 100, 72*time.Hour)
	early := newBatch("flour", 100, 24*time.Hour)
	other := newBatch("sugar", 100, time.Hour)
	require.NoError(t, st.Save(ctx, &late))
	require.NoError(t, st.Save(ctx, &early))
	require.NoError(t, st.Save(ctx, &other))

	got, err := st.FindByName(ctx, "flour")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.ID, got[0].ID)
	assert.Equal(t, late.ID, got[1].ID)
}

func TestSaveAssignsAndUpdates(t *testing.T) {
	st := New()
	ctx := context.Background()

	batch := newBatch("flour", 100, time.Hour)
	require.NoError(t, st.Save(ctx, &batch))
	require.NotZero(t, batch.ID)

	batch.Weight = decimal.NewFromInt(40)
	require.NoError(t, st.Save(ctx, &batch))

	got, err := st.FindByName(ctx, "flour")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Weight.Equal(decimal.NewFromInt(40)))

	missing := newBatch("flour", 10, time.Hour)
	missing.ID = 999
	assert.ErrorIs(t, st.Save(ctx, &missing), store.ErrNotFound)
}

func TestFindByDateRange(t *testing.T) {
	st := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

	for _, offset := range []int{-2, -1, 0, 1} {
		order := &models.Order{OrderDate: base.AddDate(0, 0, offset)}
		require.NoError(t, st.Append(ctx, order))
	}

	got, err := st.FindByDateRange(ctx, base.AddDate(0, 0, -1), base.AddDate(0, 0, 1))
	require.NoError(t, err)
	// Start is inclusive, end exclusive.
	assert.Len(t, got, 2)
}

func TestCommitOrderIsAllOrNothing(t *testing.T) {
	st := New()
	ctx := context.Background()

	batch := newBatch("flour", 100, time.Hour)
	require.NoError(t, st.Save(ctx, &batch))

	// A stale batch ID poisons the whole commit.
	good := batch
	good.Weight = decimal.NewFromInt(50)
	bad := newBatch("flour", 10, time.Hour)
	bad.ID = 999

	err := st.CommitOrder(ctx, []models.IngredientBatch{good, bad}, &models.Order{OrderDate: time.Now()})
	require.Error(t, err)

	// Neither the good batch write nor the order append went through.
	batches, err := st.FindByName(ctx, "flour")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.True(t, batches[0].Weight.Equal(decimal.NewFromInt(100)))

	orders, err := st.FindByDateRange(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestDishCatalogRoundTrip(t *testing.T) {
	st := New()
	ctx := context.Background()

	dish := &models.Dish{
		Name:  "bread",
		Price: decimal.NewFromInt(5),
		Recipe: []models.IngredientRequirement{
			{IngredientName: "flour", WeightPerPortion: decimal.NewFromInt(200)},
		},
	}
	require.NoError(t, st.SaveDish(ctx, dish))

	got, err := st.GetDish(ctx, "bread")
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)

	require.NoError(t, st.SetAvailability(ctx, "bread", true))
	got, err = st.GetDish(ctx, "bread")
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)

	// Mutating the returned copy must not leak into the store.
	got.Recipe[0].WeightPerPortion = decimal.NewFromInt(999)
	again, err := st.GetDish(ctx, "bread")
	require.NoError(t, err)
	assert.True(t, again.Recipe[0].WeightPerPortion.Equal(decimal.NewFromInt(200)))

	_, err = st.GetDish(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, st.SetAvailability(ctx, "ghost", true), store.ErrNotFound)
}

func TestUpdateLineStatus(t *testing.T) {
	st := New()
	ctx := context.Background()

	order := &models.Order{
		OrderDate: time.Now(),
		Lines: []models.OrderLine{{
			DishSnapshot: models.Dish{Name: "bread"},
			Quantity:     1,
			Status:       models.LineStatusUnprepared,
		}},
	}
	require.NoError(t, st.Append(ctx, order))

	require.NoError(t, st.UpdateLineStatus(ctx, order.ID, 0, models.LineStatusReady))
	got, err := st.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LineStatusReady, got.Lines[0].Status)

	assert.ErrorIs(t, st.UpdateLineStatus(ctx, order.ID, 5, models.LineStatusReady), store.ErrNotFound)
	assert.ErrorIs(t, st.UpdateLineStatus(ctx, 999, 0, models.LineStatusReady), store.ErrNotFound)
}
