package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larder/internal/models"
	"larder/internal/store/memory"
)

func testDish(t *testing.T, name, price string, reqs map[string]string) *models.Dish {
	t.Helper()
	dish := &models.Dish{Name: name, Price: dec(t, price)}
	for ingredient, weight := range reqs {
		dish.Recipe = append(dish.Recipe, models.IngredientRequirement{
			IngredientName:   ingredient,
			WeightPerPortion: dec(t, weight),
		})
	}
	return dish
}

func TestMaxPortionsBottleneck(t *testing.T) {
	st := memory.New()
	seedBatch(t, st, "flour", "400", "40", 24*time.Hour)
	seedBatch(t, st, "flour", "200", "20", 48*time.Hour)
	seedBatch(t, st, "beef", "450", "300", 24*time.Hour)

	calc := NewFeasibilityCalculator(st, st, testLogger())
	dish := testDish(t, "pie", "25", map[string]string{"flour": "200", "beef": "150"})

	report, err := calc.MaxPortions(context.Background(), dish)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Portions)
}

func TestMaxPortionsReportsLimitingIngredient(t *testing.T) {
	st := memory.New()
	seedBatch(t, st, "flour", "600", "60", 24*time.Hour)
	seedBatch(t, st, "beef", "300", "200", 24*time.Hour)

	calc := NewFeasibilityCalculator(st, st, testLogger())
	dish := testDish(t, "pie", "25", map[string]string{"flour": "200", "beef": "150"})

	report, err := calc.MaxPortions(context.Background(), dish)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Portions)
	assert.Equal(t, "beef", report.LimitingIngredient)
}

func TestMaxPortionsMissingIngredientBlocks(t *testing.T) {
	st := memory.New()
	seedBatch(t, st, "flour", "600", "60", 24*time.Hour)

	calc := NewFeasibilityCalculator(st, st, testLogger())
	dish := testDish(t, "pie", "25", map[string]string{"flour": "200", "beef": "150"})

	report, err := calc.MaxPortions(context.Background(), dish)
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Portions)
	assert.Equal(t, "beef", report.LimitingIngredient)
}

func TestIsAvailableRequiresSingleCoveringBatch(t *testing.T) {
	st := memory.New()
	// Aggregate 120 >= 100, but no single batch covers one portion.
	seedBatch(t, st, "flour", "60", "6", 24*time.Hour)
	seedBatch(t, st, "flour", "60", "6", 48*time.Hour)

	calc := NewFeasibilityCalculator(st, st, testLogger())
	dish := testDish(t, "bread", "5", map[string]string{"flour": "100"})

	available, err := calc.IsAvailable(context.Background(), dish)
	require.NoError(t, err)
	assert.False(t, available)

	// The pooled view still yields one portion.
	report, err := calc.MaxPortions(context.Background(), dish)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Portions)
}

func TestIsAvailableTrueWithCoveringBatch(t *testing.T) {
	st := memory.New()
	seedBatch(t, st, "flour", "150", "15", 24*time.Hour)

	calc := NewFeasibilityCalculator(st, st, testLogger())
	dish := testDish(t, "bread", "5", map[string]string{"flour": "100"})

	available, err := calc.IsAvailable(context.Background(), dish)
	require.NoError(t, err)
	assert.True(t, available)
}

func TestRefreshAvailabilityPersistsFlags(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	seedBatch(t, st, "flour", "150", "15", 24*time.Hour)

	bread := testDish(t, "bread", "5", map[string]string{"flour": "100"})
	cake := testDish(t, "cake", "12", map[string]string{"flour": "100", "sugar": "50"})
	cake.IsAvailable = true // stale cached flag
	require.NoError(t, st.SaveDish(ctx, bread))
	require.NoError(t, st.SaveDish(ctx, cake))

	calc := NewFeasibilityCalculator(st, st, testLogger())
	changed, err := calc.RefreshAvailability(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	got, err := st.GetDish(ctx, "bread")
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)

	got, err = st.GetDish(ctx, "cake")
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)
}
