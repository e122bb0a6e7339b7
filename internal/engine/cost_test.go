package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larder/internal/models"
	"larder/internal/store/memory"
)

func TestComputeCostAveragesRatios(t *testing.T) {
	st := memory.New()
	// Ratios 10/100 = 0.10 and 20/200 = 0.10, mean 0.10.
	seedBatch(t, st, "flour", "100", "10", 24*time.Hour)
	seedBatch(t, st, "flour", "200", "20", 48*time.Hour)

	analyzer := NewCostAnalyzer(st, testLogger())
	dish := testDish(t, "bread", "8", map[string]string{"flour": "50"})

	report, err := analyzer.ComputeCost(context.Background(), dish)
	require.NoError(t, err)
	assert.True(t, report.TotalCost.Equal(dec(t, "5")), "got %s", report.TotalCost)
	assert.True(t, report.MarginValue.Equal(dec(t, "3")))
	assert.True(t, report.MarginPercent.Equal(dec(t, "37.5")))
	assert.True(t, report.MarginDefined)
	assert.True(t, report.Complete)
}

func TestComputeCostMeanIsUnweighted(t *testing.T) {
	st := memory.New()
	// A tiny expensive batch and a huge cheap one. A weight-weighted mean
	// would sit near 0.10; the plain mean of ratios is 0.25.
	seedBatch(t, st, "saffron", "10", "4", 24*time.Hour)       // ratio 0.40
	seedBatch(t, st, "saffron", "10000", "1000", 48*time.Hour) // ratio 0.10

	analyzer := NewCostAnalyzer(st, testLogger())
	dish := testDish(t, "paella", "30", map[string]string{"saffron": "100"})

	report, err := analyzer.ComputeCost(context.Background(), dish)
	require.NoError(t, err)
	assert.True(t, report.TotalCost.Equal(dec(t, "25")), "got %s", report.TotalCost)
}

func TestComputeCostPrefersStoredRatio(t *testing.T) {
	st := memory.New()
	batch := models.IngredientBatch{
		Name:           "oil",
		Weight:         dec(t, "100"),
		Price:          dec(t, "10"), // computed ratio would be 0.10
		PriceRatio:     dec(t, "0.2"),
		AddedDate:      time.Now(),
		ExpirationDate: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, st.Save(context.Background(), &batch))

	analyzer := NewCostAnalyzer(st, testLogger())
	dish := testDish(t, "fries", "6", map[string]string{"oil": "10"})

	report, err := analyzer.ComputeCost(context.Background(), dish)
	require.NoError(t, err)
	assert.True(t, report.TotalCost.Equal(dec(t, "2")), "got %s", report.TotalCost)
}

func TestComputeCostMissingIngredientIsIncomplete(t *testing.T) {
	st := memory.New()
	seedBatch(t, st, "flour", "100", "10", 24*time.Hour)

	analyzer := NewCostAnalyzer(st, testLogger())
	dish := testDish(t, "pie", "20", map[string]string{"flour": "50", "unicorn": "5"})

	report, err := analyzer.ComputeCost(context.Background(), dish)
	require.NoError(t, err)
	assert.False(t, report.Complete)

	var missing *IngredientCost
	for i := range report.PerIngredient {
		if report.PerIngredient[i].Ingredient == "unicorn" {
			missing = &report.PerIngredient[i]
		}
	}
	require.NotNil(t, missing)
	assert.False(t, missing.HasData)
	assert.True(t, missing.Cost.IsZero())
	// Total only covers priced ingredients.
	assert.True(t, report.TotalCost.Equal(dec(t, "5")))
}

func TestComputeCostZeroPriceMarginUndefined(t *testing.T) {
	st := memory.New()
	seedBatch(t, st, "flour", "100", "10", 24*time.Hour)

	analyzer := NewCostAnalyzer(st, testLogger())
	dish := &models.Dish{
		Name:  "staff-meal",
		Price: decimal.Zero,
		Recipe: []models.IngredientRequirement{
			{IngredientName: "flour", WeightPerPortion: dec(t, "50")},
		},
	}

	report, err := analyzer.ComputeCost(context.Background(), dish)
	require.NoError(t, err)
	assert.False(t, report.MarginDefined)
	assert.True(t, report.MarginValue.Equal(dec(t, "-5")))
	assert.True(t, report.MarginPercent.IsZero())
}

func TestComputeCostSkipsZeroWeightBatchWithoutRatio(t *testing.T) {
	st := memory.New()
	drained := models.IngredientBatch{
		Name:           "flour",
		Weight:         decimal.Zero,
		Price:          dec(t, "10"),
		AddedDate:      time.Now(),
		ExpirationDate: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, st.Save(context.Background(), &drained))
	seedBatch(t, st, "flour", "100", "10", 48*time.Hour)

	analyzer := NewCostAnalyzer(st, testLogger())
	dish := testDish(t, "bread", "8", map[string]string{"flour": "50"})

	report, err := analyzer.ComputeCost(context.Background(), dish)
	require.NoError(t, err)
	// Only the live batch's 0.10 ratio counts.
	assert.True(t, report.TotalCost.Equal(dec(t, "5")))
}
