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

// refWednesday is a fixed reference instant (a Wednesday) so bucket indexes
// are stable in assertions.
var refWednesday = time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)

func appendHistoricalOrder(t *testing.T, st *memory.Store, dish string, qty int, at time.Time) {
	t.Helper()
	order := &models.Order{
		Lines: []models.OrderLine{{
			DishSnapshot: models.Dish{Name: dish, Price: dec(t, "8")},
			Quantity:     qty,
			Status:       models.LineStatusServed,
		}},
		TotalPrice: dec(t, "8"),
		OrderDate:  at,
	}
	require.NoError(t, st.Append(context.Background(), order))
}

func newTestForecaster(st *memory.Store, cfg ForecastConfig) *Forecaster {
	costs := NewCostAnalyzer(st, testLogger())
	f := NewForecaster(st, st, costs, cfg, nil, testLogger())
	f.now = func() time.Time { return refWednesday }
	return f
}

func TestLinearFit(t *testing.T) {
	slope, intercept, err := linearFit([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, slope, 1e-9)
	assert.InDelta(t, 1.0, intercept, 1e-9)

	_, _, err = linearFit([]float64{5})
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestForecastClampsExtremeChanges(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	seedBatch(t, st, "flour", "1000", "100", 240*time.Hour)
	dish := testDish(t, "bread", "8", map[string]string{"flour": "50"})
	require.NoError(t, st.SaveDish(ctx, dish))

	// Same-season Wednesdays a year apart: 10 -> 25 is a +150% change,
	// which must be clamped to +50% before it is applied.
	appendHistoricalOrder(t, st, "bread", 10, refWednesday.AddDate(-1, 0, 1).Add(-2*time.Hour)) // Wed 2025-03-19
	appendHistoricalOrder(t, st, "bread", 25, refWednesday.Add(-2*time.Hour))                   // Wed 2026-03-18

	// The prior-year Thursday is empty while this year's has orders: a zero
	// prior bucket means 0% change, not a division error.
	appendHistoricalOrder(t, st, "bread", 5, refWednesday.AddDate(0, 0, 1))

	f := newTestForecaster(st, DefaultForecastConfig())
	df, err := f.ForecastDish(ctx, "bread")
	require.NoError(t, err)
	require.Len(t, df.Projections, 7)

	baseline := 25.0 / 30.0
	// Buckets Thursday..Tuesday carry 0% change, so the walk holds at the
	// baseline until the Wednesday step applies the clamped +50%.
	assert.InDelta(t, baseline, df.Projections[0].ChangeModel, 1e-9)
	assert.InDelta(t, baseline*1.5, df.Projections[6].ChangeModel, 1e-9)
}

func TestForecastBlendsModels(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	seedBatch(t, st, "flour", "1000", "100", 240*time.Hour)
	require.NoError(t, st.SaveDish(ctx, testDish(t, "bread", "8", map[string]string{"flour": "50"})))

	// Steady 6 portions per day over the trailing month.
	for day := 1; day <= 30; day++ {
		appendHistoricalOrder(t, st, "bread", 6, refWednesday.AddDate(0, 0, -day))
	}

	f := newTestForecaster(st, DefaultForecastConfig())
	df, err := f.ForecastDish(ctx, "bread")
	require.NoError(t, err)
	assert.False(t, df.LowConfidence)

	for _, p := range df.Projections {
		assert.InDelta(t, (p.ChangeModel+p.Regression)/2, p.Quantity, 1e-9)
		// Unit margin is 8 - 50*0.10 = 3 per portion.
		expected := 3.0 * p.Quantity
		got, _ := p.Revenue.Float64()
		assert.InDelta(t, expected, got, 1e-6)
	}
}

func TestForecastInsufficientHistoryIsLowConfidence(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	seedBatch(t, st, "flour", "1000", "100", 240*time.Hour)
	require.NoError(t, st.SaveDish(ctx, testDish(t, "bread", "8", map[string]string{"flour": "50"})))

	f := newTestForecaster(st, DefaultForecastConfig())
	df, err := f.ForecastDish(ctx, "bread")
	require.NoError(t, err)

	// No history at all: a flagged partial result, not a failure.
	assert.True(t, df.LowConfidence)
	assert.Zero(t, df.TotalQuantity)
	assert.True(t, df.TotalRevenue.IsZero())
}

func TestForecastRevenueRanksDishes(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	seedBatch(t, st, "flour", "1000", "100", 240*time.Hour)
	seedBatch(t, st, "beef", "1000", "900", 240*time.Hour)
	require.NoError(t, st.SaveDish(ctx, testDish(t, "bread", "8", map[string]string{"flour": "50"})))
	require.NoError(t, st.SaveDish(ctx, testDish(t, "steak", "30", map[string]string{"beef": "200"})))

	for day := 1; day <= 30; day++ {
		appendHistoricalOrder(t, st, "bread", 2, refWednesday.AddDate(0, 0, -day))
		appendHistoricalOrder(t, st, "steak", 4, refWednesday.AddDate(0, 0, -day))
	}

	f := newTestForecaster(st, DefaultForecastConfig())
	forecast, err := f.ForecastRevenue(ctx)
	require.NoError(t, err)
	require.Len(t, forecast.Dishes, 2)

	// Steak sells twice the volume but loses money per portion (cost 180
	// against a 30 price), so ranking by revenue puts bread first.
	assert.Equal(t, "bread", forecast.Dishes[0].Dish)
	assert.Equal(t, "steak", forecast.Dishes[1].Dish)
	assert.True(t, forecast.Dishes[0].TotalRevenue.GreaterThan(forecast.Dishes[1].TotalRevenue))
}

func TestForecastUsesConfiguredWindow(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	seedBatch(t, st, "flour", "1000", "100", 240*time.Hour)
	require.NoError(t, st.SaveDish(ctx, testDish(t, "bread", "8", map[string]string{"flour": "50"})))

	// Rising trend over the two days before the reference.
	appendHistoricalOrder(t, st, "bread", 3, refWednesday.AddDate(0, 0, -2))
	appendHistoricalOrder(t, st, "bread", 4, refWednesday.AddDate(0, 0, -1))

	cfg := DefaultForecastConfig()
	cfg.RegressionWindow = 3
	f := newTestForecaster(st, cfg)

	slope, _, points, err := f.fitRecentTrend(ctx, "bread", refWednesday, 10)
	require.NoError(t, err)
	// Two daily totals plus the baseline standing in as the newest point.
	assert.Equal(t, 3, points)
	assert.Positive(t, slope)
}
