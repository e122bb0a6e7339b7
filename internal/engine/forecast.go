package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"larder/internal/models"
	"larder/internal/store"
)

// Period selects the bucketing scheme for historical order series.
type Period string

const (
	// PeriodWeek buckets by day of week.
	PeriodWeek Period = "week"
	// PeriodMonth buckets by day of month.
	PeriodMonth Period = "month"
	// PeriodYear buckets by month of year.
	PeriodYear Period = "year"
)

// ForecastConfig tunes the forecaster. The source system shipped several
// near-identical variants differing only in these numbers, so they are
// configuration rather than code.
type ForecastConfig struct {
	// Period is the bucketing scheme.
	Period Period
	// Horizon is how many future buckets to project.
	Horizon int
	// RegressionWindow is how many recent points feed the regression,
	// including the trailing baseline as the most recent one. Known-good
	// values from the source: 3, 4, 5 and 12.
	RegressionWindow int
	// MaxChangePercent bounds each averaged period-over-period change.
	// Sparse history produces wild swings; they are not trusted past this.
	MaxChangePercent float64
	// YearsBack is how many seasons of history feed the change model.
	YearsBack int
}

// DefaultForecastConfig returns the forecaster defaults.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		Period:           PeriodWeek,
		Horizon:          7,
		RegressionWindow: 5,
		MaxChangePercent: 50,
		YearsBack:        2,
	}
}

// BucketProjection is the forecast for one future bucket: both model outputs,
// their blend, and the revenue the blend implies.
type BucketProjection struct {
	Bucket      int             `json:"bucket"`
	ChangeModel float64         `json:"change_model"`
	Regression  float64         `json:"regression"`
	Quantity    float64         `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// DishForecast is the projection for one dish over the horizon.
// LowConfidence marks a partial result where the regression model had too few
// points and the blend fell back to the change model alone.
type DishForecast struct {
	Dish          string             `json:"dish"`
	Price         decimal.Decimal    `json:"price"`
	UnitCost      decimal.Decimal    `json:"unit_cost"`
	UnitMargin    decimal.Decimal    `json:"unit_margin"`
	LowConfidence bool               `json:"low_confidence"`
	Projections   []BucketProjection `json:"projections"`
	TotalQuantity float64            `json:"total_quantity"`
	TotalRevenue  decimal.Decimal    `json:"total_revenue"`
}

// RevenueForecast ranks every dish by total projected revenue, descending.
type RevenueForecast struct {
	Reference time.Time      `json:"reference"`
	Period    Period         `json:"period"`
	Horizon   int            `json:"horizon"`
	Dishes    []DishForecast `json:"dishes"`
}

// Forecaster projects order volume and revenue per dish. It keeps no state of
// its own; every forecast is a pure function over the order history and the
// cost analyzer's output at call time.
//
// Two models run per dish and their outputs are averaged: a seasonal
// percentage-change walk from a trailing baseline, and an ordinary
// least-squares line over a short recent window.
type Forecaster struct {
	history store.OrderHistory
	dishes  store.DishCatalog
	costs   *CostAnalyzer
	cfg     ForecastConfig
	metrics MetricsRecorder
	log     *slog.Logger
	now     func() time.Time
}

// NewForecaster creates a forecaster with the given configuration.
func NewForecaster(history store.OrderHistory, dishes store.DishCatalog, costs *CostAnalyzer, cfg ForecastConfig, metrics MetricsRecorder, log *slog.Logger) *Forecaster {
	if metrics == nil {
		metrics = NopMetrics
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultForecastConfig().Horizon
	}
	if cfg.RegressionWindow <= 0 {
		cfg.RegressionWindow = DefaultForecastConfig().RegressionWindow
	}
	if cfg.MaxChangePercent <= 0 {
		cfg.MaxChangePercent = DefaultForecastConfig().MaxChangePercent
	}
	if cfg.YearsBack < 2 {
		cfg.YearsBack = 2
	}
	if cfg.Period == "" {
		cfg.Period = PeriodWeek
	}
	return &Forecaster{
		history: history,
		dishes:  dishes,
		costs:   costs,
		cfg:     cfg,
		metrics: metrics,
		log:     log.With("component", "forecaster"),
		now:     time.Now,
	}
}

// ForecastRevenue projects every catalog dish over the configured horizon and
// ranks the results by total projected revenue.
func (f *Forecaster) ForecastRevenue(ctx context.Context) (*RevenueForecast, error) {
	started := time.Now()
	ref := f.now()

	dishes, err := f.dishes.ListDishes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dishes: %w", err)
	}

	out := &RevenueForecast{Reference: ref, Period: f.cfg.Period, Horizon: f.cfg.Horizon}
	for i := range dishes {
		df, err := f.forecastDish(ctx, &dishes[i], ref)
		if err != nil {
			return nil, fmt.Errorf("forecast %s: %w", dishes[i].Name, err)
		}
		out.Dishes = append(out.Dishes, df)
	}
	sort.SliceStable(out.Dishes, func(i, j int) bool {
		return out.Dishes[i].TotalRevenue.GreaterThan(out.Dishes[j].TotalRevenue)
	})

	f.metrics.ObserveForecastDuration(time.Since(started).Seconds())
	f.log.Info("revenue forecast built",
		"dishes", len(out.Dishes), "horizon", f.cfg.Horizon, "period", string(f.cfg.Period))
	return out, nil
}

// ForecastDish projects a single dish by name.
func (f *Forecaster) ForecastDish(ctx context.Context, name string) (DishForecast, error) {
	dish, err := f.dishes.GetDish(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return DishForecast{}, fmt.Errorf("%w: %s", ErrUnknownDish, name)
		}
		return DishForecast{}, err
	}
	return f.forecastDish(ctx, dish, f.now())
}

func (f *Forecaster) forecastDish(ctx context.Context, dish *models.Dish, ref time.Time) (DishForecast, error) {
	df := DishForecast{Dish: dish.Name, Price: dish.Price, TotalRevenue: decimal.Zero}

	cost, err := f.costs.ComputeCost(ctx, dish)
	if err != nil {
		return df, err
	}
	df.UnitCost = cost.TotalCost
	df.UnitMargin = cost.MarginValue

	changes, err := f.averageChanges(ctx, dish.Name, ref)
	if err != nil {
		return df, err
	}
	baseline, err := f.trailingBaseline(ctx, dish.Name, ref)
	if err != nil {
		return df, err
	}

	regSlope, regIntercept, regPoints, regErr := f.fitRecentTrend(ctx, dish.Name, ref, baseline)
	if regErr != nil {
		// Too little history for a slope: report the change model alone and
		// flag the result instead of failing the whole forecast.
		df.LowConfidence = true
	}

	walk := baseline
	for i := 1; i <= f.cfg.Horizon; i++ {
		future := f.stepForward(ref, i)
		bucket := f.bucketIndex(future)

		change := clamp(changes[bucket], -f.cfg.MaxChangePercent, f.cfg.MaxChangePercent)
		walk = walk * (1 + change/100)
		if walk < 0 {
			walk = 0
		}

		projection := BucketProjection{Bucket: bucket, ChangeModel: walk}
		if regErr == nil {
			reg := regIntercept + regSlope*float64(regPoints-1+i)
			if reg < 0 {
				reg = 0
			}
			projection.Regression = reg
			projection.Quantity = (walk + reg) / 2
		} else {
			projection.Quantity = walk
		}
		projection.Revenue = df.UnitMargin.Mul(decimal.NewFromFloat(projection.Quantity))

		df.Projections = append(df.Projections, projection)
		df.TotalQuantity += projection.Quantity
		df.TotalRevenue = df.TotalRevenue.Add(projection.Revenue)
	}
	return df, nil
}

// averageChanges computes the per-bucket percentage change between
// consecutive past seasons and averages it across the configured years. A
// zero count in the older season makes that step's change 0%, not an error.
func (f *Forecaster) averageChanges(ctx context.Context, dish string, ref time.Time) ([]float64, error) {
	buckets := f.bucketCount()
	sums := make([]float64, buckets)
	pairs := f.cfg.YearsBack - 1

	for k := 1; k <= pairs; k++ {
		newer, err := f.seasonSeries(ctx, dish, ref.AddDate(-(k - 1), 0, 0))
		if err != nil {
			return nil, err
		}
		older, err := f.seasonSeries(ctx, dish, ref.AddDate(-k, 0, 0))
		if err != nil {
			return nil, err
		}
		for b := 0; b < buckets; b++ {
			if older[b] == 0 {
				continue // 0% change for this step
			}
			sums[b] += (newer[b] - older[b]) / older[b] * 100
		}
	}

	for b := range sums {
		sums[b] /= float64(pairs)
	}
	return sums, nil
}

// seasonSeries buckets the dish's ordered quantities for the season (week,
// month or year) containing the given date.
func (f *Forecaster) seasonSeries(ctx context.Context, dish string, at time.Time) ([]float64, error) {
	start, end := f.seasonRange(at)
	orders, err := f.history.FindByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch orders %s..%s: %w", start.Format("2006-01-02"), end.Format("2006-01-02"), err)
	}

	series := make([]float64, f.bucketCount())
	for _, o := range orders {
		qty := o.QuantityOf(dish)
		if qty == 0 {
			continue
		}
		b := f.bucketIndex(o.OrderDate)
		if b >= 0 && b < len(series) {
			series[b] += float64(qty)
		}
	}
	return series, nil
}

// trailingBaseline is the dish's average quantity per bucket over the recent
// past: the trailing 30 days for day buckets, the trailing year for month
// buckets.
func (f *Forecaster) trailingBaseline(ctx context.Context, dish string, ref time.Time) (float64, error) {
	var start time.Time
	var buckets float64
	if f.cfg.Period == PeriodYear {
		start = ref.AddDate(-1, 0, 0)
		buckets = 12
	} else {
		start = ref.AddDate(0, 0, -30)
		buckets = 30
	}

	orders, err := f.history.FindByDateRange(ctx, start, ref)
	if err != nil {
		return 0, fmt.Errorf("fetch trailing orders: %w", err)
	}
	total := 0
	for _, o := range orders {
		total += o.QuantityOf(dish)
	}
	return float64(total) / buckets, nil
}

// fitRecentTrend fits an OLS line over the last RegressionWindow bucket
// quantities, with the trailing baseline standing in as the most recent
// point. Returns ErrInsufficientHistory when fewer than two points exist.
func (f *Forecaster) fitRecentTrend(ctx context.Context, dish string, ref time.Time, baseline float64) (slope, intercept float64, points int, err error) {
	window := f.cfg.RegressionWindow
	ys := make([]float64, 0, window)
	for i := window - 1; i >= 1; i-- {
		start := f.stepForward(ref, -i)
		end := f.stepForward(ref, -i+1)
		orders, err := f.history.FindByDateRange(ctx, start, end)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("fetch regression window: %w", err)
		}
		total := 0
		for _, o := range orders {
			total += o.QuantityOf(dish)
		}
		ys = append(ys, float64(total))
	}
	ys = append(ys, baseline)

	allZero := true
	for _, y := range ys {
		if y != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		// A dish with no recent orders has nothing to fit a trend on.
		return 0, 0, 0, ErrInsufficientHistory
	}

	slope, intercept, err = linearFit(ys)
	return slope, intercept, len(ys), err
}

// linearFit runs ordinary least squares of y over x = 0..n-1.
func linearFit(ys []float64) (slope, intercept float64, err error) {
	n := float64(len(ys))
	if len(ys) < 2 {
		return 0, 0, ErrInsufficientHistory
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0, 0, ErrInsufficientHistory
	}
	slope = (n*sumXY - sumX*sumY) / den
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, nil
}

func (f *Forecaster) bucketCount() int {
	switch f.cfg.Period {
	case PeriodYear:
		return 12
	case PeriodMonth:
		return 31
	default:
		return 7
	}
}

func (f *Forecaster) bucketIndex(t time.Time) int {
	switch f.cfg.Period {
	case PeriodYear:
		return int(t.Month()) - 1
	case PeriodMonth:
		return t.Day() - 1
	default:
		return int(t.Weekday())
	}
}

// seasonRange returns the [start, end) span of the season containing t.
func (f *Forecaster) seasonRange(t time.Time) (time.Time, time.Time) {
	switch f.cfg.Period {
	case PeriodYear:
		start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
		return start, start.AddDate(1, 0, 0)
	case PeriodMonth:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		return start, start.AddDate(0, 1, 0)
	default:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return start, start.AddDate(0, 0, 7)
	}
}

// stepForward advances by i buckets: days for week/month bucketing, months
// for year bucketing. Negative i steps back.
func (f *Forecaster) stepForward(t time.Time, i int) time.Time {
	if f.cfg.Period == PeriodYear {
		return t.AddDate(0, i, 0)
	}
	return t.AddDate(0, 0, i)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
