package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"larder/internal/models"
	"larder/internal/store"
)

// FeasibilityCalculator answers whether a dish can be prepared from current
// stock. It carries two deliberately different sufficiency rules:
//
//   - IsAvailable requires a single batch to cover one portion's weight of
//     each ingredient (the immediate-order check: no combining of fractional
//     batches at the station).
//   - MaxPortions pools all batches of an ingredient (the capacity-planning
//     view).
//
// The two are kept as separately named operations; whether the single-batch
// rule is policy or accident is a standing question for the domain owner.
type FeasibilityCalculator struct {
	batches store.BatchStore
	dishes  store.DishCatalog
	log     *slog.Logger
}

// NewFeasibilityCalculator creates a calculator over the given stores.
func NewFeasibilityCalculator(batches store.BatchStore, dishes store.DishCatalog, log *slog.Logger) *FeasibilityCalculator {
	return &FeasibilityCalculator{
		batches: batches,
		dishes:  dishes,
		log:     log.With("component", "feasibility"),
	}
}

// IngredientYield is one ingredient's contribution to a yield report.
type IngredientYield struct {
	Ingredient  string          `json:"ingredient"`
	TotalWeight decimal.Decimal `json:"total_weight"`
	Portions    int64           `json:"portions"`
}

// YieldReport is the result of MaxPortions: the bottleneck portion count and
// which ingredient imposes it.
type YieldReport struct {
	Dish               string            `json:"dish"`
	Portions           int64             `json:"portions"`
	LimitingIngredient string            `json:"limiting_ingredient"`
	PerIngredient      []IngredientYield `json:"per_ingredient"`
}

// IsAvailable reports whether at least one portion of the dish can be made
// right now. Every requirement must be covered by some single batch; aggregate
// stock spread over smaller batches does not count. Read-only.
func (f *FeasibilityCalculator) IsAvailable(ctx context.Context, dish *models.Dish) (bool, error) {
	if len(dish.Recipe) == 0 {
		return false, fmt.Errorf("%w: dish %s has no recipe", ErrInvalidInput, dish.Name)
	}
	for _, req := range dish.Recipe {
		batches, err := f.batches.FindByName(ctx, req.IngredientName)
		if err != nil {
			return false, fmt.Errorf("fetch batches for %s: %w", req.IngredientName, err)
		}
		covered := false
		for _, b := range batches {
			if b.Weight.GreaterThanOrEqual(req.WeightPerPortion) {
				covered = true
				break
			}
		}
		if !covered {
			return false, nil
		}
	}
	return true, nil
}

// MaxPortions computes how many portions of the dish current stock yields:
// per ingredient, floor(pooled weight / weight per portion); the dish's count
// is the minimum across ingredients. An ingredient with no batches pins the
// result to zero and is reported as the limiting ingredient.
func (f *FeasibilityCalculator) MaxPortions(ctx context.Context, dish *models.Dish) (YieldReport, error) {
	report := YieldReport{Dish: dish.Name}
	if len(dish.Recipe) == 0 {
		return report, fmt.Errorf("%w: dish %s has no recipe", ErrInvalidInput, dish.Name)
	}

	first := true
	for _, req := range dish.Recipe {
		batches, err := f.batches.FindByName(ctx, req.IngredientName)
		if err != nil {
			return report, fmt.Errorf("fetch batches for %s: %w", req.IngredientName, err)
		}
		total := decimal.Zero
		for _, b := range batches {
			if b.Weight.IsPositive() {
				total = total.Add(b.Weight)
			}
		}
		portions := int64(0)
		if len(batches) > 0 {
			portions = total.Div(req.WeightPerPortion).IntPart()
		}
		report.PerIngredient = append(report.PerIngredient, IngredientYield{
			Ingredient:  req.IngredientName,
			TotalWeight: total,
			Portions:    portions,
		})
		if first || portions < report.Portions {
			report.Portions = portions
			report.LimitingIngredient = req.IngredientName
			first = false
		}
	}
	return report, nil
}

// RefreshAvailability recomputes and persists the cached IsAvailable flag for
// every dish in the catalog. The flag is a display hint; order placement
// never trusts it. Returns the number of dishes whose flag changed.
func (f *FeasibilityCalculator) RefreshAvailability(ctx context.Context) (int, error) {
	dishes, err := f.dishes.ListDishes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list dishes: %w", err)
	}

	changed := 0
	for i := range dishes {
		dish := dishes[i]
		available, err := f.IsAvailable(ctx, &dish)
		if err != nil {
			return changed, fmt.Errorf("recompute availability of %s: %w", dish.Name, err)
		}
		if available == dish.IsAvailable {
			continue
		}
		if err := f.dishes.SetAvailability(ctx, dish.Name, available); err != nil {
			return changed, fmt.Errorf("persist availability of %s: %w", dish.Name, err)
		}
		changed++
	}
	f.log.Info("availability refreshed", "dishes", len(dishes), "changed", changed)
	return changed, nil
}
