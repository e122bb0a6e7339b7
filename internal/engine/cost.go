package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"larder/internal/models"
	"larder/internal/store"
)

// CostAnalyzer computes per-portion ingredient cost and profit margin for a
// dish from current batch prices.
type CostAnalyzer struct {
	batches store.BatchStore
	log     *slog.Logger
}

// NewCostAnalyzer creates an analyzer over the given batch store.
func NewCostAnalyzer(batches store.BatchStore, log *slog.Logger) *CostAnalyzer {
	return &CostAnalyzer{
		batches: batches,
		log:     log.With("component", "cost"),
	}
}

// IngredientCost is one ingredient's share of a dish's cost. HasData is false
// when no batch of the ingredient exists; its cost contribution is then zero
// and the dish total is an underestimate.
type IngredientCost struct {
	Ingredient string          `json:"ingredient"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Cost       decimal.Decimal `json:"cost"`
	HasData    bool            `json:"has_data"`
}

// CostReport is the result of ComputeCost. MarginDefined is false for a
// zero-priced dish, where the percentage has no meaning. Complete is false
// when any ingredient lacked price data.
type CostReport struct {
	Dish          string           `json:"dish"`
	TotalCost     decimal.Decimal  `json:"total_cost"`
	MarginValue   decimal.Decimal  `json:"margin_value"`
	MarginPercent decimal.Decimal  `json:"margin_percent"`
	MarginDefined bool             `json:"margin_defined"`
	Complete      bool             `json:"complete"`
	PerIngredient []IngredientCost `json:"per_ingredient"`
}

// ComputeCost prices one portion of the dish. Per ingredient, the unit price
// is the plain arithmetic mean of each batch's price ratio — not weighted by
// batch size. Downstream reports were built on this averaging, so it is kept
// exactly as is.
func (c *CostAnalyzer) ComputeCost(ctx context.Context, dish *models.Dish) (CostReport, error) {
	report := CostReport{Dish: dish.Name, Complete: true}
	if len(dish.Recipe) == 0 {
		return report, fmt.Errorf("%w: dish %s has no recipe", ErrInvalidInput, dish.Name)
	}

	total := decimal.Zero
	for _, req := range dish.Recipe {
		batches, err := c.batches.FindByName(ctx, req.IngredientName)
		if err != nil {
			return report, fmt.Errorf("fetch batches for %s: %w", req.IngredientName, err)
		}

		ratioSum := decimal.Zero
		ratioCount := int64(0)
		for _, b := range batches {
			ratio, ok := b.UnitPrice()
			if !ok {
				continue
			}
			ratioSum = ratioSum.Add(ratio)
			ratioCount++
		}

		entry := IngredientCost{Ingredient: req.IngredientName}
		if ratioCount == 0 {
			// No price data: skip the contribution but surface the gap.
			report.Complete = false
			c.log.Warn("no batch data for ingredient, cost is an underestimate",
				"dish", dish.Name, "ingredient", req.IngredientName)
		} else {
			entry.HasData = true
			entry.UnitPrice = ratioSum.Div(decimal.NewFromInt(ratioCount))
			entry.Cost = entry.UnitPrice.Mul(req.WeightPerPortion)
			total = total.Add(entry.Cost)
		}
		report.PerIngredient = append(report.PerIngredient, entry)
	}

	report.TotalCost = total
	report.MarginValue = dish.Price.Sub(total)
	if dish.Price.IsZero() {
		// Guard: a zero price would divide to infinity. The margin value is
		// still reported; the percentage is marked undefined.
		report.MarginDefined = false
		return report, nil
	}
	report.MarginDefined = true
	report.MarginPercent = report.MarginValue.Div(dish.Price).Mul(decimal.NewFromInt(100))
	return report, nil
}
