package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IngredientRequirement is the weight of one named ingredient needed for a
// single portion of a dish. Requirements reference batches by name only; there
// is no key binding to the live catalog, so an order keeps the recipe exactly
// as it was when the order was placed.
type IngredientRequirement struct {
	IngredientName   string          `json:"ingredient_name"`
	WeightPerPortion decimal.Decimal `json:"weight_per_portion"`
}

// Dish represents a menu dish with its recipe.
type Dish struct {
	Name   string                  `json:"name"`
	Price  decimal.Decimal         `json:"price"`
	Recipe []IngredientRequirement `json:"recipe"`
	// IsAvailable is a cached flag recomputed by the feasibility refresh.
	// It is advisory only; order placement re-validates against live stock.
	IsAvailable bool `json:"is_available"`
}

// ValidateDish validates a dish before it enters the catalog.
func ValidateDish(d *Dish) error {
	if d.Name == "" {
		return fmt.Errorf("dish name is required")
	}
	if !d.Price.IsPositive() {
		return fmt.Errorf("dish price must be greater than 0")
	}
	if len(d.Recipe) == 0 {
		return fmt.Errorf("dish must have at least one ingredient requirement")
	}
	for _, req := range d.Recipe {
		if req.IngredientName == "" {
			return fmt.Errorf("ingredient requirement name is required")
		}
		if !req.WeightPerPortion.IsPositive() {
			return fmt.Errorf("weight per portion for %s must be greater than 0", req.IngredientName)
		}
	}
	return nil
}

// RequiresIngredient checks if the recipe uses a specific ingredient.
func (d *Dish) RequiresIngredient(name string) bool {
	for _, req := range d.Recipe {
		if req.IngredientName == name {
			return true
		}
	}
	return false
}
