package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// IngredientBatch represents one received lot of an ingredient. Several batches
// may share the same Name; each keeps its own price, weight and expiration.
type IngredientBatch struct {
	ID             uint            `json:"id"`
	Name           string          `json:"name"`
	Weight         decimal.Decimal `json:"weight"`
	Price          decimal.Decimal `json:"price"`
	AddedDate      time.Time       `json:"added_date"`
	ExpirationDate time.Time       `json:"expiration_date"`
	// PriceRatio is price per weight unit, fixed at receipt time. When zero
	// (older records), callers fall back to Price/Weight.
	PriceRatio decimal.Decimal `json:"price_ratio"`
}

// BatchStatus represents the lifecycle state of a batch.
type BatchStatus string

const (
	BatchStatusInStock  BatchStatus = "in_stock"
	BatchStatusDepleted BatchStatus = "depleted"
	BatchStatusExpired  BatchStatus = "expired"
)

// Status derives the lifecycle state at the given instant. A depleted batch
// stays queryable; an expired batch with remaining weight is a waste candidate.
func (b *IngredientBatch) Status(now time.Time) BatchStatus {
	if b.ExpirationDate.Before(now) {
		return BatchStatusExpired
	}
	if b.Weight.IsZero() {
		return BatchStatusDepleted
	}
	return BatchStatusInStock
}

// UnitPrice returns the stored price ratio when present, otherwise computes
// price/weight. The second return is false for a zero-weight batch with no
// stored ratio, where no unit price can be derived.
func (b *IngredientBatch) UnitPrice() (decimal.Decimal, bool) {
	if !b.PriceRatio.IsZero() {
		return b.PriceRatio, true
	}
	if b.Weight.IsZero() {
		return decimal.Zero, false
	}
	return b.Price.Div(b.Weight), true
}

// StrandedValue is the purchase value of the remaining weight, used for waste
// reporting on expired batches.
func (b *IngredientBatch) StrandedValue() decimal.Decimal {
	ratio, ok := b.UnitPrice()
	if !ok {
		return decimal.Zero
	}
	return ratio.Mul(b.Weight)
}

// ValidateBatch checks a batch received from the outside before it is stored.
func ValidateBatch(b *IngredientBatch) error {
	if b.Name == "" {
		return fmt.Errorf("batch ingredient name is required")
	}
	if b.Weight.IsNegative() {
		return fmt.Errorf("batch weight must not be negative")
	}
	if b.Price.IsNegative() {
		return fmt.Errorf("batch price must not be negative")
	}
	if b.ExpirationDate.IsZero() {
		return fmt.Errorf("batch expiration date is required")
	}
	return nil
}
