package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel errors for the engine's failure taxonomy. Business rejections are
// distinct from persistence failures so callers can tell "tell the customer"
// apart from "page the operator".
var (
	// ErrInvalidInput rejects malformed requests before any store access.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownIngredient means no batch of the name exists at all, which is
	// different from stock existing but running short.
	ErrUnknownIngredient = errors.New("unknown ingredient")

	// ErrUnknownDish means the dish is not in the catalog.
	ErrUnknownDish = errors.New("unknown dish")

	// ErrUndefinedMargin flags a zero-priced dish whose margin percentage
	// cannot be computed.
	ErrUndefinedMargin = errors.New("margin undefined for zero-priced dish")

	// ErrInsufficientHistory means the forecaster has too few data points for
	// the regression model.
	ErrInsufficientHistory = errors.New("insufficient order history")
)

// Shortfall describes how far one ingredient's stock falls below an order's
// aggregated requirement.
type Shortfall struct {
	Ingredient string          `json:"ingredient"`
	Required   decimal.Decimal `json:"required"`
	Available  decimal.Decimal `json:"available"`
	Missing    decimal.Decimal `json:"missing"`
}

// InsufficientStockError rejects an allocation or an order. It carries every
// short ingredient so the kitchen can restock in one trip.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		parts[i] = fmt.Sprintf("%s short by %s", s.Ingredient, s.Missing)
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

// CommitError wraps a persistence failure during order commit. Stock may
// already have been decremented; the incident needs operator reconciliation,
// not a user-facing "out of stock" message.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("order commit failed: %v", e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
