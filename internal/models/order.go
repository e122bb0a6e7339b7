package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderLine is one dish line of an order. DishSnapshot is an immutable copy of
// the dish as it was at order time, including the recipe, so later catalog
// edits never rewrite history.
type OrderLine struct {
	DishSnapshot Dish       `json:"dish"`
	Quantity     int        `json:"quantity"`
	Status       LineStatus `json:"status"`
}

// Order is a committed customer order. Orders are never deleted; the order
// history is the source of truth for forecasting. Only line statuses change
// after commit.
type Order struct {
	ID         uint            `json:"id"`
	Lines      []OrderLine     `json:"lines"`
	TotalPrice decimal.Decimal `json:"total_price"`
	OrderDate  time.Time       `json:"order_date"`
	TableRef   string          `json:"table_ref"`
}

// LineStatus tracks a line through the kitchen.
type LineStatus string

const (
	LineStatusUnprepared LineStatus = "unprepared"
	LineStatusReady      LineStatus = "ready"
	LineStatusServed     LineStatus = "served"
)

// CanTransitionTo reports whether a line status change is a legal step.
// Lines move strictly forward: unprepared -> ready -> served.
func (s LineStatus) CanTransitionTo(next LineStatus) bool {
	switch s {
	case LineStatusUnprepared:
		return next == LineStatusReady
	case LineStatusReady:
		return next == LineStatusServed
	default:
		return false
	}
}

// ValidateLineStatus rejects unknown status strings from the outside.
func ValidateLineStatus(s LineStatus) error {
	switch s {
	case LineStatusUnprepared, LineStatusReady, LineStatusServed:
		return nil
	}
	return fmt.Errorf("unknown order line status %q", s)
}

// QuantityOf sums the ordered quantity of a named dish across lines.
func (o *Order) QuantityOf(dishName string) int {
	total := 0
	for _, line := range o.Lines {
		if line.DishSnapshot.Name == dishName {
			total += line.Quantity
		}
	}
	return total
}
