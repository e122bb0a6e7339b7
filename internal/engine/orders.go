package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"larder/internal/models"
	"larder/internal/store"
)

// PlacementState tracks an order through placement:
// draft -> validated -> committed | rejected.
type PlacementState string

const (
	PlacementDraft     PlacementState = "draft"
	PlacementValidated PlacementState = "validated"
	PlacementCommitted PlacementState = "committed"
	PlacementRejected  PlacementState = "rejected"
)

// OrderLineRequest is one requested dish line.
type OrderLineRequest struct {
	DishName string `json:"dish_name"`
	Quantity int    `json:"quantity"`
}

// PlaceOrderRequest is the input to PlaceOrder.
type PlaceOrderRequest struct {
	TableRef string             `json:"table_ref"`
	Lines    []OrderLineRequest `json:"lines"`
}

// Placement is the outcome of a placement attempt. Order is set only in the
// committed state.
type Placement struct {
	State PlacementState `json:"state"`
	Order *models.Order  `json:"order,omitempty"`
}

// OrderPlacer turns requested dish lines into a committed order. Requirements
// are staged and aggregated per ingredient across all lines first; stock is
// only touched once every ingredient is known to be satisfiable, and all
// decrements plus the order record are applied as one atomic commit.
type OrderPlacer struct {
	st      store.Store
	alloc   *Allocator
	metrics MetricsRecorder
	log     *slog.Logger
	now     func() time.Time

	// commitMu serializes plan+commit so two concurrent orders cannot both
	// succeed against the same shrinking batches.
	commitMu sync.Mutex
}

// NewOrderPlacer creates a placer over the given store and allocator.
func NewOrderPlacer(st store.Store, alloc *Allocator, metrics MetricsRecorder, log *slog.Logger) *OrderPlacer {
	if metrics == nil {
		metrics = NopMetrics
	}
	return &OrderPlacer{
		st:      st,
		alloc:   alloc,
		metrics: metrics,
		log:     log.With("component", "order_placer"),
		now:     time.Now,
	}
}

// PlaceOrder validates the request, stages per-ingredient allocations, and
// commits them with the order record. A rejection leaves stock untouched. A
// persistence failure during commit is returned as *CommitError and logged
// for manual reconciliation.
func (p *OrderPlacer) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Placement, error) {
	placement := Placement{State: PlacementDraft}

	lines, required, err := p.validate(ctx, req)
	if err != nil {
		placement.State = PlacementRejected
		p.metrics.OrderRejected(rejectionReason(err))
		return placement, err
	}
	placement.State = PlacementValidated

	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	// Stage one plan per ingredient against the current stock snapshot.
	// Multiple lines needing the same ingredient were already merged, so no
	// line can starve another through allocation ordering.
	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}
	sort.Strings(names)

	var updated []models.IngredientBatch
	var shortfalls []Shortfall
	consumed := 0
	for _, name := range names {
		plan, err := p.alloc.Plan(ctx, name, required[name])
		if err != nil {
			var short *InsufficientStockError
			if errors.As(err, &short) {
				shortfalls = append(shortfalls, short.Shortfalls...)
				p.metrics.ShortfallObserved(name)
				continue
			}
			placement.State = PlacementRejected
			p.metrics.OrderRejected(rejectionReason(err))
			return placement, err
		}
		for _, draw := range plan.Draws {
			updated = append(updated, draw.Batch)
		}
		consumed += len(plan.Draws)
	}
	if len(shortfalls) > 0 {
		placement.State = PlacementRejected
		p.metrics.OrderRejected("insufficient_stock")
		p.log.Info("order rejected for insufficient stock",
			"table", req.TableRef, "short_ingredients", len(shortfalls))
		return placement, &InsufficientStockError{Shortfalls: shortfalls}
	}

	order := &models.Order{
		Lines:      lines,
		TotalPrice: orderTotal(lines),
		OrderDate:  p.now(),
		TableRef:   req.TableRef,
	}
	if err := p.st.CommitOrder(ctx, updated, order); err != nil {
		// Stock writes may be half-applied depending on the store; surface
		// this distinctly so operators reconcile instead of retrying.
		p.metrics.OrderRejected("commit_failed")
		p.log.Error("order commit failed, manual stock reconciliation required",
			"table", req.TableRef, "batches_staged", len(updated), "error", err)
		return placement, &CommitError{Err: err}
	}

	placement.State = PlacementCommitted
	placement.Order = order
	p.metrics.OrderPlaced(len(lines))
	p.metrics.BatchesConsumed(consumed)
	p.log.Info("order committed",
		"order_id", order.ID,
		"table", order.TableRef,
		"lines", len(order.Lines),
		"total", order.TotalPrice.String())
	return placement, nil
}

// UpdateLineStatus moves one committed line forward through the kitchen
// (unprepared -> ready -> served).
func (p *OrderPlacer) UpdateLineStatus(ctx context.Context, orderID uint, line int, next models.LineStatus) error {
	if err := models.ValidateLineStatus(next); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	order, err := p.st.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if line < 0 || line >= len(order.Lines) {
		return fmt.Errorf("%w: order %d has no line %d", ErrInvalidInput, orderID, line)
	}
	current := order.Lines[line].Status
	if !current.CanTransitionTo(next) {
		return fmt.Errorf("%w: line status %s cannot move to %s", ErrInvalidInput, current, next)
	}
	return p.st.UpdateLineStatus(ctx, orderID, line, next)
}

// validate resolves every dish, snapshots it into order lines, and aggregates
// the required weight per ingredient. No store mutation happens here.
func (p *OrderPlacer) validate(ctx context.Context, req PlaceOrderRequest) ([]models.OrderLine, map[string]decimal.Decimal, error) {
	if len(req.Lines) == 0 {
		return nil, nil, fmt.Errorf("%w: order has no lines", ErrInvalidInput)
	}

	lines := make([]models.OrderLine, 0, len(req.Lines))
	required := make(map[string]decimal.Decimal)
	for _, lr := range req.Lines {
		if lr.DishName == "" {
			return nil, nil, fmt.Errorf("%w: line dish name is empty", ErrInvalidInput)
		}
		if lr.Quantity <= 0 {
			return nil, nil, fmt.Errorf("%w: quantity %d for %s must be positive", ErrInvalidInput, lr.Quantity, lr.DishName)
		}
		dish, err := p.st.GetDish(ctx, lr.DishName)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil, fmt.Errorf("%w: %s", ErrUnknownDish, lr.DishName)
			}
			return nil, nil, fmt.Errorf("fetch dish %s: %w", lr.DishName, err)
		}
		qty := decimal.NewFromInt(int64(lr.Quantity))
		for _, ing := range dish.Recipe {
			required[ing.IngredientName] = required[ing.IngredientName].Add(ing.WeightPerPortion.Mul(qty))
		}
		lines = append(lines, models.OrderLine{
			DishSnapshot: *dish,
			Quantity:     lr.Quantity,
			Status:       models.LineStatusUnprepared,
		})
	}
	return lines, required, nil
}

func orderTotal(lines []models.OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.DishSnapshot.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnknownDish):
		return "unknown_dish"
	case errors.Is(err, ErrUnknownIngredient):
		return "unknown_ingredient"
	default:
		return "error"
	}
}
