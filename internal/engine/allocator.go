package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"larder/internal/models"
	"larder/internal/store"
)

// Allocator consumes ingredient batches for a required weight. Batches are
// drawn earliest-expiration-first to minimize waste. Allocation is two-phase:
// Plan computes the draws without touching the store, Commit persists them.
type Allocator struct {
	batches store.BatchStore
	log     *slog.Logger
}

// NewAllocator creates an allocator over the given batch store.
func NewAllocator(batches store.BatchStore, log *slog.Logger) *Allocator {
	return &Allocator{
		batches: batches,
		log:     log.With("component", "allocator"),
	}
}

// BatchDraw is one batch's contribution to an allocation. Batch carries the
// already-decremented weight that Commit will persist.
type BatchDraw struct {
	Batch models.IngredientBatch
	Taken decimal.Decimal
}

// AllocationPlan is the staged result of planning one ingredient's
// allocation. Nothing is persisted until the plan is committed.
type AllocationPlan struct {
	Ingredient string
	Required   decimal.Decimal
	Draws      []BatchDraw
}

// Plan computes which batches satisfy the required weight. It fails with
// ErrUnknownIngredient when no batch of the name exists at all, and with
// InsufficientStockError when stock exists but runs short. The store is not
// mutated either way.
func (a *Allocator) Plan(ctx context.Context, ingredient string, required decimal.Decimal) (AllocationPlan, error) {
	plan := AllocationPlan{Ingredient: ingredient, Required: required}

	if ingredient == "" {
		return plan, fmt.Errorf("%w: ingredient name is empty", ErrInvalidInput)
	}
	if !required.IsPositive() {
		return plan, fmt.Errorf("%w: required weight %s must be positive", ErrInvalidInput, required)
	}

	batches, err := a.batches.FindByName(ctx, ingredient)
	if err != nil {
		return plan, fmt.Errorf("fetch batches for %s: %w", ingredient, err)
	}
	if len(batches) == 0 {
		return plan, fmt.Errorf("%w: %s", ErrUnknownIngredient, ingredient)
	}

	remaining := required
	available := decimal.Zero
	for _, batch := range batches {
		if !batch.Weight.IsPositive() {
			continue
		}
		available = available.Add(batch.Weight)
		if !remaining.IsPositive() {
			continue
		}
		take := decimal.Min(batch.Weight, remaining)
		batch.Weight = batch.Weight.Sub(take)
		remaining = remaining.Sub(take)
		plan.Draws = append(plan.Draws, BatchDraw{Batch: batch, Taken: take})
	}

	if remaining.IsPositive() {
		return plan, &InsufficientStockError{Shortfalls: []Shortfall{{
			Ingredient: ingredient,
			Required:   required,
			Available:  available,
			Missing:    remaining,
		}}}
	}
	return plan, nil
}

// Commit persists the plan's batch decrements. Callers needing multi-plan
// atomicity commit through store.OrderCommitter instead.
func (a *Allocator) Commit(ctx context.Context, plan AllocationPlan) error {
	for _, draw := range plan.Draws {
		batch := draw.Batch
		if err := a.batches.Save(ctx, &batch); err != nil {
			return fmt.Errorf("persist batch %d of %s: %w", batch.ID, plan.Ingredient, err)
		}
	}
	a.log.Debug("allocation committed",
		"ingredient", plan.Ingredient,
		"required", plan.Required.String(),
		"batches", len(plan.Draws))
	return nil
}

// Allocate plans and commits in one call, for callers outside order placement
// that consume a single ingredient (spoilage write-offs, manual adjustments).
func (a *Allocator) Allocate(ctx context.Context, ingredient string, required decimal.Decimal) (AllocationPlan, error) {
	plan, err := a.Plan(ctx, ingredient, required)
	if err != nil {
		return plan, err
	}
	if err := a.Commit(ctx, plan); err != nil {
		return plan, err
	}
	return plan, nil
}
