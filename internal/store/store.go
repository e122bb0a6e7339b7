package store

import (
	"context"
	"errors"
	"time"

	"larder/internal/models"
)

// ErrNotFound is returned when a batch, dish or order is missing so callers
// can distinguish absence from storage failure.
var ErrNotFound = errors.New("record not found")

// BatchStore holds ingredient batches. FindByName returns batches sorted
// ascending by expiration date so allocation consumes the earliest-expiring
// stock first.
type BatchStore interface {
	FindByName(ctx context.Context, name string) ([]models.IngredientBatch, error)
	Save(ctx context.Context, batch *models.IngredientBatch) error
	ListBatches(ctx context.Context) ([]models.IngredientBatch, error)
}

// OrderHistory is the append-only order record. Orders are never deleted;
// per-line status updates are the only mutation after append.
type OrderHistory interface {
	FindByDateRange(ctx context.Context, start, end time.Time) ([]models.Order, error)
	Append(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uint) (*models.Order, error)
	UpdateLineStatus(ctx context.Context, orderID uint, line int, status models.LineStatus) error
}

// DishCatalog holds the menu. SetAvailability persists the cached feasibility
// flag recomputed by the availability refresh.
type DishCatalog interface {
	GetDish(ctx context.Context, name string) (*models.Dish, error)
	ListDishes(ctx context.Context) ([]models.Dish, error)
	SaveDish(ctx context.Context, dish *models.Dish) error
	SetAvailability(ctx context.Context, name string, available bool) error
}

// OrderCommitter applies an order's staged batch decrements and the order
// record as one atomic unit. Implementations either write everything or
// nothing; a failure here after any write is a reconciliation incident, not a
// business rejection.
type OrderCommitter interface {
	CommitOrder(ctx context.Context, batches []models.IngredientBatch, order *models.Order) error
}

// Store bundles everything the engine and the API need from persistence.
type Store interface {
	BatchStore
	OrderHistory
	DishCatalog
	OrderCommitter
}
