// Package memory provides an in-memory Store used by tests and the dev mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"larder/internal/models"
	"larder/internal/store"
)

// Store keeps all records behind one mutex and hands out copies, so callers
// can never mutate shared state except through Save/Commit.
type Store struct {
	mu      sync.Mutex
	batches []models.IngredientBatch
	orders  []models.Order
	dishes  map[string]models.Dish

	batchCounter uint
	orderCounter uint
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{dishes: make(map[string]models.Dish)}
}

// FindByName returns copies of the batches for one ingredient, earliest
// expiration first.
func (s *Store) FindByName(_ context.Context, name string) ([]models.IngredientBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.IngredientBatch
	for _, b := range s.batches {
		if b.Name == name {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpirationDate.Before(out[j].ExpirationDate)
	})
	return out, nil
}

// Save inserts a new batch (assigning an ID) or overwrites an existing one.
func (s *Store) Save(_ context.Context, batch *models.IngredientBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(batch)
}

func (s *Store) saveLocked(batch *models.IngredientBatch) error {
	if batch.ID == 0 {
		s.batchCounter++
		batch.ID = s.batchCounter
		s.batches = append(s.batches, *batch)
		return nil
	}
	for i := range s.batches {
		if s.batches[i].ID == batch.ID {
			s.batches[i] = *batch
			return nil
		}
	}
	return store.ErrNotFound
}

// ListBatches returns a copy of every batch, newest receipt last.
func (s *Store) ListBatches(_ context.Context) ([]models.IngredientBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.IngredientBatch, len(s.batches))
	copy(out, s.batches)
	return out, nil
}

// FindByDateRange returns orders with start <= OrderDate < end.
func (s *Store) FindByDateRange(_ context.Context, start, end time.Time) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Order
	for _, o := range s.orders {
		if !o.OrderDate.Before(start) && o.OrderDate.Before(end) {
			out = append(out, copyOrder(o))
		}
	}
	return out, nil
}

// Append stores a new order and assigns its ID.
func (s *Store) Append(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(order)
	return nil
}

func (s *Store) appendLocked(order *models.Order) {
	s.orderCounter++
	order.ID = s.orderCounter
	s.orders = append(s.orders, copyOrder(*order))
}

// GetOrder returns a copy of one order by ID.
func (s *Store) GetOrder(_ context.Context, id uint) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.ID == id {
			cp := copyOrder(o)
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// UpdateLineStatus sets the status of one line of a committed order.
func (s *Store) UpdateLineStatus(_ context.Context, orderID uint, line int, status models.LineStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orders {
		if s.orders[i].ID == orderID {
			if line < 0 || line >= len(s.orders[i].Lines) {
				return store.ErrNotFound
			}
			s.orders[i].Lines[line].Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

// GetDish returns a copy of one dish by name.
func (s *Store) GetDish(_ context.Context, name string) (*models.Dish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dishes[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := copyDish(d)
	return &cp, nil
}

// ListDishes returns a copy of the catalog sorted by name.
func (s *Store) ListDishes(_ context.Context) ([]models.Dish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Dish, 0, len(s.dishes))
	for _, d := range s.dishes {
		out = append(out, copyDish(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveDish inserts or replaces a dish by name.
func (s *Store) SaveDish(_ context.Context, dish *models.Dish) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dishes[dish.Name] = copyDish(*dish)
	return nil
}

// SetAvailability persists the cached feasibility flag.
func (s *Store) SetAvailability(_ context.Context, name string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dishes[name]
	if !ok {
		return store.ErrNotFound
	}
	d.IsAvailable = available
	s.dishes[name] = d
	return nil
}

// CommitOrder applies the decremented batches and appends the order under one
// lock acquisition, so readers never observe a half-applied order. Every
// batch is resolved before anything is written; a stale ID aborts the whole
// commit.
func (s *Store) CommitOrder(_ context.Context, batches []models.IngredientBatch, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range batches {
		if batches[i].ID == 0 {
			continue
		}
		if s.indexOfLocked(batches[i].ID) < 0 {
			return store.ErrNotFound
		}
	}
	for i := range batches {
		if err := s.saveLocked(&batches[i]); err != nil {
			return err
		}
	}
	s.appendLocked(order)
	return nil
}

func (s *Store) indexOfLocked(id uint) int {
	for i := range s.batches {
		if s.batches[i].ID == id {
			return i
		}
	}
	return -1
}

func copyOrder(o models.Order) models.Order {
	cp := o
	cp.Lines = make([]models.OrderLine, len(o.Lines))
	copy(cp.Lines, o.Lines)
	for i := range cp.Lines {
		cp.Lines[i].DishSnapshot = copyDish(o.Lines[i].DishSnapshot)
	}
	return cp
}

func copyDish(d models.Dish) models.Dish {
	cp := d
	cp.Recipe = make([]models.IngredientRequirement, len(d.Recipe))
	copy(cp.Recipe, d.Recipe)
	return cp
}
