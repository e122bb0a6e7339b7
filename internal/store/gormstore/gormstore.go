// Package gormstore persists the engine's batches, dishes and orders with
// GORM over SQLite or PostgreSQL.
package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL dialect
	_ "github.com/mattn/go-sqlite3"              // SQLite driver
	"github.com/shopspring/decimal"

	"larder/internal/models"
	"larder/internal/store"
)

// Store implements store.Store on a relational database.
type Store struct {
	db *gorm.DB
}

type batchRecord struct {
	gorm.Model
	Name           string          `gorm:"index"`
	Weight         decimal.Decimal `gorm:"type:decimal(20,6)"`
	Price          decimal.Decimal `gorm:"type:decimal(20,6)"`
	AddedDate      time.Time
	ExpirationDate time.Time       `gorm:"index"`
	PriceRatio     decimal.Decimal `gorm:"type:decimal(20,10)"`
}

type dishRecord struct {
	gorm.Model
	Name        string          `gorm:"unique_index"`
	Price       decimal.Decimal `gorm:"type:decimal(20,6)"`
	RecipeJSON  string          `gorm:"type:text"`
	IsAvailable bool
}

// orderRecord stores lines as a JSON document. Each line embeds the dish
// snapshot taken at order time, so there is deliberately no foreign key into
// the dish table.
type orderRecord struct {
	gorm.Model
	LinesJSON  string          `gorm:"type:text"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(20,6)"`
	OrderDate  time.Time       `gorm:"index"`
	TableRef   string
}

// Open connects to the database and migrates the schema. Supported drivers
// are "sqlite3" and "postgres".
func Open(driver, dsn string) (*Store, error) {
	db, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if err := db.AutoMigrate(&batchRecord{}, &dishRecord{}, &orderRecord{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindByName returns the batches for one ingredient, earliest expiration first.
func (s *Store) FindByName(_ context.Context, name string) ([]models.IngredientBatch, error) {
	var recs []batchRecord
	if err := s.db.Where("name = ?", name).Order("expiration_date asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.IngredientBatch, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out, nil
}

// Save inserts or updates a batch.
func (s *Store) Save(_ context.Context, batch *models.IngredientBatch) error {
	return saveBatch(s.db, batch)
}

func saveBatch(db *gorm.DB, batch *models.IngredientBatch) error {
	rec := batchRecord{
		Name:           batch.Name,
		Weight:         batch.Weight,
		Price:          batch.Price,
		AddedDate:      batch.AddedDate,
		ExpirationDate: batch.ExpirationDate,
		PriceRatio:     batch.PriceRatio,
	}
	rec.ID = batch.ID
	if err := db.Save(&rec).Error; err != nil {
		return err
	}
	batch.ID = rec.ID
	return nil
}

// ListBatches returns every batch on record.
func (s *Store) ListBatches(_ context.Context) ([]models.IngredientBatch, error) {
	var recs []batchRecord
	if err := s.db.Order("id asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.IngredientBatch, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out, nil
}

// FindByDateRange returns orders with start <= order_date < end.
func (s *Store) FindByDateRange(_ context.Context, start, end time.Time) ([]models.Order, error) {
	var recs []orderRecord
	if err := s.db.Where("order_date >= ? AND order_date < ?", start, end).
		Order("order_date asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.Order, 0, len(recs))
	for _, r := range recs {
		o, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Append stores a new order.
func (s *Store) Append(_ context.Context, order *models.Order) error {
	return appendOrder(s.db, order)
}

func appendOrder(db *gorm.DB, order *models.Order) error {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("encode order lines: %w", err)
	}
	rec := orderRecord{
		LinesJSON:  string(lines),
		TotalPrice: order.TotalPrice,
		OrderDate:  order.OrderDate,
		TableRef:   order.TableRef,
	}
	if err := db.Create(&rec).Error; err != nil {
		return err
	}
	order.ID = rec.ID
	return nil
}

// GetOrder returns one order by ID.
func (s *Store) GetOrder(_ context.Context, id uint) (*models.Order, error) {
	var rec orderRecord
	if err := s.db.First(&rec, id).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	o, err := rec.toModel()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateLineStatus rewrites one line's status inside the stored lines document.
func (s *Store) UpdateLineStatus(_ context.Context, orderID uint, line int, status models.LineStatus) error {
	var rec orderRecord
	if err := s.db.First(&rec, orderID).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return store.ErrNotFound
		}
		return err
	}
	var lines []models.OrderLine
	if err := json.Unmarshal([]byte(rec.LinesJSON), &lines); err != nil {
		return fmt.Errorf("decode order lines: %w", err)
	}
	if line < 0 || line >= len(lines) {
		return store.ErrNotFound
	}
	lines[line].Status = status
	encoded, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode order lines: %w", err)
	}
	return s.db.Model(&rec).Update("lines_json", string(encoded)).Error
}

// GetDish returns one dish by name.
func (s *Store) GetDish(_ context.Context, name string) (*models.Dish, error) {
	var rec dishRecord
	if err := s.db.Where("name = ?", name).First(&rec).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	d, err := rec.toModel()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDishes returns the dish catalog.
func (s *Store) ListDishes(_ context.Context) ([]models.Dish, error) {
	var recs []dishRecord
	if err := s.db.Order("name asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.Dish, 0, len(recs))
	for _, r := range recs {
		d, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// SaveDish inserts or replaces a dish by name.
func (s *Store) SaveDish(_ context.Context, dish *models.Dish) error {
	recipe, err := json.Marshal(dish.Recipe)
	if err != nil {
		return fmt.Errorf("encode recipe: %w", err)
	}
	var rec dishRecord
	err = s.db.Where("name = ?", dish.Name).First(&rec).Error
	switch {
	case err == nil:
		// keep the existing row's identity
	case gorm.IsRecordNotFoundError(err):
		rec = dishRecord{Name: dish.Name}
	default:
		return err
	}
	rec.Price = dish.Price
	rec.RecipeJSON = string(recipe)
	rec.IsAvailable = dish.IsAvailable
	return s.db.Save(&rec).Error
}

// SetAvailability persists the cached feasibility flag.
func (s *Store) SetAvailability(_ context.Context, name string, available bool) error {
	res := s.db.Model(&dishRecord{}).Where("name = ?", name).Update("is_available", available)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CommitOrder writes all batch decrements and the order record in a single
// transaction.
func (s *Store) CommitOrder(_ context.Context, batches []models.IngredientBatch, order *models.Order) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	for i := range batches {
		if err := saveBatch(tx, &batches[i]); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := appendOrder(tx, order); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func (r batchRecord) toModel() models.IngredientBatch {
	return models.IngredientBatch{
		ID:             r.ID,
		Name:           r.Name,
		Weight:         r.Weight,
		Price:          r.Price,
		AddedDate:      r.AddedDate,
		ExpirationDate: r.ExpirationDate,
		PriceRatio:     r.PriceRatio,
	}
}

func (r dishRecord) toModel() (models.Dish, error) {
	var recipe []models.IngredientRequirement
	if r.RecipeJSON != "" {
		if err := json.Unmarshal([]byte(r.RecipeJSON), &recipe); err != nil {
			return models.Dish{}, fmt.Errorf("decode recipe for %s: %w", r.Name, err)
		}
	}
	return models.Dish{
		Name:        r.Name,
		Price:       r.Price,
		Recipe:      recipe,
		IsAvailable: r.IsAvailable,
	}, nil
}

func (r orderRecord) toModel() (models.Order, error) {
	var lines []models.OrderLine
	if r.LinesJSON != "" {
		if err := json.Unmarshal([]byte(r.LinesJSON), &lines); err != nil {
			return models.Order{}, fmt.Errorf("decode lines for order %d: %w", r.ID, err)
		}
	}
	return models.Order{
		ID:         r.ID,
		Lines:      lines,
		TotalPrice: r.TotalPrice,
		OrderDate:  r.OrderDate,
		TableRef:   r.TableRef,
	}, nil
}
