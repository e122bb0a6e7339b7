// Package api exposes the inventory engine over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"larder/internal/engine"
	"larder/internal/models"
	"larder/internal/store"
)

// InventoryAPI wires the engine components to the HTTP surface.
type InventoryAPI struct {
	Router *gin.Engine

	st          store.Store
	placer      *engine.OrderPlacer
	feasibility *engine.FeasibilityCalculator
	costs       *engine.CostAnalyzer
	forecaster  *engine.Forecaster
	log         *slog.Logger
}

// NewInventoryAPI creates the API and registers its routes.
func NewInventoryAPI(st store.Store, placer *engine.OrderPlacer, feasibility *engine.FeasibilityCalculator, costs *engine.CostAnalyzer, forecaster *engine.Forecaster, log *slog.Logger) *InventoryAPI {
	api := &InventoryAPI{
		Router:      gin.Default(),
		st:          st,
		placer:      placer,
		feasibility: feasibility,
		costs:       costs,
		forecaster:  forecaster,
		log:         log.With("component", "api"),
	}
	api.setupRoutes()
	return api
}

func (a *InventoryAPI) setupRoutes() {
	a.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := a.Router.Group("/api/v1")
	{
		// Orders
		v1.POST("/orders", a.PlaceOrder)
		v1.GET("/orders/:id", a.GetOrder)
		v1.PATCH("/orders/:id/lines/:line/status", a.UpdateLineStatus)

		// Ingredient stock
		v1.POST("/batches", a.ReceiveBatch)
		v1.GET("/batches", a.ListBatches)
		v1.GET("/batches/waste", a.WasteReport)

		// Dish catalog and analytics
		v1.POST("/dishes", a.SaveDish)
		v1.GET("/dishes", a.ListDishes)
		v1.GET("/dishes/:name/feasibility", a.CheckFeasibility)
		v1.GET("/dishes/:name/cost", a.ComputeDishCost)
		v1.POST("/dishes/refresh-availability", a.RefreshAvailability)

		// Forecasting
		v1.GET("/forecast", a.ForecastRevenue)
		v1.GET("/forecast/:name", a.ForecastDish)
	}
}

// PlaceOrder places an order. Insufficient stock answers 409 with the full
// shortfall list; a commit failure answers 500 so the gateway alerts
// operators instead of telling the customer the kitchen is out of stock.
func (a *InventoryAPI) PlaceOrder(c *gin.Context) {
	var req engine.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	placement, err := a.placer.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		var short *engine.InsufficientStockError
		if errors.As(err, &short) {
			c.JSON(http.StatusConflict, gin.H{
				"state":      placement.State,
				"error":      "insufficient stock",
				"shortfalls": short.Shortfalls,
			})
			return
		}
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, placement)
}

func (a *InventoryAPI) GetOrder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	order, err := a.st.GetOrder(c.Request.Context(), uint(id))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type lineStatusRequest struct {
	Status models.LineStatus `json:"status"`
}

func (a *InventoryAPI) UpdateLineStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	line, err := strconv.Atoi(c.Param("line"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid line index"})
		return
	}
	var req lineStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.placer.UpdateLineStatus(c.Request.Context(), uint(id), line, req.Status); err != nil {
		a.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type receiveBatchRequest struct {
	Name           string          `json:"name"`
	Weight         decimal.Decimal `json:"weight"`
	Price          decimal.Decimal `json:"price"`
	ExpirationDate time.Time       `json:"expiration_date"`
}

// ReceiveBatch registers one delivered ingredient lot.
func (a *InventoryAPI) ReceiveBatch(c *gin.Context) {
	var req receiveBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch := models.IngredientBatch{
		Name:           req.Name,
		Weight:         req.Weight,
		Price:          req.Price,
		AddedDate:      time.Now(),
		ExpirationDate: req.ExpirationDate,
	}
	if ratio, ok := batch.UnitPrice(); ok {
		batch.PriceRatio = ratio
	}
	if err := models.ValidateBatch(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.st.Save(c.Request.Context(), &batch); err != nil {
		a.respondError(c, err)
		return
	}
	a.log.Info("batch received", "ingredient", batch.Name, "weight", batch.Weight.String())
	c.JSON(http.StatusCreated, batch)
}

func (a *InventoryAPI) ListBatches(c *gin.Context) {
	batches, err := a.st.ListBatches(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batches)
}

func (a *InventoryAPI) WasteReport(c *gin.Context) {
	report, err := engine.BuildWasteReport(c.Request.Context(), a.st, time.Now())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (a *InventoryAPI) SaveDish(c *gin.Context) {
	var dish models.Dish
	if err := c.ShouldBindJSON(&dish); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := models.ValidateDish(&dish); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.st.SaveDish(c.Request.Context(), &dish); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dish)
}

func (a *InventoryAPI) ListDishes(c *gin.Context) {
	dishes, err := a.st.ListDishes(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dishes)
}

// CheckFeasibility answers both stock-sufficiency views for one dish: the
// single-batch availability test and the pooled maximum yield.
func (a *InventoryAPI) CheckFeasibility(c *gin.Context) {
	dish, err := a.st.GetDish(c.Request.Context(), c.Param("name"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	available, err := a.feasibility.IsAvailable(c.Request.Context(), dish)
	if err != nil {
		a.respondError(c, err)
		return
	}
	yield, err := a.feasibility.MaxPortions(c.Request.Context(), dish)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dish":         dish.Name,
		"is_available": available,
		"max_portions": yield,
	})
}

func (a *InventoryAPI) ComputeDishCost(c *gin.Context) {
	dish, err := a.st.GetDish(c.Request.Context(), c.Param("name"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	report, err := a.costs.ComputeCost(c.Request.Context(), dish)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (a *InventoryAPI) RefreshAvailability(c *gin.Context) {
	changed, err := a.feasibility.RefreshAvailability(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (a *InventoryAPI) ForecastRevenue(c *gin.Context) {
	forecast, err := a.forecaster.ForecastRevenue(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, forecast)
}

func (a *InventoryAPI) ForecastDish(c *gin.Context) {
	forecast, err := a.forecaster.ForecastDish(c.Request.Context(), c.Param("name"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, forecast)
}

// respondError maps engine errors onto HTTP statuses. Commit failures stay
// 500s; everything in the business taxonomy gets a 4xx.
func (a *InventoryAPI) respondError(c *gin.Context, err error) {
	var commit *engine.CommitError
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrUnknownDish), errors.Is(err, engine.ErrUnknownIngredient), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &commit):
		a.log.Error("commit failure surfaced to API", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order commit failed; operators notified"})
	default:
		a.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
