package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"larder/internal/api"
	"larder/internal/config"
	"larder/internal/engine"
	"larder/internal/monitoring"
	"larder/internal/store"
	"larder/internal/store/gormstore"
	"larder/internal/store/memory"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Metrics.Port = *metricsPort
	}

	st, closeStore, err := openStore(cfg.Database)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	collector := monitoring.NewCollector()

	allocator := engine.NewAllocator(st, log)
	feasibility := engine.NewFeasibilityCalculator(st, st, log)
	costs := engine.NewCostAnalyzer(st, log)
	placer := engine.NewOrderPlacer(st, allocator, collector, log)
	forecaster := engine.NewForecaster(st, st, costs, engine.ForecastConfig{
		Period:           engine.Period(cfg.Forecast.Period),
		Horizon:          cfg.Forecast.Horizon,
		RegressionWindow: cfg.Forecast.RegressionWindow,
		MaxChangePercent: cfg.Forecast.MaxChangePercent,
		YearsBack:        cfg.Forecast.YearsBack,
	}, collector, log)

	inventoryAPI := api.NewInventoryAPI(st, placer, feasibility, costs, forecaster, log)

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: collector.Handler(),
	}
	go func() {
		log.Info("starting metrics server", "port", cfg.Metrics.Port)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: inventoryAPI.Router,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown error", "error", err)
		}
	}()

	log.Info("starting API server", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("API server error", "error", err)
		os.Exit(1)
	}
}

func openStore(cfg config.DatabaseConfig) (store.Store, func(), error) {
	if cfg.Driver == "memory" {
		return memory.New(), func() {}, nil
	}
	st, err := gormstore.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return st, func() { st.Close() }, nil
}
