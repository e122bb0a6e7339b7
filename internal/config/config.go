// Package config loads the service configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Database DatabaseConfig `yaml:"database"`
	Forecast ForecastConfig `yaml:"forecast"`
}

// ServerConfig configures the API listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig selects the persistence backend. Driver "memory" runs the
// in-memory store; "sqlite3" and "postgres" run GORM. The DSN may be
// overridden with the LARDER_DATABASE_DSN environment variable so deployment
// secrets stay out of the file.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ForecastConfig mirrors the forecaster's tuning knobs.
type ForecastConfig struct {
	Period           string  `yaml:"period"`
	Horizon          int     `yaml:"horizon"`
	RegressionWindow int     `yaml:"regression_window"`
	MaxChangePercent float64 `yaml:"max_change_percent"`
	YearsBack        int     `yaml:"years_back"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Metrics:  MetricsConfig{Port: 9090},
		Database: DatabaseConfig{Driver: "sqlite3", DSN: "larder.db"},
		Forecast: ForecastConfig{
			Period:           "week",
			Horizon:          7,
			RegressionWindow: 5,
			MaxChangePercent: 50,
			YearsBack:        2,
		},
	}
}

// Load reads and validates the configuration file, applying defaults for
// anything omitted.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if dsn := os.Getenv("LARDER_DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics port %d out of range", c.Metrics.Port)
	}
	switch c.Database.Driver {
	case "memory", "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver != "memory" && c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required for driver %q", c.Database.Driver)
	}
	switch c.Forecast.Period {
	case "week", "month", "year":
	default:
		return fmt.Errorf("unsupported forecast period %q", c.Forecast.Period)
	}
	if c.Forecast.Horizon <= 0 {
		return fmt.Errorf("forecast horizon must be positive")
	}
	if c.Forecast.RegressionWindow < 2 {
		return fmt.Errorf("forecast regression window must be at least 2")
	}
	return nil
}
