package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"metabias/domain/selection"
	"metabias/internal"
	"metabias/internal/densities"
	"metabias/internal/errors"
	"metabias/internal/numeric"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Sampler  SamplerConfig
	Numerics NumericsConfig
	Fit      FitConfig
	LogLevel internal.LogLevel
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database connection settings. An empty URL disables
// fit persistence.
type DatabaseConfig struct {
	URL string
}

// SamplerConfig locates the external posterior sampler.
type SamplerConfig struct {
	URL     string
	Timeout time.Duration
}

// NumericsConfig holds quadrature tolerances and sampler budgets.
type NumericsConfig struct {
	AbsTol          float64
	RelTol          float64
	MaxPoints       int
	RejectionBudget int
	MaxDraws        int
	SimplexTol      float64
	Workers         int
}

// FitConfig holds defaults applied to fit requests that leave them unset.
type FitConfig struct {
	Chains     int
	Iterations int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	var errs []error
	str := func(key, def string) string { return getEnvOrDefault(key, def) }
	num := func(key string, def float64) float64 {
		v, err := getEnvFloat(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	integer := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	quad := numeric.DefaultIntegrator()
	cfg := &Config{
		Server:   ServerConfig{Port: str("PORT", "8080")},
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Sampler:  SamplerConfig{URL: os.Getenv("SAMPLER_URL")},
		Numerics: NumericsConfig{
			AbsTol:          num("QUAD_ABS_TOL", quad.AbsTol),
			RelTol:          num("QUAD_REL_TOL", quad.RelTol),
			MaxPoints:       integer("QUAD_MAX_POINTS", quad.MaxPoints),
			RejectionBudget: integer("REJECTION_BUDGET", densities.DefaultMaxProposals),
			MaxDraws:        integer("MAX_DRAWS", densities.DefaultMaxDraws),
			SimplexTol:      num("SIMPLEX_TOL", selection.SimplexTolerance),
			Workers:         integer("WORKERS", densities.DefaultConfig().Workers),
		},
		Fit: FitConfig{
			Chains:     integer("DEFAULT_CHAINS", 4),
			Iterations: integer("DEFAULT_ITERATIONS", 2000),
		},
	}

	timeout, err := getEnvDuration("SAMPLER_TIMEOUT", 5*time.Minute)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Sampler.Timeout = timeout

	cfg.LogLevel = internal.LogLevelInfo
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		if cfg.LogLevel, err = internal.ParseLogLevel(s); err != nil {
			errs = append(errs, errors.ConfigInvalid("LOG_LEVEL: "+err.Error()))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Wrap(errs[0], "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// Validate checks ranges and that the derived numeric settings are usable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	if c.Sampler.URL != "" {
		if u, err := url.Parse(c.Sampler.URL); err != nil || u.Scheme == "" || u.Host == "" {
			return errors.ConfigInvalid(fmt.Sprintf("SAMPLER_URL %q is not an absolute URL", c.Sampler.URL))
		}
	}
	if c.Sampler.Timeout <= 0 {
		return errors.ConfigInvalid("SAMPLER_TIMEOUT must be positive")
	}
	if c.Fit.Chains < 1 || c.Fit.Iterations < 2 {
		return errors.ConfigInvalid("DEFAULT_CHAINS must be >= 1 and DEFAULT_ITERATIONS >= 2")
	}
	if err := c.Densities().Validate(); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// Integrator is the quadrature configured by QUAD_*.
func (c *Config) Integrator() numeric.Integrator {
	in := numeric.DefaultIntegrator()
	in.AbsTol = c.Numerics.AbsTol
	in.RelTol = c.Numerics.RelTol
	in.MaxPoints = c.Numerics.MaxPoints
	return in
}

// Densities is the density-engine configuration.
func (c *Config) Densities() densities.Config {
	cfg := densities.DefaultConfig()
	cfg.Integrator = c.Integrator()
	cfg.MaxProposals = c.Numerics.RejectionBudget
	cfg.MaxDraws = c.Numerics.MaxDraws
	cfg.SimplexTol = c.Numerics.SimplexTol
	cfg.Workers = c.Numerics.Workers
	return cfg
}

// Logger is a logger at the configured level.
func (c *Config) Logger() *internal.Logger {
	return internal.NewLogger(c.LogLevel)
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not an integer", key, value))
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not a number", key, value))
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not a duration", key, value))
	}
	return d, nil
}
