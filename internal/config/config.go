// Package config provides configuration management for the kyotei predictor.
package config

import (
	"fmt"
	"time"
)

// Pipeline variants. They replace the parallel legacy apps with one code path.
const (
	VariantBasic     = "basic"
	VariantCached    = "cached"
	VariantOptimized = "optimized"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// MinRequestInterval is the smallest pacing interval the fetcher will use.
const MinRequestInterval = time.Second

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	DataSource DataSourceConfig `mapstructure:"data_source" validate:"required"`
	Cache      CacheConfig      `mapstructure:"cache" validate:"required"`
	Scoring    ScoringConfig    `mapstructure:"scoring" validate:"required"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline" validate:"required"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Health     HealthConfig     `mapstructure:"health"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents the accuracy store connection configuration.
// Path is used by sqlite; the remaining fields by postgres.
type DatabaseConfig struct {
	Driver         string `mapstructure:"driver" validate:"required,dbdriver"`
	Path           string `mapstructure:"path"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
}

// DataSourceConfig represents the upstream race-program API configuration
type DataSourceConfig struct {
	BaseURL            string        `mapstructure:"base_url" validate:"required,url"`
	TimeoutSeconds     int           `mapstructure:"timeout_seconds" validate:"required,gt=0,lte=120"`
	MinRequestInterval time.Duration `mapstructure:"min_request_interval" validate:"required"`
	MaxRetries         int           `mapstructure:"max_retries" validate:"gte=0,lte=5"`
	BreakerFailures    int           `mapstructure:"breaker_failures" validate:"required,gt=0"`
	BreakerCooldown    time.Duration `mapstructure:"breaker_cooldown" validate:"required"`
}

// CacheConfig represents program cache configuration
type CacheConfig struct {
	Backend        string        `mapstructure:"backend" validate:"required,oneof=memory redis"`
	TTL            time.Duration `mapstructure:"ttl" validate:"required"`
	StaleRetention time.Duration `mapstructure:"stale_retention"`
	MaxEntries     int           `mapstructure:"max_entries" validate:"gte=0"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db" validate:"gte=0"`
	RedisPrefix    string        `mapstructure:"redis_prefix"`
}

// ScoringConfig tunes the confidence curve and selects the residual factor
type ScoringConfig struct {
	ConfidenceSteepness float64 `mapstructure:"confidence_steepness" validate:"required,gt=0"`
	NeutralOther        float64 `mapstructure:"neutral_other" validate:"gte=0,lte=1"`
	// OtherFactor is "neutral" or "national_top2"
	OtherFactor         string  `mapstructure:"other_factor" validate:"omitempty,oneof=neutral national_top2"`
}

// PipelineConfig selects the pipeline variant and worker pool size
type PipelineConfig struct {
	Variant       string  `mapstructure:"variant" validate:"required,variant"`
	Workers       int     `mapstructure:"workers" validate:"required,gt=0,lte=24"`
	MinConfidence float64 `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
	RunTimeout    int     `mapstructure:"run_timeout_minutes" validate:"omitempty,gt=0"`
}

// SchedulerConfig represents the periodic job schedule
type SchedulerConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Timezone       string `mapstructure:"timezone"`
	PredictionCron string `mapstructure:"prediction_cron" validate:"required_if=Enabled true,cron"`
	ReconcileCron  string `mapstructure:"reconcile_cron" validate:"required_if=Enabled true,cron"`
	ReportCron     string `mapstructure:"report_cron" validate:"required_if=Enabled true,cron"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path"`
}

// HealthConfig represents the health check server configuration
type HealthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// CacheEnabled reports whether the selected variant caches upstream programs.
func (c *Config) CacheEnabled() bool {
	return c.Pipeline.Variant != VariantBasic
}

// EffectiveWorkers returns the worker pool size for the selected variant.
// Only the optimized variant runs races concurrently.
func (c *Config) EffectiveWorkers() int {
	if c.Pipeline.Variant != VariantOptimized || c.Pipeline.Workers < 1 {
		return 1
	}
	return c.Pipeline.Workers
}

// RequestTimeout returns the upstream HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.DataSource.TimeoutSeconds) * time.Second
}

// RunTimeout returns the deadline for one scheduled prediction run.
func (c *Config) RunTimeout() time.Duration {
	if c.Pipeline.RunTimeout <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.Pipeline.RunTimeout) * time.Minute
}
