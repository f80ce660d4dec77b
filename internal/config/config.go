package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the sponsor engine. Values come from
// SPONSOR_* environment variables with the defaults below.
type Config struct {
	Server     ServerConfig     `envPrefix:"SPONSOR_"`
	Database   DatabaseConfig   `envPrefix:"SPONSOR_DB_"`
	Redis      RedisConfig      `envPrefix:"SPONSOR_REDIS_"`
	ClickHouse ClickHouseConfig `envPrefix:"SPONSOR_CLICKHOUSE_"`
	Auth       AuthConfig       `envPrefix:"SPONSOR_AUTH_"`
	RateLimit  RateLimitConfig  `envPrefix:"SPONSOR_RATE_LIMIT_"`
	Log        LogConfig        `envPrefix:"SPONSOR_LOG_"`
	Metrics    MetricsConfig    `envPrefix:"SPONSOR_METRICS_"`
	Geo        GeoConfig        `envPrefix:"SPONSOR_GEO_"`
	Cache      CacheConfig      `envPrefix:"SPONSOR_CACHE_"`
	Store      StoreConfig      `envPrefix:"SPONSOR_STORE_"`
}

type ServerConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	Env             string        `env:"ENV" envDefault:"development"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"sponsor"`
	Password string `env:"PASSWORD" envDefault:"sponsor_secret"`
	DBName   string `env:"NAME" envDefault:"sponsor"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
	MaxConns int    `env:"MAX_CONNS" envDefault:"25"`
	MinConns int    `env:"MIN_CONNS" envDefault:"5"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB" envDefault:"0"`
}

// ClickHouseConfig configures the serving event trail.
type ClickHouseConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"false"`
	Addr     string `env:"ADDR" envDefault:"localhost:9000"`
	Database string `env:"DATABASE" envDefault:"default"`
	User     string `env:"USER" envDefault:"default"`
	Password string `env:"PASSWORD" envDefault:""`
}

type AuthConfig struct {
	Enabled   bool     `env:"ENABLED" envDefault:"false"`
	MasterKey string   `env:"MASTER_KEY" envDefault:""`
	SkipPaths []string `env:"SKIP_PATHS" envDefault:"/health,/metrics,/serve,/click,/preview"`
}

type RateLimitConfig struct {
	Enabled    bool    `env:"ENABLED" envDefault:"true"`
	ServeRPS   float64 `env:"SERVE_RPS" envDefault:"1000"`
	ServeBurst int     `env:"SERVE_BURST" envDefault:"100"`
	AdminRPS   float64 `env:"ADMIN_RPS" envDefault:"100"`
	AdminBurst int     `env:"ADMIN_BURST" envDefault:"20"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

// GeoConfig configures viewer country resolution.
type GeoConfig struct {
	Enabled      bool          `env:"ENABLED" envDefault:"false"`
	DatabasePath string        `env:"DB_PATH" envDefault:"/app/data/GeoLite2-Country.mmdb"`
	CacheSize    int           `env:"CACHE_SIZE" envDefault:"10000"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"1h"`
}

// CacheConfig configures the campaign read cache.
type CacheConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	TTL     time.Duration `env:"TTL" envDefault:"5m"`
	ListTTL time.Duration `env:"LIST_TTL" envDefault:"10s"`
}

// StoreConfig bounds calls to the durable store.
type StoreConfig struct {
	OpTimeout time.Duration `env:"OP_TIMEOUT" envDefault:"2s"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("SPONSOR_AUTH_MASTER_KEY is required when auth is enabled")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
