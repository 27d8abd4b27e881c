package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/shopease/pkg/config"
	"github.com/utafrali/shopease/pkg/database"
	"github.com/utafrali/shopease/pkg/tracing"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8090"`

	// Sessions and tokens
	JWTSecret       string `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	TokenTTLMinutes int    `env:"TOKEN_TTL_MINUTES" envDefault:"60"`
	// RoleLookupTimeout bounds the admin role read; a slower read leaves the
	// access decision pending.
	RoleLookupTimeout time.Duration `env:"ROLE_LOOKUP_TIMEOUT" envDefault:"2s"`
	// LoginTargetTTL is how long a remembered post-login view is kept.
	LoginTargetTTL time.Duration `env:"LOGIN_TARGET_TTL" envDefault:"30m"`

	// Cart session store (memory|redis). Redis also holds login targets.
	CartStore string `env:"CART_STORE" envDefault:"memory"`
	CartTTL   int    `env:"CART_TTL_HOURS" envDefault:"168"`
	Redis     database.RedisConfig

	// Catalog, user and order store (memory|postgres)
	DataStore          string `env:"DATA_STORE" envDefault:"memory"`
	Postgres           database.PostgresConfig
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Elasticsearch product search. Empty keeps catalog search in the data store.
	SearchURL   string `env:"SEARCH_URL"`
	SearchIndex string `env:"SEARCH_INDEX" envDefault:"storefront_products"`

	// Kafka. No brokers disables publishing and the stock consumer.
	KafkaBrokers        []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaGroupID        string        `env:"KAFKA_GROUP_ID" envDefault:"storefront"`
	KafkaIdempotencyTTL time.Duration `env:"KAFKA_IDEMPOTENCY_TTL" envDefault:"24h"`

	// Remote order backend. Empty keeps orders in the local store only.
	OrderBackendURL     string        `env:"ORDER_BACKEND_URL"`
	OrderBackendTimeout time.Duration `env:"ORDER_BACKEND_TIMEOUT" envDefault:"10s"`

	// Admin accounts created at startup.
	AdminEmails   []string `env:"ADMIN_EMAILS" envSeparator:","`
	AdminPassword string   `env:"ADMIN_PASSWORD"`

	// Login and registration rate limiting per client IP
	LoginRateRPS   float64 `env:"LOGIN_RATE_RPS" envDefault:"1"`
	LoginRateBurst int     `env:"LOGIN_RATE_BURST" envDefault:"5"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	Tracing tracing.Config
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	cfg.KafkaBrokers = pkgconfig.CleanList(cfg.KafkaBrokers)
	cfg.AdminEmails = pkgconfig.CleanList(cfg.AdminEmails)
	cfg.CORSAllowedOrigins = pkgconfig.CleanList(cfg.CORSAllowedOrigins)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TokenTTL returns the access token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// CartTTLDuration returns how long an untouched cart is kept.
func (c *Config) CartTTLDuration() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// KafkaEnabled reports whether brokers are configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.Environment != "development" && c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be changed from default value in %s environment", c.Environment)
	}
	if c.TokenTTLMinutes < 1 {
		return fmt.Errorf("TOKEN_TTL_MINUTES must be positive, got %d", c.TokenTTLMinutes)
	}
	if c.CartTTL < 1 {
		return fmt.Errorf("CART_TTL_HOURS must be positive, got %d", c.CartTTL)
	}
	if c.CartStore != StoreMemory && c.CartStore != StoreRedis {
		return fmt.Errorf("CART_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, c.CartStore)
	}
	if c.DataStore != StoreMemory && c.DataStore != StorePostgres {
		return fmt.Errorf("DATA_STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.DataStore)
	}
	if c.OrderBackendURL != "" && !isHTTPURL(c.OrderBackendURL) {
		return fmt.Errorf("ORDER_BACKEND_URL must be an http(s) URL, got %q", c.OrderBackendURL)
	}
	if c.SearchURL != "" && !isHTTPURL(c.SearchURL) {
		return fmt.Errorf("SEARCH_URL must be an http(s) URL, got %q", c.SearchURL)
	}
	if len(c.AdminEmails) > 0 && len(c.AdminPassword) < 6 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 6 characters when ADMIN_EMAILS is set")
	}
	if c.LoginRateRPS <= 0 || c.LoginRateBurst < 1 {
		return fmt.Errorf("LOGIN_RATE_RPS and LOGIN_RATE_BURST must be positive")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.Tracing.SampleRate)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
