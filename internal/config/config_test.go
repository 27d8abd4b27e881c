package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.HTTPPort)
	assert.Equal(t, StoreMemory, cfg.CartStore)
	assert.Equal(t, StoreMemory, cfg.DataStore)
	assert.Equal(t, 7*24*time.Hour, cfg.CartTTLDuration())
	assert.Equal(t, time.Hour, cfg.TokenTTL())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.False(t, cfg.KafkaEnabled())
	assert.Empty(t, cfg.AdminEmails)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Empty(t, cfg.SearchURL)
	assert.Equal(t, "storefront_products", cfg.SearchIndex)
}

func TestLoad_Lists(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ADMIN_EMAILS", "root@example.com")
	t.Setenv("ADMIN_PASSWORD", "admin-pass")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, []string{"root@example.com"}, cfg.AdminEmails)
}

func TestLoad_Stores(t *testing.T) {
	t.Setenv("CART_STORE", "redis")
	t.Setenv("DATA_STORE", "postgres")
	t.Setenv("REDIS_ADDR", "redis.prod:6380")
	t.Setenv("POSTGRES_HOST", "db.prod")
	t.Setenv("SEARCH_URL", "http://search.prod:9200")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.CartStore)
	assert.Equal(t, StorePostgres, cfg.DataStore)
	assert.Equal(t, "redis.prod:6380", cfg.Redis.Addr)
	assert.Equal(t, "db.prod", cfg.Postgres.Host)
	assert.Equal(t, "http://search.prod:9200", cfg.SearchURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port", map[string]string{"HTTP_PORT": "0"}, "invalid HTTP port"},
		{"default secret in production", map[string]string{"ENVIRONMENT": "production"}, "JWT_SECRET must be changed"},
		{"cart store", map[string]string{"CART_STORE": "mongo"}, "CART_STORE"},
		{"data store", map[string]string{"DATA_STORE": "redis"}, "DATA_STORE"},
		{"order backend", map[string]string{"ORDER_BACKEND_URL": "orders:8080"}, "ORDER_BACKEND_URL"},
		{"search url", map[string]string{"SEARCH_URL": "elasticsearch:9200"}, "SEARCH_URL"},
		{"admin password", map[string]string{"ADMIN_EMAILS": "root@example.com", "ADMIN_PASSWORD": "123"}, "ADMIN_PASSWORD"},
		{"cart ttl", map[string]string{"CART_TTL_HOURS": "0"}, "CART_TTL_HOURS"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "2.0"}, "OTEL_SAMPLE_RATE must be between 0.0 and 1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_ProductionWithSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "a-real-secret")
	t.Setenv("ORDER_BACKEND_URL", "https://orders.internal")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://orders.internal", cfg.OrderBackendURL)
}
