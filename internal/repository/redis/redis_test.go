package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopease/internal/domain"
	apperrors "github.com/utafrali/shopease/pkg/errors"
)

func setupTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func sampleCart() *domain.Cart {
	now := time.Now().UTC().Truncate(time.Millisecond)
	cart := domain.NewCart("sess-001", now)
	cart.Items = []domain.LineItem{
		{ProductID: "2", Name: "Wireless Bluetooth Headphones", UnitPrice: 19999, Quantity: 1, AvailableStock: 5},
	}
	return cart
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestCartRepository_Get_Success(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCartRepository(client, 24*time.Hour)

	cart := sampleCart()
	cart.Version = 3
	data, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, mr.Set("cart:sess-001", string(data)))

	got, err := repo.Get(context.Background(), "sess-001")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)
	require.Len(t, got.Items, 1)
	assert.Equal(t, domain.Money(19999), got.Items[0].UnitPrice)
}

func TestCartRepository_Get_NotFound(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_Get_CorruptData(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)
	require.NoError(t, mr.Set("cart:bad", "{not json"))

	_, err := repo.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// SaveIfVersion
// ---------------------------------------------------------------------------

func TestCartRepository_SaveIfVersion_NewCart(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCartRepository(client, 24*time.Hour)

	cart := sampleCart()
	ok, err := repo.SaveIfVersion(context.Background(), cart, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, cart.Version)

	got, err := repo.Get(context.Background(), cart.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, 24*time.Hour, mr.TTL("cart:sess-001"))
}

func TestCartRepository_SaveIfVersion_Success(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)
	ctx := context.Background()

	cart := sampleCart()
	_, err := repo.SaveIfVersion(ctx, cart, 0)
	require.NoError(t, err)

	cart.Items[0].Quantity = 2
	ok, err := repo.SaveIfVersion(ctx, cart, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.Get(ctx, cart.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 2, got.Items[0].Quantity)
}

func TestCartRepository_SaveIfVersion_VersionMismatch(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)
	ctx := context.Background()

	cart := sampleCart()
	_, err := repo.SaveIfVersion(ctx, cart, 0)
	require.NoError(t, err)

	stale := sampleCart()
	stale.Items[0].Quantity = 4
	ok, err := repo.SaveIfVersion(ctx, stale, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, stale.Version)

	got, err := repo.Get(ctx, cart.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, 1, got.Items[0].Quantity)
}

func TestCartRepository_SaveIfVersion_MissingCartWrongVersion(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)

	ok, err := repo.SaveIfVersion(context.Background(), sampleCart(), 5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("cart:sess-001"))
}

func TestCartRepository_Delete(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)
	ctx := context.Background()

	_, err := repo.SaveIfVersion(ctx, sampleCart(), 0)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "sess-001"))
	assert.False(t, mr.Exists("cart:sess-001"))
	require.NoError(t, repo.Delete(ctx, "sess-001"))
}

func TestCartRepository_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCartRepository(client, time.Hour)
	mr.Close()

	_, err := repo.Get(context.Background(), "sess-001")
	assert.Error(t, err)

	_, err = repo.SaveIfVersion(context.Background(), sampleCart(), 0)
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// TargetStore
// ---------------------------------------------------------------------------

func TestTargetStore_RememberConsume(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewTargetStore(client, 10*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Remember(ctx, "sess-1", "/checkout"))
	assert.Equal(t, 10*time.Minute, mr.TTL("gate:target:sess-1"))

	got, err := store.Consume(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "/checkout", got)

	got, err = store.Consume(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
