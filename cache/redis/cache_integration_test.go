//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newCache(t *testing.T, ttl time.Duration) *KeyCache {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	client, err := Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return New(client, ttl)
}

func TestKeyCache(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t, time.Minute)

	key := &remotecare.EncryptionKey{
		ID:         uuid.New(),
		OwnerID:    "user-1",
		WrappedKey: []byte{0, 1, 2, 250},
		KEKID:      "kek-1",
		CreatedAt:  time.Now().UTC(),
	}

	_, found, err := cache.Get(ctx, key.ID)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, key))

	got, found, err := cache.Get(ctx, key.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, key.WrappedKey, got.WrappedKey)
	assert.True(t, key.CreatedAt.Equal(got.CreatedAt))

	got, found, err = cache.GetByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, key.ID, got.ID)

	require.NoError(t, cache.Delete(ctx, key))
	_, found, err = cache.GetByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKeyCache_Expiry(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t, time.Second)
	key := &remotecare.EncryptionKey{ID: uuid.New(), OwnerID: "user-2", WrappedKey: []byte("w"), KEKID: "k"}
	require.NoError(t, cache.Set(ctx, key))

	require.Eventually(t, func() bool {
		_, found, err := cache.Get(ctx, key.ID)
		return err == nil && !found
	}, 5*time.Second, 100*time.Millisecond)
}

func TestKeyCache_WithVault(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t, time.Minute)
	v := remotecare.NewTestVault(t, remotecare.WithKeyCache(cache))

	key, err := v.CreateEncryptionKey(ctx, "user-3")
	require.NoError(t, err)
	_, found, err := cache.Get(ctx, key.ID)
	require.NoError(t, err)
	assert.True(t, found)
}
