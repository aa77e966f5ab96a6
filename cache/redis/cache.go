// Package redis shares wrapped personal keys between processes through
// Redis. Only wrapped keys are cached; the plaintext key material never
// leaves the process that unwrapped it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "remotecare_key_cache_requests_total",
	Help: "Personal key cache lookups by result",
}, []string{"result"})

const (
	keyPrefix   = "rc:key:"
	ownerPrefix = "rc:owner:"
)

// DefaultTTL bounds how long a wrapped key is cached.
const DefaultTTL = 15 * time.Minute

// KeyCache implements remotecare.KeyCache.
type KeyCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// New returns a cache over client. A non-positive ttl means DefaultTTL.
func New(client redis.Cmdable, ttl time.Duration) *KeyCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &KeyCache{client: client, ttl: ttl}
}

// Dial connects to a redis:// URL and checks the connection.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse redis URL: %w", remotecare.ErrInvalidConfiguration, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Ping checks the connection, for readiness probes.
func (c *KeyCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

type cachedKey struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    string     `json:"owner_id"`
	WrappedKey []byte     `json:"wrapped_key"`
	KEKID      string     `json:"kek_id"`
	CreatedAt  time.Time  `json:"created_at"`
	RotatedAt  *time.Time `json:"rotated_at,omitempty"`
}

func (c *KeyCache) Get(ctx context.Context, id uuid.UUID) (*remotecare.EncryptionKey, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		cacheRequests.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		cacheRequests.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("get cached key %s: %w", id, err)
	}
	var ck cachedKey
	if err := json.Unmarshal(raw, &ck); err != nil {
		cacheRequests.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("decode cached key %s: %w", id, err)
	}
	cacheRequests.WithLabelValues("hit").Inc()
	return &remotecare.EncryptionKey{
		ID:         ck.ID,
		OwnerID:    ck.OwnerID,
		WrappedKey: ck.WrappedKey,
		KEKID:      ck.KEKID,
		CreatedAt:  ck.CreatedAt,
		RotatedAt:  ck.RotatedAt,
	}, true, nil
}

func (c *KeyCache) GetByOwner(ctx context.Context, ownerID string) (*remotecare.EncryptionKey, bool, error) {
	raw, err := c.client.Get(ctx, ownerPrefix+ownerID).Result()
	if errors.Is(err, redis.Nil) {
		cacheRequests.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		cacheRequests.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("get cached owner %s: %w", ownerID, err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decode cached owner %s: %w", ownerID, err)
	}
	return c.Get(ctx, id)
}

// Set stores the key and the owner index in one pipeline.
func (c *KeyCache) Set(ctx context.Context, key *remotecare.EncryptionKey) error {
	raw, err := json.Marshal(cachedKey{
		ID:         key.ID,
		OwnerID:    key.OwnerID,
		WrappedKey: key.WrappedKey,
		KEKID:      key.KEKID,
		CreatedAt:  key.CreatedAt,
		RotatedAt:  key.RotatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode key %s: %w", key.ID, err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+key.ID.String(), raw, c.ttl)
		if key.OwnerID != "" {
			pipe.Set(ctx, ownerPrefix+key.OwnerID, key.ID.String(), c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache key %s: %w", key.ID, err)
	}
	return nil
}

func (c *KeyCache) Delete(ctx context.Context, key *remotecare.EncryptionKey) error {
	keys := []string{keyPrefix + key.ID.String()}
	if key.OwnerID != "" {
		keys = append(keys, ownerPrefix+key.OwnerID)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("evict key %s: %w", key.ID, err)
	}
	return nil
}

var _ remotecare.KeyCache = (*KeyCache)(nil)
