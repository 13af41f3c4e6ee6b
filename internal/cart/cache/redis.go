package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "cartview:"
	entryVersion  = 1
	defaultTTL    = 15 * time.Minute
	jitterDivisor = 4
)

// entry is the stored shape. Bumping entryVersion turns every older entry into a miss.
type entry struct {
	Version  int          `json:"v"`
	CachedAt time.Time    `json:"cached_at"`
	Cart     *domain.Cart `json:"cart"`
}

// RedisCache holds rendered carts for reads only. Prices in it are display snapshots and are
// never used to compute an order or payment total.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{client: client, ttl: ttl, now: time.Now}
}

func (r *RedisCache) Get(ctx context.Context, customerID string) (*domain.Cart, error) {
	raw, err := r.client.Get(ctx, viewKey(customerID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("cache read %s: %w", customerID, err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("cache decode %s: %w", customerID, err)
	}
	if e.Version != entryVersion || e.Cart == nil || e.Cart.CustomerID != customerID {
		return nil, ErrCacheMiss
	}
	return e.Cart, nil
}

// Set stores the cart for ttl plus up to ttl/4 of jitter, so carts written together expire apart.
func (r *RedisCache) Set(ctx context.Context, customerID string, cart *domain.Cart) error {
	raw, err := json.Marshal(entry{Version: entryVersion, CachedAt: r.now().UTC(), Cart: cart})
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", customerID, err)
	}
	if err := r.client.Set(ctx, viewKey(customerID), raw, r.expiry()).Err(); err != nil {
		return fmt.Errorf("cache write %s: %w", customerID, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, customerID string) error {
	if err := r.client.Del(ctx, viewKey(customerID)).Err(); err != nil {
		return fmt.Errorf("cache evict %s: %w", customerID, err)
	}
	return nil
}

func (r *RedisCache) expiry() time.Duration {
	spread := int64(r.ttl / jitterDivisor)
	if spread <= 0 {
		return r.ttl
	}
	return r.ttl + time.Duration(rand.Int64N(spread))
}

func viewKey(customerID string) string {
	return keyPrefix + customerID
}
