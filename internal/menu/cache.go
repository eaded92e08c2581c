package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ProductLister is the DB read the cache fronts.
// Satisfied by *database.Queries.
type ProductLister interface {
	ListProductsByEstablishment(ctx context.Context, establishmentID uuid.UUID) ([]database.Product, error)
}

// redisClient is the subset of redis commands the cache uses.
// Satisfied by *redis.Client.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache serves menu listings cache-aside: reads hit redis first and fall
// back to the database, writes go through Invalidate. A nil client
// disables caching entirely; every read goes straight to the database.
type Cache struct {
	rdb   redisClient
	store ProductLister
	ttl   time.Duration
}

func NewCache(rdb redisClient, store ProductLister, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, store: store, ttl: ttl}
}

func cacheKey(establishmentID uuid.UUID) string {
	return fmt.Sprintf("menu:%s", establishmentID)
}

// List returns the establishment's products, from cache when possible.
// Cache failures are logged and degrade to a database read, never an error.
func (c *Cache) List(ctx context.Context, establishmentID uuid.UUID) ([]database.Product, error) {
	key := cacheKey(establishmentID)

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var products []database.Product
			if err := json.Unmarshal(data, &products); err == nil {
				return products, nil
			}
			log.Printf("ERROR: unmarshal cached menu %s: %v", key, err)
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("ERROR: menu cache get %s: %v", key, err)
		}
	}

	products, err := c.store.ListProductsByEstablishment(ctx, establishmentID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	if c.rdb != nil {
		data, err := json.Marshal(products)
		if err != nil {
			log.Printf("ERROR: marshal menu %s: %v", key, err)
			return products, nil
		}
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Printf("ERROR: menu cache set %s: %v", key, err)
		}
	}

	return products, nil
}

// Invalidate drops the cached menu. Called after any product mutation.
func (c *Cache) Invalidate(ctx context.Context, establishmentID uuid.UUID) {
	if c.rdb == nil {
		return
	}
	key := cacheKey(establishmentID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		log.Printf("ERROR: menu cache invalidate %s: %v", key, err)
	}
}
