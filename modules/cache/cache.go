// Package cache keeps each room's newest message in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/example/shop-chat/domain/chat"
)

// maxWatchRetries bounds optimistic-lock retries in StoreLatest.
const maxWatchRetries = 5

// ErrContention is returned when StoreLatest keeps losing the WATCH race.
var ErrContention = errors.New("latest message key under contention")

// Cache stores the latest message per room. A stored entry is only ever
// replaced by a message with an equal or higher id.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits          atomic.Uint64
	misses        atomic.Uint64
	writes        atomic.Uint64
	staleSkipped  atomic.Uint64
	invalidations atomic.Uint64
	errors        atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the cache counters.
type StatsSnapshot struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Writes        uint64  `json:"writes"`
	StaleSkipped  uint64  `json:"stale_skipped"`
	Invalidations uint64  `json:"invalidations"`
	Errors        uint64  `json:"errors"`
	HitRate       float64 `json:"hit_rate"`
	TotalGets     uint64  `json:"total_gets"`
}

// New creates a cache on top of client. Keys are namespaced by prefix.
func New(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// LatestKey is the Redis key holding roomID's newest message.
func (c *Cache) LatestKey(roomID string) string {
	return c.prefix + "room:" + roomID + ":latest"
}

// Latest returns the cached newest message of roomID.
func (c *Cache) Latest(ctx context.Context, roomID string) (*domain.Message, bool, error) {
	data, err := c.client.Get(ctx, c.LatestKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return nil, false, nil
		}
		c.errors.Add(1)
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.errors.Add(1)
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	c.hits.Add(1)
	return &msg, true, nil
}

// StoreLatest caches msg as its room's newest message unless a newer one
// is already cached.
func (c *Cache) StoreLatest(ctx context.Context, msg domain.Message) error {
	key := c.LatestKey(msg.RoomID)
	data, err := json.Marshal(msg)
	if err != nil {
		c.errors.Add(1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	var stale bool
	txf := func(tx *redis.Tx) error {
		stale = false
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var cached domain.Message
			if json.Unmarshal(current, &cached) == nil && cached.ID > msg.ID {
				stale = true
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := c.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			c.errors.Add(1)
			return fmt.Errorf("cache set error: %w", err)
		}
		if stale {
			c.staleSkipped.Add(1)
		} else {
			c.writes.Add(1)
		}
		return nil
	}

	c.errors.Add(1)
	return ErrContention
}

// Invalidate drops the cached latest message of roomID.
func (c *Cache) Invalidate(ctx context.Context, roomID string) error {
	if err := c.client.Del(ctx, c.LatestKey(roomID)).Err(); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("cache delete error: %w", err)
	}
	c.invalidations.Add(1)
	return nil
}

// GetStats returns the current cache counters.
func (c *Cache) GetStats() StatsSnapshot {
	hits := c.hits.Load()
	misses := c.misses.Load()
	totalGets := hits + misses

	var hitRate float64
	if totalGets > 0 {
		hitRate = float64(hits) / float64(totalGets) * 100
	}

	return StatsSnapshot{
		Hits:          hits,
		Misses:        misses,
		Writes:        c.writes.Load(),
		StaleSkipped:  c.staleSkipped.Load(),
		Invalidations: c.invalidations.Load(),
		Errors:        c.errors.Load(),
		HitRate:       hitRate,
		TotalGets:     totalGets,
	}
}

// Ping checks if the Redis connection is healthy.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
