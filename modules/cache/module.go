package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Options configures the Redis connection behind the cache.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Module owns the Redis client and exposes the cache to other modules.
type Module struct {
	cache  *Cache
	client *redis.Client
	opts   Options
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a cache module. The client is created eagerly so the
// cache can be handed to other modules before the application starts.
func NewModule(opts Options, logger types.Logger) *Module {
	if opts.Prefix == "" {
		opts.Prefix = "chat:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &Module{
		cache:  New(client, opts.Prefix, opts.TTL),
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cache"
}

// Start verifies Redis is reachable.
func (m *Module) Start(ctx context.Context) error {
	if err := m.cache.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	m.logger.Info("Connected to Redis", "addr", m.opts.Addr, "prefix", m.opts.Prefix, "ttl", m.opts.TTL.String())
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if err := m.cache.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	m.logger.Info("Cache module stopped")
	return nil
}

// Health pings Redis and reports cache statistics.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.cache.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"addr":  m.opts.Addr,
			"stats": m.cache.GetStats(),
		},
	}
}

// Cache returns the cache instance.
func (m *Module) Cache() *Cache {
	return m.cache
}
