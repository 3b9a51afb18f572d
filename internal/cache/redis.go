package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// RedisConfig configures the Redis-backed cache.
type RedisConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Prefix   string // key prefix, default "tradingbot:"

	MaxFailures  int           // consecutive failures before the breaker opens (default 5)
	ResetTimeout time.Duration // breaker half-open delay (default 10s)
}

// Redis is a Cache shared between processes. TTLs are enforced by Redis
// itself (SET ... EX). Any Redis failure degrades to a cache miss; a
// circuit breaker stops hammering an unavailable server.
type Redis struct {
	client  *goredis.Client
	prefix  string
	breaker *CircuitBreaker
	log     *slog.Logger
}

// Client returns the underlying Redis client for health checks.
func (r *Redis) Client() *goredis.Client { return r.client }

// NewRedis connects to Redis and pings the server.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	r := newRedis(client, cfg)
	r.log.Info("redis cache connected", "addr", cfg.Addr)
	return r, nil
}

func newRedis(client *goredis.Client, cfg RedisConfig) *Redis {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "tradingbot:"
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	reset := cfg.ResetTimeout
	if reset <= 0 {
		reset = 10 * time.Second
	}
	r := &Redis{
		client:  client,
		prefix:  prefix,
		breaker: NewCircuitBreaker(maxFailures, reset),
		log:     slog.Default().With("component", "cache.redis"),
	}
	r.breaker.OnStateChange = func(from, to State) {
		r.log.Warn("redis circuit breaker transition", "from", from.String(), "to", to.String())
	}
	return r
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := r.breaker.Execute(func() error {
		b, err := r.client.Get(ctx, r.prefix+key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		val = b
		return nil
	})
	if err != nil {
		r.log.Debug("redis get failed", "key", key, "err", err)
		return nil, false
	}
	return val, val != nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	err := r.breaker.Execute(func() error {
		return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
	})
	if err != nil {
		r.log.Debug("redis set failed", "key", key, "err", err)
	}
}

// BreakerState exposes the circuit breaker state for metrics.
func (r *Redis) BreakerState() State { return r.breaker.CurrentState() }

// Close releases the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
