// Package cache is an optional Redis-backed store of SimulationData
// snapshots keyed by a config hash (spec.md §6 "Persisted simulation
// data"), msgpack-encoded the way aristath/sentinel's bridge codec
// round-trips Go values, and wired with the pooling/timeout/retry
// options src/infrastructure/data/cache.go sets on its redis.Client. A
// schema-version mismatch is treated as a cache miss, never an error,
// matching the "treat the file as opaque and schema-coupled" contract.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
)

// schemaVersion is bumped whenever the on-disk envelope's shape
// changes incompatibly; a mismatch is a miss, not a decode error.
const schemaVersion = 1

// Config holds the Redis connection and cache-entry lifetime.
type Config struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// DefaultConfig matches RedisCacheManager's pooling/timeout defaults.
func DefaultConfig() Config {
	return Config{Addr: "127.0.0.1:6379", DB: 0, TTL: 24 * time.Hour, KeyPrefix: "chapaty:simdata:"}
}

// Cache wraps a redis.Client scoped to SimulationData snapshots.
type Cache struct {
	client *redis.Client
	cfg    Config
}

// New constructs a Cache; it does not eagerly connect — Redis clients
// are lazy, matching NewRedisCacheManager's style.
func New(cfg Config) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})
	return &Cache{client: client, cfg: cfg}
}

type envelope struct {
	Version     int
	ConfigHash  string
	Candles     map[event.MarketID][]event.OHLCV
	Trades      map[event.MarketID][]event.Trade
	Econ        []event.EconCalendar
	StreamOrder []event.StreamKey
	GlobalAvailabilityStart time.Time
	GlobalOpenStart         time.Time
}

func (c *Cache) key(configHash string) string {
	return c.cfg.KeyPrefix + configHash
}

// Get looks up a SimulationData snapshot by configHash. A miss — key
// absent, or a schema-version mismatch — returns (nil, false, nil): a
// cache miss is never an error (spec.md §6).
func (c *Cache) Get(ctx context.Context, configHash string) (*event.SimulationData, bool, error) {
	raw, err := c.client.Get(ctx, c.key(configHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", configHash, err)
	}

	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		log.Warn().Str("config_hash", configHash).Err(err).Msg("cache: corrupt entry, treating as miss")
		return nil, false, nil
	}
	if env.Version != schemaVersion || env.ConfigHash != configHash {
		log.Debug().Str("config_hash", configHash).Msg("cache: schema/hash mismatch, treating as miss")
		return nil, false, nil
	}

	sd, err := event.New(env.Candles, env.Trades, env.Econ)
	if err != nil {
		return nil, false, fmt.Errorf("cache: rehydrate simulation data for %s: %w", configHash, err)
	}
	return sd, true, nil
}

// Set stores sd under configHash with the configured TTL.
func (c *Cache) Set(ctx context.Context, configHash string, sd *event.SimulationData) error {
	env := envelope{
		Version:                 schemaVersion,
		ConfigHash:              configHash,
		Candles:                 sd.Candles,
		Trades:                  sd.Trades,
		Econ:                    sd.Econ,
		StreamOrder:             sd.StreamOrder,
		GlobalAvailabilityStart: sd.GlobalAvailabilityStart,
		GlobalOpenStart:         sd.GlobalOpenStart,
	}
	raw, err := msgpack.Marshal(env)
	if err != nil {
		return fmt.Errorf("cache: encode simulation data for %s: %w", configHash, err)
	}
	if err := c.client.Set(ctx, c.key(configHash), raw, c.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", configHash, err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
