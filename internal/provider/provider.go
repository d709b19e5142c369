// Package provider is the only place the simulated core touches a
// real network boundary: fetching historical candle/trade/econ data
// from an external source before it is frozen into a SimulationData
// bundle. Wrapped in a circuit breaker (github.com/sony/gobreaker, the
// pack's real breaker library — see DESIGN.md for why the teacher's
// own hand-rolled internal/net/circuit.Breaker was not reused) and a
// token-bucket rate limiter (golang.org/x/time/rate), mirroring the
// client-side protections cryptorun wraps around every provider call.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
)

// Fetcher is implemented by a concrete historical-data client (REST,
// file-backed replay service, etc.). It is the only interface this
// package needs from the outside world.
type Fetcher interface {
	FetchCandles(ctx context.Context, market event.MarketID, from, to time.Time) ([]event.OHLCV, error)
}

// Config tunes the rate limiter and circuit breaker wrapping a Fetcher.
type Config struct {
	RequestsPerSecond float64
	Burst             int
	FailureThreshold  uint32
	OpenTimeout       time.Duration
}

// DefaultConfig is a conservative starting point for an unfamiliar
// external provider.
func DefaultConfig() Config {
	return Config{RequestsPerSecond: 5, Burst: 10, FailureThreshold: 5, OpenTimeout: 30 * time.Second}
}

// Client wraps a Fetcher with rate limiting and circuit breaking.
type Client struct {
	fetcher Fetcher
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// New constructs a Client around fetcher.
func New(name string, fetcher Fetcher, cfg Config) *Client {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("provider: circuit state changed")
		},
	}
	return &Client{
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// FetchCandles waits for the rate limiter, then calls through the
// circuit breaker to the underlying Fetcher.
func (c *Client) FetchCandles(ctx context.Context, market event.MarketID, from, to time.Time) ([]event.OHLCV, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("provider: rate limit wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetcher.FetchCandles(ctx, market, from, to)
	})
	if err != nil {
		return nil, fmt.Errorf("provider: fetch candles for %s: %w", market, err)
	}
	return result.([]event.OHLCV), nil
}
