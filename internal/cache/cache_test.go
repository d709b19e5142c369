package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
)

func TestKeyUsesConfiguredPrefix(t *testing.T) {
	c := New(Config{KeyPrefix: "test:prefix:"})
	assert.Equal(t, "test:prefix:abc123", c.key("abc123"))
}

// TestGetSetRoundTrip requires a live Redis instance and is skipped in
// short mode, matching the integration-test convention used throughout
// the teacher's test suite.
func TestGetSetRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := DefaultConfig()
	cfg.TTL = time.Minute
	c := New(cfg)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	m := event.MarketID{Broker: "sim", Exchange: "sim", Symbol: "BTC-USDT", Period: event.Period(time.Minute)}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sd, err := event.New(map[event.MarketID][]event.OHLCV{
		m: {{OpenTS: base, CloseTS: base.Add(time.Minute), Open: 1, High: 1, Low: 1, Close: 1}},
	}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "hash-1", sd))

	got, ok, err := c.Get(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Candles[m], 1)

	_, ok, err = c.Get(ctx, "hash-does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}
