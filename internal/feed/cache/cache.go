// Package cache wraps a built feed.Store's columnar arrays in a
// Redis-backed cache, keyed by (play_hash, symbol, tf_role, range_hash), so
// repeated preflight runs over the same window skip recomputation. This is
// an optional acceleration layer; the feed.Store it caches is always the
// engine's source of truth.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/feed"
)

// Client is the minimal Redis surface this package needs, satisfied by
// *redis.Client and mockable in tests via redismock.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
}

type Cache struct {
	c   Client
	ttl time.Duration
}

func New(c Client, ttl time.Duration) *Cache {
	return &Cache{c: c, ttl: ttl}
}

// Key derives the cache key for one role's columnar arrays.
func Key(playHash, symbol string, role feed.Role, rangeHash string) string {
	return fmt.Sprintf("backtest:feed:%s:%s:%s:%s", playHash, symbol, role, rangeHash)
}

type storePayload struct {
	TF      bar.Timeframe `json:"tf"`
	TsOpen  []int64       `json:"ts_open"`
	TsClose []int64       `json:"ts_close"`
	Open    []float64     `json:"open"`
	High    []float64     `json:"high"`
	Low     []float64     `json:"low"`
	Close   []float64     `json:"close"`
	Volume  []float64     `json:"volume"`
}

// Put serializes the bar columns of a built feed.Store (feature outputs are
// excluded; they are cheap to recompute from cached bars and play-specific).
func (c *Cache) Put(ctx context.Context, key string, s *feed.Store) error {
	payload := storePayload{
		TF: s.TF, TsOpen: s.TsOpen, TsClose: s.TsClose,
		Open: s.Open, High: s.High, Low: s.Low, Close: s.Close, Volume: s.Volume,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("feed cache marshal: %w", err)
	}
	return c.c.Set(ctx, key, b, c.ttl).Err()
}

// Get reconstructs a feed.Store from a cached payload, or returns
// (nil, false) on miss.
func (c *Cache) Get(ctx context.Context, key string, role feed.Role) (*feed.Store, bool) {
	raw, err := c.c.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var payload storePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	s := feed.NewStore(role, payload.TF)
	s.TsOpen = payload.TsOpen
	s.TsClose = payload.TsClose
	s.Open = payload.Open
	s.High = payload.High
	s.Low = payload.Low
	s.Close = payload.Close
	s.Volume = payload.Volume
	return s, true
}
