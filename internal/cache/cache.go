// Package cache stores fetched price series between queries.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Cache is safe for concurrent use. Values are stored as JSON, so every Get
// decodes a fresh copy and callers never share memory through the cache.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// SeriesKey is the cache key for a symbol's daily series at a given lookback.
func SeriesKey(symbol string, lookback int) string {
	return fmt.Sprintf("series:%s:%d", symbol, lookback)
}

// SharesKey is the cache key for a symbol's float shares.
func SharesKey(symbol string) string {
	return "shares:" + symbol
}
