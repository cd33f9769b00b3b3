// Package cache implements the timed listing cache kept in durable key/value storage.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"crypto-explorer-bot/internal/model"
	"crypto-explorer-bot/internal/storage"
)

const (
	// DataKey holds the serialized listing.
	DataKey = "coinData"
	// TimestampKey holds the store time in Unix milliseconds.
	TimestampKey = "coinDataTimestamp"

	// DefaultValidity is how long a stored listing is served.
	DefaultValidity = 5 * time.Minute
)

// CachedListing is the last stored listing and when it was stored.
type CachedListing struct {
	Coins    []model.CoinSummary
	StoredAt time.Time
}

// ListingCache serves the last fetched listing while it is younger than the validity window.
type ListingCache struct {
	kv       storage.KV
	validity time.Duration
	now      func() time.Time
}

// Option configures a ListingCache.
type Option func(*ListingCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *ListingCache) { c.now = now }
}

// WithValidity overrides DefaultValidity.
func WithValidity(d time.Duration) Option {
	return func(c *ListingCache) {
		if d > 0 {
			c.validity = d
		}
	}
}

// NewListingCache creates a ListingCache over kv.
func NewListingCache(kv storage.KV, opts ...Option) *ListingCache {
	c := &ListingCache{
		kv:       kv,
		validity: DefaultValidity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the cached listing, or nil when there is no entry or the entry is
// not strictly younger than the validity window. Corrupt entries count as absent.
func (c *ListingCache) Load(ctx context.Context) (*CachedListing, error) {
	rawTS, ok, err := c.kv.Get(ctx, TimestampKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache timestamp: %w", err)
	}
	if !ok {
		return nil, nil
	}

	ms, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		log.Warn().Str("value", rawTS).Msg("Ignoring unparsable cache timestamp")
		return nil, nil
	}
	storedAt := time.UnixMilli(ms)

	if c.now().Sub(storedAt) >= c.validity {
		return nil, nil
	}

	rawData, ok, err := c.kv.Get(ctx, DataKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached listing: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var coins []model.CoinSummary
	if err := json.Unmarshal([]byte(rawData), &coins); err != nil {
		log.Warn().Err(err).Msg("Ignoring undecodable cached listing")
		return nil, nil
	}

	return &CachedListing{Coins: coins, StoredAt: storedAt}, nil
}

// Store overwrites the cached listing and stamps it with the current time.
func (c *ListingCache) Store(ctx context.Context, coins []model.CoinSummary) error {
	data, err := json.Marshal(coins)
	if err != nil {
		return fmt.Errorf("failed to encode listing: %w", err)
	}

	if err := c.kv.Set(ctx, DataKey, string(data)); err != nil {
		return fmt.Errorf("failed to write cached listing: %w", err)
	}
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	if err := c.kv.Set(ctx, TimestampKey, ts); err != nil {
		return fmt.Errorf("failed to write cache timestamp: %w", err)
	}

	return nil
}
