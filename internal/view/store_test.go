package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-explorer-bot/internal/cache"
	"crypto-explorer-bot/internal/model"
	"crypto-explorer-bot/internal/storage"
)

type fakeLister struct {
	mu    sync.Mutex
	coins []model.CoinSummary
	err   error
	calls int
}

func (f *fakeLister) ListMarkets(context.Context) ([]model.CoinSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.coins, nil
}

func (f *fakeLister) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type brokenCache struct{}

func (brokenCache) Load(context.Context) (*cache.CachedListing, error) {
	return nil, errors.New("redis: connection refused")
}

func (brokenCache) Store(context.Context, []model.CoinSummary) error {
	return errors.New("redis: connection refused")
}

func twoCoins() []model.CoinSummary {
	return []model.CoinSummary{
		{ID: "btc", Name: "Bitcoin", MarketCap: 1000},
		{ID: "eth", Name: "Ethereum", MarketCap: 500},
	}
}

func TestStore_InitialState(t *testing.T) {
	s := NewStore(&fakeLister{}, cache.NewListingCache(storage.NewMemoryKV()), nil)
	st := s.State()

	assert.Equal(t, 1, st.Page)
	assert.Empty(t, st.Search)
	assert.Nil(t, st.Sort)
	assert.Empty(t, st.Coins)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
}

func TestStore_RefreshMissFetchesAndWritesThrough(t *testing.T) {
	ctx := context.Background()
	lister := &fakeLister{coins: twoCoins()}
	lc := cache.NewListingCache(storage.NewMemoryKV())
	s := NewStore(lister, lc, nil)

	require.NoError(t, s.Refresh(ctx))

	st := s.State()
	assert.Equal(t, twoCoins(), st.Coins)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
	assert.Equal(t, 1, lister.Calls())

	cached, err := lc.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, twoCoins(), cached.Coins)
}

func TestStore_RefreshHitSkipsNetwork(t *testing.T) {
	ctx := context.Background()
	lc := cache.NewListingCache(storage.NewMemoryKV())
	require.NoError(t, lc.Store(ctx, twoCoins()))

	lister := &fakeLister{err: errors.New("must not be called")}
	s := NewStore(lister, lc, nil)

	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 0, lister.Calls())
	assert.Equal(t, twoCoins(), s.State().Coins)
}

func TestStore_RefreshStaleCacheRefetches(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	lc := cache.NewListingCache(storage.NewMemoryKV(), cache.WithClock(func() time.Time { return now }))
	require.NoError(t, lc.Store(ctx, twoCoins()[:1]))
	now = now.Add(cache.DefaultValidity)

	lister := &fakeLister{coins: twoCoins()}
	s := NewStore(lister, lc, nil)

	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 1, lister.Calls())
	assert.Len(t, s.State().Coins, 2)
}

func TestStore_SecondRefreshWithinWindowIsCached(t *testing.T) {
	ctx := context.Background()
	lister := &fakeLister{coins: twoCoins()}
	s := NewStore(lister, cache.NewListingCache(storage.NewMemoryKV()), nil)

	require.NoError(t, s.Refresh(ctx))
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 1, lister.Calls())
}

func TestStore_RefreshFailureKeepsListing(t *testing.T) {
	ctx := context.Background()
	lister := &fakeLister{coins: twoCoins()}
	now := time.UnixMilli(1_700_000_000_000)
	lc := cache.NewListingCache(storage.NewMemoryKV(), cache.WithClock(func() time.Time { return now }))
	s := NewStore(lister, lc, nil)
	require.NoError(t, s.Refresh(ctx))

	now = now.Add(10 * time.Minute)
	lister.err = errors.New("HTTP 429")

	err := s.Refresh(ctx)
	require.Error(t, err)

	st := s.State()
	assert.Equal(t, twoCoins(), st.Coins)
	assert.False(t, st.Loading)
	assert.Equal(t, FetchErrorMessage, st.Error)
}

func TestStore_RefreshClearsPreviousError(t *testing.T) {
	ctx := context.Background()
	lister := &fakeLister{err: errors.New("timeout")}
	s := NewStore(lister, cache.NewListingCache(storage.NewMemoryKV()), nil)

	require.Error(t, s.Refresh(ctx))
	assert.Equal(t, FetchErrorMessage, s.State().Error)

	lister.err = nil
	lister.coins = twoCoins()
	require.NoError(t, s.Refresh(ctx))
	assert.Empty(t, s.State().Error)
}

func TestStore_BrokenCacheFallsBackToNetwork(t *testing.T) {
	lister := &fakeLister{coins: twoCoins()}
	s := NewStore(lister, brokenCache{}, nil)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 1, lister.Calls())
	assert.Equal(t, twoCoins(), s.State().Coins)
	assert.Empty(t, s.State().Error)
}

func TestStore_OnListingFiresForCacheAndNetwork(t *testing.T) {
	ctx := context.Background()
	lister := &fakeLister{coins: twoCoins()}
	s := NewStore(lister, cache.NewListingCache(storage.NewMemoryKV()), nil)

	var got [][]model.CoinSummary
	s.OnListing(func(coins []model.CoinSummary) { got = append(got, coins) })

	require.NoError(t, s.Refresh(ctx))
	require.NoError(t, s.Refresh(ctx))
	require.Len(t, got, 2)
	assert.Equal(t, twoCoins(), got[0])
	assert.Equal(t, twoCoins(), got[1])

	lister.err = errors.New("down")
	s2 := NewStore(lister, cache.NewListingCache(storage.NewMemoryKV()), nil)
	fired := false
	s2.OnListing(func([]model.CoinSummary) { fired = true })
	require.Error(t, s2.Refresh(ctx))
	assert.False(t, fired)
}

func TestStore_SetSearchResetsPage(t *testing.T) {
	s := NewStore(nil, nil, nil)
	s.SetPage(4)
	s.SetSearch("  Bit ")

	st := s.State()
	assert.Equal(t, "  Bit ", st.Search)
	assert.Equal(t, 1, st.Page)
}

func TestStore_ToggleSort(t *testing.T) {
	s := NewStore(nil, nil, nil)

	s.ToggleSort(model.SortByPrice)
	assert.Equal(t, &model.SortConfig{Key: model.SortByPrice, Direction: model.Ascending}, s.State().Sort)

	s.ToggleSort(model.SortByPrice)
	assert.Equal(t, &model.SortConfig{Key: model.SortByPrice, Direction: model.Descending}, s.State().Sort)

	// descending flips back to ascending, never to unsorted
	s.ToggleSort(model.SortByPrice)
	assert.Equal(t, &model.SortConfig{Key: model.SortByPrice, Direction: model.Ascending}, s.State().Sort)

	s.ToggleSort(model.SortByPrice)
	s.ToggleSort(model.SortByName)
	assert.Equal(t, &model.SortConfig{Key: model.SortByName, Direction: model.Ascending}, s.State().Sort)
}

func TestStore_ToggleSortKeepsPage(t *testing.T) {
	s := NewStore(nil, nil, nil)
	s.SetPage(3)
	s.ToggleSort(model.SortByVolume)
	assert.Equal(t, 3, s.State().Page)
}

func TestStore_StateIsSnapshot(t *testing.T) {
	s := NewStore(nil, nil, nil)
	s.ToggleSort(model.SortByName)

	st := s.State()
	st.Sort.Direction = model.Descending
	assert.Equal(t, model.Ascending, s.State().Sort.Direction)
}

func TestStore_View(t *testing.T) {
	ctx := context.Background()
	s := NewStore(&fakeLister{coins: twoCoins()}, cache.NewListingCache(storage.NewMemoryKV()), nil)
	require.NoError(t, s.Refresh(ctx))

	s.SetSearch("eth")
	s.ToggleSort(model.SortByMarketCap)

	page := s.View()
	assert.Equal(t, []string{"Ethereum"}, namesOf(page.Coins))
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 1, page.Number)
}
