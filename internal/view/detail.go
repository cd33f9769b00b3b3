package view

import (
	"context"
	"sync"

	"crypto-explorer-bot/internal/model"
)

// DetailSource fetches one coin detail document.
type DetailSource interface {
	GetDetail(ctx context.Context, id string) (*model.CoinDetail, error)
}

// DetailFetcher memoizes detail documents by coin id for the lifetime of a session.
// Fetched documents are never refreshed or evicted.
type DetailFetcher struct {
	mu      sync.RWMutex
	source  DetailSource
	details map[string]*model.CoinDetail
}

// NewDetailFetcher creates an empty DetailFetcher.
func NewDetailFetcher(source DetailSource) *DetailFetcher {
	return &DetailFetcher{
		source:  source,
		details: make(map[string]*model.CoinDetail),
	}
}

// Get returns the memoized document for id, fetching it on first use.
// Fetch errors are returned unchanged. A (nil, nil) result from the source
// is passed through and not memoized.
func (f *DetailFetcher) Get(ctx context.Context, id string) (*model.CoinDetail, error) {
	f.mu.RLock()
	d, ok := f.details[id]
	f.mu.RUnlock()
	if ok {
		return d, nil
	}

	d, err := f.source.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.details[id]; ok {
		return existing, nil
	}
	f.details[id] = d
	return d, nil
}

// Cached reports whether id has been fetched.
func (f *DetailFetcher) Cached(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.details[id]
	return ok
}

// Len returns the number of memoized documents.
func (f *DetailFetcher) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.details)
}
