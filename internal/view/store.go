// Package view holds the per-session list view state: the store and its transitions,
// the pure derivation pipeline (sort, filter, paginate) and the memoizing detail fetcher.
package view

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"crypto-explorer-bot/internal/cache"
	"crypto-explorer-bot/internal/model"
)

// FetchErrorMessage is shown in place of the listing when a fetch fails.
const FetchErrorMessage = "An error occurred while fetching data."

// Lister fetches the market listing.
type Lister interface {
	ListMarkets(ctx context.Context) ([]model.CoinSummary, error)
}

// ListingCache is consulted before every listing fetch and written after every successful one.
type ListingCache interface {
	Load(ctx context.Context) (*cache.CachedListing, error)
	Store(ctx context.Context, coins []model.CoinSummary) error
}

// State is a snapshot of the list view. Loading and Error are never both set
// once a refresh completes; an empty Error means no error.
type State struct {
	Coins   []model.CoinSummary
	Search  string
	Page    int
	Sort    *model.SortConfig
	Loading bool
	Error   string
}

// Store is the single source of truth for list-view interaction in one session.
type Store struct {
	mu        sync.RWMutex
	state     State
	lister    Lister
	cache     ListingCache
	details   *DetailFetcher
	onListing func([]model.CoinSummary)
}

// NewStore creates a Store. The store starts on page 1 with no listing.
func NewStore(lister Lister, listingCache ListingCache, details *DetailFetcher) *Store {
	return &Store{
		state:   State{Page: 1},
		lister:  lister,
		cache:   listingCache,
		details: details,
	}
}

// OnListing registers fn to run after every successful listing install,
// whether it came from the cache or the network.
func (s *Store) OnListing(fn func([]model.CoinSummary)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onListing = fn
}

// Details returns the session's detail fetcher.
func (s *Store) Details() *DetailFetcher {
	return s.details
}

// State returns a snapshot of the current view state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	if st.Sort != nil {
		sc := *st.Sort
		st.Sort = &sc
	}
	return st
}

// View derives the current page from the state.
func (s *Store) View() Page {
	return Derive(s.State())
}

// Refresh reloads the listing from the cache, or from the market client on a miss.
// On failure the previous listing is kept and Error is set; the error is returned for logging.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.state.Loading = true
	s.state.Error = ""
	s.mu.Unlock()

	cached, err := s.cache.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Listing cache unavailable, fetching from market API")
	}
	if cached != nil {
		log.Debug().Int("count", len(cached.Coins)).Time("stored_at", cached.StoredAt).Msg("Listing served from cache")
		s.install(cached.Coins)
		return nil
	}

	coins, err := s.lister.ListMarkets(ctx)
	if err != nil {
		s.mu.Lock()
		s.state.Loading = false
		s.state.Error = FetchErrorMessage
		s.mu.Unlock()
		log.Error().Err(err).Msg("Error fetching coin data")
		return err
	}

	s.install(coins)

	if err := s.cache.Store(ctx, coins); err != nil {
		log.Warn().Err(err).Msg("Failed to write listing cache")
	}
	return nil
}

func (s *Store) install(coins []model.CoinSummary) {
	s.mu.Lock()
	s.state.Coins = coins
	s.state.Loading = false
	fn := s.onListing
	s.mu.Unlock()

	if fn != nil {
		fn(coins)
	}
}

// SetSearch replaces the search text verbatim and returns to page 1.
func (s *Store) SetSearch(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Search = text
	s.state.Page = 1
}

// ToggleSort sorts by key ascending, or flips to descending when key is already
// the ascending sort. There is no way back to insertion order.
func (s *Store) ToggleSort(key model.SortKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := model.Ascending
	if sc := s.state.Sort; sc != nil && sc.Key == key && sc.Direction == model.Ascending {
		dir = model.Descending
	}
	s.state.Sort = &model.SortConfig{Key: key, Direction: dir}
}

// SetPage replaces the current page. Callers clamp; see ClampPage.
func (s *Store) SetPage(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Page = n
}
