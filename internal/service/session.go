// Package service ties per-chat sessions and the leaderboard to the bot handlers.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"crypto-explorer-bot/internal/game/guess"
	"crypto-explorer-bot/internal/model"
	"crypto-explorer-bot/internal/pkg/lock"
	"crypto-explorer-bot/internal/view"
)

// DefaultIdleTimeout is how long an untouched session is kept.
const DefaultIdleTimeout = 24 * time.Hour

// DefaultSweepInterval is used by StartJanitor when given a non-positive interval.
const DefaultSweepInterval = 10 * time.Minute

// Session is one chat's client state: the list view and the guessing game.
// The game and its score are shared by everyone in the chat; streaks track
// each user's own guesses.
type Session struct {
	ChatID int64
	Store  *view.Store
	Game   *guess.Game

	lastSeen time.Time

	mu      sync.Mutex
	streaks map[int64]int
}

// RecordGuess updates userID's streak in this chat the way the game scores:
// a correct guess adds one, a wrong one takes one away, never below zero.
// It returns the new streak.
func (s *Session) RecordGuess(userID int64, correct bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streaks == nil {
		s.streaks = make(map[int64]int)
	}
	if correct {
		s.streaks[userID]++
	} else {
		s.streaks[userID] = max(0, s.streaks[userID]-1)
	}
	return s.streaks[userID]
}

// Streak returns userID's current streak in this chat.
func (s *Session) Streak(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaks[userID]
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithIdleTimeout sets how long an untouched session survives a sweep.
func WithIdleTimeout(d time.Duration) SessionOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithGameOptions passes options to every new session's game.
func WithGameOptions(opts ...guess.Option) SessionOption {
	return func(m *SessionManager) { m.gameOpts = append(m.gameOpts, opts...) }
}

// WithNewCoinNotifier registers fn to run when a chat's game features a new coin after a delay.
func WithNewCoinNotifier(fn func(chatID int64, coin model.CoinSummary)) SessionOption {
	return func(m *SessionManager) { m.notify = fn }
}

// WithSessionClock replaces time.Now for idle tracking.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

// SessionManager owns the per-chat sessions. Sessions are created on first use
// and dropped by Sweep once idle.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	lister   view.Lister
	details  view.DetailSource
	listings view.ListingCache
	chatLock *lock.ChatLock

	idleTimeout time.Duration
	gameOpts    []guess.Option
	notify      func(chatID int64, coin model.CoinSummary)
	now         func() time.Time
}

// NewSessionManager creates a SessionManager. All sessions share the listing cache;
// each gets its own detail memo and game.
func NewSessionManager(lister view.Lister, details view.DetailSource, listings view.ListingCache, chatLock *lock.ChatLock, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		sessions:    make(map[int64]*Session),
		lister:      lister,
		details:     details,
		listings:    listings,
		chatLock:    chatLock,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the chat's session, creating it on first use.
func (m *SessionManager) Get(chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		s = m.newSession(chatID)
		m.sessions[chatID] = s
		log.Debug().Int64("chat_id", chatID).Msg("Session created")
	}
	s.lastSeen = m.now()
	return s
}

func (m *SessionManager) newSession(chatID int64) *Session {
	store := view.NewStore(m.lister, m.listings, view.NewDetailFetcher(m.details))
	g := guess.New(m.gameOpts...)
	store.OnListing(g.SetListing)

	if notify := m.notify; notify != nil {
		g.OnNewCoin(func(coin model.CoinSummary) { notify(chatID, coin) })
	}

	return &Session{ChatID: chatID, Store: store, Game: g}
}

// Refresh reloads the chat's listing. Refreshes of one chat run one at a time,
// so a refresh queued behind another is served by the listing cache.
func (m *SessionManager) Refresh(ctx context.Context, chatID int64) (*Session, error) {
	s := m.Get(chatID)

	if err := m.chatLock.LockContext(ctx, chatID); err != nil {
		return s, err
	}
	defer m.chatLock.Unlock(chatID)

	if err := s.Store.Refresh(ctx); err != nil {
		return s, fmt.Errorf("refresh chat %d: %w", chatID, err)
	}
	return s, nil
}

// EnsureListing refreshes the chat's listing only when none is loaded yet.
func (m *SessionManager) EnsureListing(ctx context.Context, chatID int64) (*Session, error) {
	s := m.Get(chatID)
	if len(s.Store.State().Coins) > 0 {
		return s, nil
	}
	return m.Refresh(ctx, chatID)
}

// Sweep drops sessions idle for longer than the idle timeout and stops their games.
// It returns the number of sessions dropped.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	now := m.now()
	var stale []*Session
	for id, s := range m.sessions {
		if now.Sub(s.lastSeen) >= m.idleTimeout {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Game.Close()
	}
	if len(stale) > 0 {
		log.Info().Int("evicted", len(stale)).Msg("Idle sessions evicted")
	}
	return len(stale)
}

// StartJanitor sweeps every interval until ctx is done.
func (m *SessionManager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session's game.
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[int64]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Game.Close()
	}
}
