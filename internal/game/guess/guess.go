// Package guess implements the coin guessing game: a randomly featured coin,
// a hint derived from its market data, a score, and a three-stage answer reveal.
package guess

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"crypto-explorer-bot/internal/model"
	"crypto-explorer-bot/internal/pkg/format"
)

const (
	// DefaultSuccessDelay is the pause between a correct guess and the next coin.
	DefaultSuccessDelay = 1500 * time.Millisecond
	// DefaultRevealDelay is the pause between revealing the answer and the next coin.
	DefaultRevealDelay = 5000 * time.Millisecond
)

// Player-facing messages.
const (
	SuccessMessage = "Correct! Great job!"
	RetryMessage   = `Sorry, that's incorrect. Try again or use the "Show Answer" button.`
	LoadingMessage = "Loading game..."
)

var (
	// ErrNoCoin is returned when the listing is empty and no coin is featured.
	ErrNoCoin = errors.New("no coin featured")
	// ErrRoundOver is returned for guesses made after the round was won or revealed.
	ErrRoundOver = errors.New("round already decided")
)

// Stage is the answer reveal stage.
type Stage int

const (
	Hidden Stage = iota
	Confirming
	Revealed
)

func (s Stage) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Confirming:
		return "confirming"
	case Revealed:
		return "revealed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Snapshot is a copy of the game state.
type Snapshot struct {
	Coin     *model.CoinSummary
	Guess    string
	Feedback string
	Score    int
	Stage    Stage
}

// Result is the outcome of one guess.
type Result struct {
	Correct  bool
	Feedback string
	Score    int
}

// Option configures a Game.
type Option func(*Game)

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s Scheduler) Option {
	return func(g *Game) { g.sched = s }
}

// WithPicker replaces the uniform random index picker. pick(n) must return a value in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(g *Game) { g.pick = pick }
}

// WithDelays sets the correct-guess and reveal delays.
func WithDelays(success, reveal time.Duration) Option {
	return func(g *Game) {
		g.successDelay = success
		g.revealDelay = reveal
	}
}

// Game is one player's guessing game. It is safe for concurrent use; scheduled
// selections run on the scheduler's goroutine.
type Game struct {
	mu        sync.Mutex
	listing   []model.CoinSummary
	coin      *model.CoinSummary
	guess     string
	feedback  string
	score     int
	stage     Stage
	decided   bool
	round     uint64
	timers    []Timer
	closed    bool
	onNewCoin func(model.CoinSummary)

	sched        Scheduler
	pick         func(n int) int
	successDelay time.Duration
	revealDelay  time.Duration
}

// New creates a Game with no listing.
func New(opts ...Option) *Game {
	g := &Game{
		sched:        WallClock{},
		pick:         rand.Intn,
		successDelay: DefaultSuccessDelay,
		revealDelay:  DefaultRevealDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OnNewCoin registers fn to run after each delayed selection, outside the game lock.
func (g *Game) OnNewCoin(fn func(model.CoinSummary)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onNewCoin = fn
}

// SetListing replaces the source listing and features a new coin when the listing changed.
// An identical listing (same ids, prices and caps in the same order) keeps the current round.
func (g *Game) SetListing(coins []model.CoinSummary) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.coin != nil && sameListing(g.listing, coins) {
		return
	}
	g.listing = slices.Clone(coins)
	g.selectLocked()
}

func sameListing(a, b []model.CoinSummary) bool {
	return slices.EqualFunc(a, b, func(x, y model.CoinSummary) bool {
		return x.ID == y.ID && x.CurrentPrice == y.CurrentPrice && x.MarketCap == y.MarketCap
	})
}

// selectLocked starts a new round. Pending timers are stopped; any that already
// fired see a newer round and do nothing.
func (g *Game) selectLocked() {
	g.round++
	for _, t := range g.timers {
		t.Stop()
	}
	g.timers = nil

	g.coin = nil
	if n := len(g.listing); n > 0 {
		c := g.listing[g.pick(n)]
		g.coin = &c
	}
	g.stage = Hidden
	g.decided = false
	g.feedback = ""
	g.guess = ""
}

func (g *Game) scheduleLocked(d time.Duration) {
	round := g.round
	g.timers = append(g.timers, g.sched.AfterFunc(d, func() { g.advance(round) }))
}

func (g *Game) advance(round uint64) {
	g.mu.Lock()
	if g.closed || round != g.round {
		g.mu.Unlock()
		log.Debug().Uint64("round", round).Msg("Dropping stale coin selection")
		return
	}
	g.selectLocked()
	fn := g.onNewCoin
	var coin model.CoinSummary
	ok := g.coin != nil
	if ok {
		coin = *g.coin
	}
	g.mu.Unlock()

	if fn != nil && ok {
		fn(coin)
	}
}

// SetGuess stores the draft guess text.
func (g *Game) SetGuess(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.guess = text
}

// SubmitGuess checks text against the featured coin's name, ignoring case.
// A correct guess scores one point and schedules the next coin; a wrong guess
// costs one point, never going below zero.
func (g *Game) SubmitGuess(text string) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.guess = ""
	if g.coin == nil {
		return Result{}, ErrNoCoin
	}
	if g.decided {
		return Result{}, ErrRoundOver
	}

	if strings.EqualFold(text, g.coin.Name) {
		g.feedback = SuccessMessage
		g.score++
		g.decided = true
		g.scheduleLocked(g.successDelay)
		return Result{Correct: true, Feedback: g.feedback, Score: g.score}, nil
	}

	g.feedback = RetryMessage
	g.score = max(0, g.score-1)
	return Result{Feedback: g.feedback, Score: g.score}, nil
}

// RequestReveal advances the reveal stage: hidden asks for confirmation,
// confirming reveals the answer and schedules the next coin, revealed does nothing.
func (g *Game) RequestReveal() (Stage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.coin == nil {
		return g.stage, ErrNoCoin
	}

	switch g.stage {
	case Hidden:
		g.stage = Confirming
	case Confirming:
		g.stage = Revealed
		g.feedback = fmt.Sprintf("The correct answer is %s.", g.coin.Name)
		g.decided = true
		g.scheduleLocked(g.revealDelay)
	}
	return g.stage, nil
}

// Hint describes the featured coin by market cap and price.
func (g *Game) Hint() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.coin == nil {
		return "", ErrNoCoin
	}
	return HintFor(*g.coin), nil
}

// HintFor formats the hint for coin.
func HintFor(coin model.CoinSummary) string {
	return fmt.Sprintf("This cryptocurrency has a market cap of %s and its current price is %s.",
		format.USD(coin.MarketCap), format.USD(coin.CurrentPrice))
}

// Snapshot returns a copy of the game state.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Guess:    g.guess,
		Feedback: g.feedback,
		Score:    g.score,
		Stage:    g.stage,
	}
	if g.coin != nil {
		c := *g.coin
		s.Coin = &c
	}
	return s
}

// Close stops pending timers. Selections scheduled before Close never run.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
	for _, t := range g.timers {
		t.Stop()
	}
	g.timers = nil
}
