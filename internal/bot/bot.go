// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"crypto-explorer-bot/internal/config"
	"crypto-explorer-bot/internal/game/guess"
	"crypto-explorer-bot/internal/handler"
	"crypto-explorer-bot/internal/model"
	"crypto-explorer-bot/internal/pkg/lock"
	"crypto-explorer-bot/internal/service"
	"crypto-explorer-bot/internal/view"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot       *tele.Bot
	cfg       *config.Config
	sessions  *service.SessionManager
	whitelist *Whitelist

	ctx    context.Context
	cancel context.CancelFunc

	// Handlers
	coinsHandler   *handler.CoinsHandler
	guessHandler   *handler.GuessHandler
	rankingHandler *handler.RankingHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config   *config.Config
	Lister   view.Lister
	Details  view.DetailSource
	Listings view.ListingCache
	Scores   *service.ScoreService
	ChatLock *lock.ChatLock
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pollTimeout := deps.Config.Bot.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		bot:       teleBot,
		cfg:       deps.Config,
		whitelist: NewWhitelist(deps.Config),
		ctx:       ctx,
		cancel:    cancel,
	}

	b.sessions = service.NewSessionManager(
		deps.Lister,
		deps.Details,
		deps.Listings,
		deps.ChatLock,
		service.WithIdleTimeout(deps.Config.Session.IdleTimeout),
		service.WithGameOptions(guess.WithDelays(deps.Config.Game.SuccessDelay, deps.Config.Game.RevealDelay)),
		service.WithNewCoinNotifier(b.announce),
	)

	// Initialize handlers
	b.coinsHandler = handler.NewCoinsHandler(b.sessions)
	b.guessHandler = handler.NewGuessHandler(b.sessions, deps.Scores)
	b.rankingHandler = handler.NewRankingHandler(deps.Scores)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.whitelist))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// List and detail views
	b.bot.Handle("/start", b.coinsHandler.HandleList)
	b.bot.Handle("/coins", b.coinsHandler.HandleList)
	b.bot.Handle("/refresh", b.coinsHandler.HandleList)
	b.bot.Handle("/coin", b.coinsHandler.HandleDetail)
	b.bot.Handle("/search", b.coinsHandler.HandleSearch)
	b.bot.Handle(tele.OnText, b.coinsHandler.HandleText)

	// Guessing game
	b.bot.Handle("/guess", b.guessHandler.HandleGuess)
	b.bot.Handle("/hint", b.guessHandler.HandleHint)
	b.bot.Handle("/reveal", b.guessHandler.HandleReveal)

	// Leaderboard
	b.bot.Handle("/top", b.rankingHandler.HandleTop)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes callbacks to the handler owning their prefix.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot v3 may add a \f prefix to callback data
	data := strings.TrimPrefix(callback.Data, "\f")
	log.Debug().Str("data", data).Msg("Callback received")

	switch {
	case strings.HasPrefix(data, handler.CoinsCallbackPrefix):
		return b.coinsHandler.HandleCallback(c)
	case strings.HasPrefix(data, handler.GuessCallbackPrefix):
		return b.guessHandler.HandleCallback(c)
	default:
		return c.Respond()
	}
}

// announce posts a newly featured coin's hint to the chat.
func (b *Bot) announce(chatID int64, coin model.CoinSummary) {
	if err := handler.AnnounceCoin(b.bot, chatID, coin); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to announce new coin")
	}
}

// Start starts the session janitor and the bot polling. It blocks until Stop.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")

	b.sessions.StartJanitor(b.ctx, b.cfg.Session.SweepInterval)
	log.Info().Dur("interval", b.cfg.Session.SweepInterval).Msg("Session janitor started")

	b.bot.Start()
}

// Stop stops the bot gracefully and closes all sessions.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
	b.cancel()
	b.sessions.Close()
}
