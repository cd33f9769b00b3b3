package bot

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"crypto-explorer-bot/internal/config"
	"crypto-explorer-bot/internal/handler"
)

// Whitelist decides which chats the bot serves. Group chats must be listed in
// the configuration. A private chat is served once its user has been seen in
// a listed group, or always when no whitelist is configured.
type Whitelist struct {
	cfg *config.Config

	mu    sync.RWMutex
	users map[int64]bool
}

// NewWhitelist creates a Whitelist over cfg's chat list.
func NewWhitelist(cfg *config.Config) *Whitelist {
	return &Whitelist{cfg: cfg, users: make(map[int64]bool)}
}

// AllowUser marks a user as allowed to use private chat.
func (w *Whitelist) AllowUser(userID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.users[userID] = true
}

// IsUserAllowed checks if a user is allowed to use private chat.
func (w *Whitelist) IsUserAllowed(userID int64) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.users[userID]
}

// Allow reports whether an update from sender in chat should be handled,
// remembering senders seen in allowed groups.
func (w *Whitelist) Allow(chat *tele.Chat, sender *tele.User) bool {
	if chat == nil || sender == nil {
		return false
	}

	if chat.Type == tele.ChatPrivate {
		return len(w.cfg.Whitelist.Chats) == 0 || w.IsUserAllowed(sender.ID)
	}

	if !w.cfg.IsChatAllowed(chat.ID) {
		return false
	}
	w.AllowUser(sender.ID)
	return true
}

// WhitelistMiddleware creates a middleware that drops updates from chats the whitelist rejects.
func WhitelistMiddleware(w *Whitelist) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !w.Allow(c.Chat(), c.Sender()) {
				logEvent := log.Debug()
				if chat := c.Chat(); chat != nil {
					logEvent = logEvent.Int64("chat_id", chat.ID).Str("chat_type", string(chat.Type))
				}
				logEvent.Msg("Ignoring update from non-whitelisted chat")
				return nil
			}
			return next(c)
		}
	}
}

// LoggingMiddleware creates a middleware that logs all incoming updates.
// Each update gets a request id, stored on the context under "request_id".
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			requestID := uuid.NewString()
			c.Set("request_id", requestID)

			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug().Str("request_id", requestID)
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			if cb := c.Callback(); cb != nil {
				logEvent = logEvent.Str("callback", cb.Data)
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received update")

			err := next(c)
			if err != nil {
				log.Warn().Err(err).Str("request_id", requestID).Msg("Update failed")
			}
			return err
		}
	}
}

// RecoveryMiddleware creates a middleware that recovers from panics.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("text", c.Text()).
						Msg("Recovered from panic in handler")
					if c.Callback() != nil {
						_ = c.Respond(&tele.CallbackResponse{Text: "Something went wrong"})
					}
					if c.Chat() != nil {
						_ = c.Send(handler.InternalError)
					}
					err = nil
				}
			}()
			return next(c)
		}
	}
}
