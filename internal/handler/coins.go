// Package handler provides Telegram bot command and callback handlers.
package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"crypto-explorer-bot/internal/model"
	"crypto-explorer-bot/internal/service"
	"crypto-explorer-bot/internal/view"
)

// requestTimeout bounds the upstream work done for one update.
const requestTimeout = 20 * time.Second

// CoinsHandler serves the list and detail views.
type CoinsHandler struct {
	sessions *service.SessionManager
}

// NewCoinsHandler creates a new CoinsHandler.
func NewCoinsHandler(sessions *service.SessionManager) *CoinsHandler {
	return &CoinsHandler{sessions: sessions}
}

// HandleList handles /start, /coins and /refresh: posts a loading message,
// refreshes the listing and edits the message into the current page.
func (h *CoinsHandler) HandleList(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	msg, err := c.Bot().Send(chat, LoadingText)
	if err != nil {
		return err
	}

	s, err := h.sessions.Refresh(ctx, chat.ID)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("Listing refresh failed")
	}

	text, markup := h.renderList(s)
	_, err = c.Bot().Edit(msg, text, markup)
	return ignoreNotModified(err)
}

// HandleDetail handles /coin <id>.
func (h *CoinsHandler) HandleDetail(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	id := strings.ToLower(strings.TrimSpace(c.Message().Payload))
	if id == "" {
		return c.Reply("Usage: /coin <id>, for example /coin bitcoin")
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	msg, err := c.Bot().Send(chat, LoadingText)
	if err != nil {
		return err
	}

	text, markup := h.renderDetail(ctx, h.sessions.Get(chat.ID), id)
	_, err = c.Bot().Edit(msg, text, markup)
	return ignoreNotModified(err)
}

// HandleSearch handles /search <text>. An empty payload clears the search.
func (h *CoinsHandler) HandleSearch(c tele.Context) error {
	return h.search(c, c.Message().Payload)
}

// HandleText treats plain text in a private chat as a search.
// Unknown commands arrive here too and are ignored.
func (h *CoinsHandler) HandleText(c tele.Context) error {
	chat := c.Chat()
	if chat == nil || chat.Type != tele.ChatPrivate {
		return nil
	}
	text := c.Text()
	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		return nil
	}
	return h.search(c, text)
}

func (h *CoinsHandler) search(c tele.Context, text string) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	s, err := h.sessions.EnsureListing(ctx, chat.ID)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("Listing refresh failed")
	}
	s.Store.SetSearch(text)

	msgText, markup := h.renderList(s)
	return c.Send(msgText, markup)
}

// HandleCallback routes coins_* callbacks.
func (h *CoinsHandler) HandleCallback(c tele.Context) error {
	cb := c.Callback()
	chat := c.Chat()
	if cb == nil || chat == nil {
		return nil
	}

	action, param := DecodeCallback(CoinsCallbackPrefix, cb.Data)
	log.Debug().Str("action", action).Str("param", param).Msg("Coins callback")

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	s := h.sessions.Get(chat.ID)
	var ack *tele.CallbackResponse

	switch action {
	case ActionNoop:
		return c.Respond()

	case ActionDetail:
		_ = c.Respond()
		if !s.Store.Details().Cached(param) {
			_ = ignoreNotModified(c.Edit(LoadingText))
		}
		text, markup := h.renderDetail(ctx, s, param)
		return ignoreNotModified(c.Edit(text, markup))

	case ActionRefresh:
		ack = &tele.CallbackResponse{Text: "Refreshing..."}
		_ = c.Respond(ack)
		_ = ignoreNotModified(c.Edit(LoadingText))
		if _, err := h.sessions.Refresh(ctx, chat.ID); err != nil {
			log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("Listing refresh failed")
		}

	case ActionSort:
		key := model.SortKey(param)
		if !key.Valid() {
			return c.Respond(&tele.CallbackResponse{Text: "Unknown column", ShowAlert: true})
		}
		s.Store.ToggleSort(key)

	case ActionPage:
		n, err := strconv.Atoi(param)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: "Invalid page", ShowAlert: true})
		}
		s.Store.SetPage(n)

	case ActionList:
		// back-link: fall through to rendering the list

	default:
		return c.Respond()
	}

	if _, err := h.sessions.EnsureListing(ctx, chat.ID); err != nil {
		log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("Listing refresh failed")
	}

	if ack == nil {
		_ = c.Respond()
	}
	text, markup := h.renderList(s)
	return ignoreNotModified(c.Edit(text, markup))
}

// renderList clamps the page to the derived range and renders it.
func (h *CoinsHandler) renderList(s *service.Session) (string, *tele.ReplyMarkup) {
	page := s.Store.View()
	if clamped := view.ClampPage(page.Number, page.TotalPages); clamped != page.Number {
		s.Store.SetPage(clamped)
		page = s.Store.View()
	}

	st := s.Store.State()
	if st.Error != "" {
		return FormatListMessage(st, page), BuildErrorKeyboard()
	}
	return FormatListMessage(st, page), BuildListKeyboard(page, st.Sort)
}

func (h *CoinsHandler) renderDetail(ctx context.Context, s *service.Session, id string) (string, *tele.ReplyMarkup) {
	d, err := s.Store.Details().Get(ctx, id)
	switch {
	case err != nil:
		log.Error().Err(err).Str("coin_id", id).Msg("Error fetching coin detail")
		return DetailErrorMessage, BuildDetailKeyboard()
	case d == nil:
		return NoDetailMessage, BuildDetailKeyboard()
	default:
		return FormatDetailMessage(d), BuildDetailKeyboard()
	}
}

// ignoreNotModified drops Telegram's complaint about an edit that changes nothing.
func ignoreNotModified(err error) error {
	if errors.Is(err, tele.ErrSameMessageContent) {
		return nil
	}
	return err
}
