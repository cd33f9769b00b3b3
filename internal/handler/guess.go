package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"crypto-explorer-bot/internal/game/guess"
	"crypto-explorer-bot/internal/model"
	"crypto-explorer-bot/internal/service"
)

// RoundOverMessage answers guesses made while the next coin is pending.
const RoundOverMessage = "This round is over, the next coin is on its way."

// GuessHandler serves the guessing game.
type GuessHandler struct {
	sessions *service.SessionManager
	scores   *service.ScoreService
}

// NewGuessHandler creates a new GuessHandler.
func NewGuessHandler(sessions *service.SessionManager, scores *service.ScoreService) *GuessHandler {
	return &GuessHandler{sessions: sessions, scores: scores}
}

// session returns the chat's session with a listing loaded, so the game has a coin.
func (h *GuessHandler) session(ctx context.Context, chatID int64) *service.Session {
	s, err := h.sessions.EnsureListing(ctx, chatID)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Listing refresh failed")
	}
	return s
}

// HandleGuess handles /guess [name]. Without a name it shows the game panel.
func (h *GuessHandler) HandleGuess(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	s := h.session(ctx, chat.ID)
	text := strings.TrimSpace(c.Message().Payload)
	if text == "" {
		return sendPanel(c, s.Game.Snapshot())
	}

	s.Game.SetGuess(text)
	res, err := s.Game.SubmitGuess(text)
	switch {
	case errors.Is(err, guess.ErrNoCoin):
		return c.Reply(guess.LoadingMessage)
	case errors.Is(err, guess.ErrRoundOver):
		return c.Reply(RoundOverMessage)
	case err != nil:
		return err
	}

	reply := res.Feedback + "\nScore: " + strconv.Itoa(res.Score)
	if sender := c.Sender(); sender != nil {
		streak := s.RecordGuess(sender.ID, res.Correct)
		if res.Correct {
			h.recordCorrect(ctx, sender, streak)
		}
		if chat.Type != tele.ChatPrivate {
			reply += " | Your streak: " + strconv.Itoa(streak)
		}
	}
	return c.Reply(reply)
}

// recordCorrect credits sender with a correct guess; streak is the sender's own
// streak in the chat, never the chat's shared score.
func (h *GuessHandler) recordCorrect(ctx context.Context, sender *tele.User, streak int) {
	if h.scores == nil {
		return
	}
	if _, err := h.scores.RecordCorrect(ctx, sender.ID, sender.Username, streak); err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to record correct guess")
	}
}

// HandleHint handles /hint.
func (h *GuessHandler) HandleHint(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	return sendPanel(c, h.session(ctx, chat.ID).Game.Snapshot())
}

// HandleReveal handles /reveal and the guess_reveal button.
func (h *GuessHandler) HandleReveal(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	s := h.session(ctx, chat.ID)
	_, err := s.Game.RequestReveal()
	if errors.Is(err, guess.ErrNoCoin) {
		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: guess.LoadingMessage})
		}
		return c.Reply(guess.LoadingMessage)
	}
	if err != nil {
		return err
	}

	snap := s.Game.Snapshot()
	if c.Callback() != nil {
		_ = c.Respond()
		return editPanel(c, snap)
	}
	return sendPanel(c, snap)
}

// HandleCallback routes guess_* callbacks.
func (h *GuessHandler) HandleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}

	action, _ := DecodeCallback(GuessCallbackPrefix, cb.Data)
	if action == ActionReveal {
		return h.HandleReveal(c)
	}
	return c.Respond()
}

// MessageSender is the part of *tele.Bot used to post unsolicited messages.
type MessageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// AnnounceCoin posts the hint for a newly featured coin.
func AnnounceCoin(sender MessageSender, chatID int64, coin model.CoinSummary) error {
	text := "🎯 New coin!\n" + guess.HintFor(coin) + "\nReply with /guess <name>."
	_, err := sender.Send(tele.ChatID(chatID), text, BuildRevealKeyboard(guess.Hidden))
	return err
}

func sendPanel(c tele.Context, snap guess.Snapshot) error {
	text := FormatGameMessage(snap)
	if markup := panelKeyboard(snap); markup != nil {
		return c.Send(text, markup)
	}
	return c.Send(text)
}

func editPanel(c tele.Context, snap guess.Snapshot) error {
	text := FormatGameMessage(snap)
	if markup := panelKeyboard(snap); markup != nil {
		return ignoreNotModified(c.Edit(text, markup))
	}
	return ignoreNotModified(c.Edit(text))
}

func panelKeyboard(snap guess.Snapshot) *tele.ReplyMarkup {
	if snap.Coin == nil {
		return nil
	}
	return BuildRevealKeyboard(snap.Stage)
}
