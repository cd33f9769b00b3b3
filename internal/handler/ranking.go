package handler

import (
	"context"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"crypto-explorer-bot/internal/service"
)

// RankingHandler handles the leaderboard command.
type RankingHandler struct {
	scores *service.ScoreService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(scores *service.ScoreService) *RankingHandler {
	return &RankingHandler{scores: scores}
}

// HandleTop handles /top: the ten users with the most correct guesses.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	top, err := h.scores.Top(ctx, service.DefaultTopLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load leaderboard")
		return c.Reply("❌ Failed to load the leaderboard, please try again later.")
	}
	return c.Reply(FormatLeaderboard(top))
}
