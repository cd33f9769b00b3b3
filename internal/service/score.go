package service

import (
	"context"
	"errors"
	"fmt"

	"crypto-explorer-bot/internal/model"
	"crypto-explorer-bot/internal/repository"
)

// DefaultTopLimit is the leaderboard length.
const DefaultTopLimit = 10

// ScoreStore persists guessing game results.
type ScoreStore interface {
	RecordCorrect(ctx context.Context, userID int64, username string, score int64) (*model.GuessScore, error)
	GetByUserID(ctx context.Context, userID int64) (*model.GuessScore, error)
	GetTop(ctx context.Context, limit int) ([]*model.GuessScore, error)
}

// ScoreService handles the guessing game leaderboard.
type ScoreService struct {
	repo ScoreStore
}

// NewScoreService creates a new ScoreService instance.
func NewScoreService(repo ScoreStore) *ScoreService {
	return &ScoreService{repo: repo}
}

// RecordCorrect records one correct guess. score is the player's session score after the guess.
func (s *ScoreService) RecordCorrect(ctx context.Context, userID int64, username string, score int) (*model.GuessScore, error) {
	rec, err := s.repo.RecordCorrect(ctx, userID, username, int64(max(0, score)))
	if err != nil {
		return nil, fmt.Errorf("record guess for user %d: %w", userID, err)
	}
	return rec, nil
}

// Get returns the user's record, or nil when the user has none.
func (s *ScoreService) Get(ctx context.Context, userID int64) (*model.GuessScore, error) {
	rec, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrScoreNotFound) {
		return nil, nil
	}
	return rec, err
}

// Top returns the leaderboard. A non-positive limit means DefaultTopLimit.
func (s *ScoreService) Top(ctx context.Context, limit int) ([]*model.GuessScore, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	return s.repo.GetTop(ctx, limit)
}
