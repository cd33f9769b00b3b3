package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crypto-explorer-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrScoreNotFound = errors.New("score not found")
)

// ScoreRepository handles guessing game score persistence.
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a new ScoreRepository instance.
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// RecordCorrect increments the user's correct guess count and raises the
// best score to score if it is higher. The username is refreshed every time.
func (r *ScoreRepository) RecordCorrect(ctx context.Context, userID int64, username string, score int64) (*model.GuessScore, error) {
	const query = `
		INSERT INTO guess_scores (user_id, username, correct_guesses, best_score, updated_at)
		VALUES ($1, $2, 1, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			correct_guesses = guess_scores.correct_guesses + 1,
			best_score = GREATEST(guess_scores.best_score, EXCLUDED.best_score),
			updated_at = NOW()
		RETURNING user_id, username, correct_guesses, best_score, updated_at
	`

	var s model.GuessScore
	err := r.pool.QueryRow(ctx, query, userID, username, score).Scan(
		&s.UserID,
		&s.Username,
		&s.CorrectGuesses,
		&s.BestScore,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record score: %w", err)
	}

	return &s, nil
}

// GetByUserID retrieves a user's score record.
// Returns ErrScoreNotFound if the user has never guessed correctly.
func (r *ScoreRepository) GetByUserID(ctx context.Context, userID int64) (*model.GuessScore, error) {
	const query = `
		SELECT user_id, username, correct_guesses, best_score, updated_at
		FROM guess_scores
		WHERE user_id = $1
	`

	var s model.GuessScore
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&s.Username,
		&s.CorrectGuesses,
		&s.BestScore,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScoreNotFound
		}
		return nil, fmt.Errorf("failed to get score: %w", err)
	}

	return &s, nil
}

// GetTop retrieves the users with the most correct guesses.
func (r *ScoreRepository) GetTop(ctx context.Context, limit int) ([]*model.GuessScore, error) {
	const query = `
		SELECT user_id, username, correct_guesses, best_score, updated_at
		FROM guess_scores
		ORDER BY correct_guesses DESC, best_score DESC, user_id ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top scores: %w", err)
	}
	defer rows.Close()

	var scores []*model.GuessScore
	for rows.Next() {
		var s model.GuessScore
		if err := rows.Scan(&s.UserID, &s.Username, &s.CorrectGuesses, &s.BestScore, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}

	return scores, nil
}
