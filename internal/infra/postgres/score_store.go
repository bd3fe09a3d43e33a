package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-quiz-service/internal/domain"
)

// ScoreStore persists score entries in Postgres.
type ScoreStore struct {
	pool *pgxpool.Pool
}

func NewScoreStore(pool *pgxpool.Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

func (s *ScoreStore) InsertScore(ctx context.Context, entry domain.ScoreEntry) (domain.ScoreEntry, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO scores (player_name, points, submitted_at) VALUES ($1, $2, $3) RETURNING id`,
		entry.PlayerName, entry.Points, entry.SubmittedAt,
	).Scan(&entry.ID)
	if err != nil {
		return domain.ScoreEntry{}, fmt.Errorf("insert score: %w", err)
	}
	return entry, nil
}

func (s *ScoreStore) TopScores(ctx context.Context, n int) ([]domain.ScoreEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, player_name, points, submitted_at
		   FROM scores
		  ORDER BY points DESC, submitted_at ASC, id ASC
		  LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("top scores: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoreEntry
	for rows.Next() {
		var e domain.ScoreEntry
		if err := rows.Scan(&e.ID, &e.PlayerName, &e.Points, &e.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		e.SubmittedAt = e.SubmittedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
