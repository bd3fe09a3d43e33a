package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"trivia-quiz-service/internal/domain"
)

// DefaultTopScores is the ranking size when none is requested.
const DefaultTopScores = 10

// ScoreService records score submissions and ranks them.
type ScoreService struct {
	store ScoreStore
	clock clockwork.Clock
}

func NewScoreService(store ScoreStore, clock clockwork.Clock) *ScoreService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ScoreService{store: store, clock: clock}
}

// CreateScore stores an immutable entry stamped with the submission time.
func (s *ScoreService) CreateScore(ctx context.Context, player string, points int) (domain.ScoreEntry, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return domain.ScoreEntry{}, fmt.Errorf("%w: player name is required", domain.ErrInvalidInput)
	}
	if len(player) > 100 {
		return domain.ScoreEntry{}, fmt.Errorf("%w: player name too long", domain.ErrInvalidInput)
	}
	return s.store.InsertScore(ctx, domain.ScoreEntry{
		PlayerName:  player,
		Points:      points,
		SubmittedAt: s.clock.Now().UTC().Truncate(time.Microsecond),
	})
}

// TopScores returns the n best entries, ties going to the earlier submission.
func (s *ScoreService) TopScores(ctx context.Context, n int) ([]domain.ScoreEntry, error) {
	if n <= 0 {
		n = DefaultTopScores
	}
	entries, err := s.store.TopScores(ctx, n)
	if err != nil {
		return nil, err
	}
	return domain.RankScores(entries, n), nil
}
