package memory

import (
	"context"
	"sync"

	"trivia-quiz-service/internal/domain"
)

// ScoreStore keeps score entries in process memory.
type ScoreStore struct {
	mu      sync.RWMutex
	entries []domain.ScoreEntry
	nextID  int64
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{}
}

func (s *ScoreStore) InsertScore(_ context.Context, entry domain.ScoreEntry) (domain.ScoreEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	entry.ID = s.nextID
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *ScoreStore) TopScores(_ context.Context, n int) ([]domain.ScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.RankScores(s.entries, n), nil
}
