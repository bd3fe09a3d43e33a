package app

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
)

// Sampler draws question batches and TTL jitter from a shared random source.
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSampler(seed int64) *Sampler {
	return &Sampler{rnd: rand.New(rand.NewSource(seed))}
}

// Sample returns size questions drawn uniformly without replacement, in draw
// order. It fails with ErrInsufficientData when all is too small.
func (s *Sampler) Sample(all []domain.Question, size int) ([]domain.Question, error) {
	if len(all) < size {
		return nil, fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientData, len(all), size)
	}

	s.mu.Lock()
	perm := s.rnd.Perm(len(all))
	s.mu.Unlock()

	out := make([]domain.Question, size)
	for i, j := range perm[:size] {
		out[i] = all[j].Clone()
	}
	return out, nil
}

// TTLWithJitter adds up to 10% jitter to spread expirations.
func (s *Sampler) TTLWithJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitterMax := int64(ttl) / 10
	s.mu.Lock()
	defer s.mu.Unlock()
	return ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
