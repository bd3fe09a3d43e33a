package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/telemetry"
)

const backendName = "memory"

// QuestionCache caches random question batches per key with TTL. InvalidateAll
// bumps an epoch so that fetches started before the bump never repopulate.
type QuestionCache struct {
	store   app.QuestionLister
	ttl     time.Duration
	clock   clockwork.Clock
	sampler *app.Sampler
	sf      singleflight.Group

	mu      sync.RWMutex
	epoch   uint64
	entries map[string]cachedBatch
}

type cachedBatch struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(store app.QuestionLister, ttl time.Duration, clock clockwork.Clock) *QuestionCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &QuestionCache{
		store:   store,
		ttl:     ttl,
		clock:   clock,
		sampler: app.NewSampler(time.Now().UnixNano()),
		entries: make(map[string]cachedBatch),
	}
}

func (c *QuestionCache) GetBatch(ctx context.Context, key string, size int) ([]domain.Question, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive", domain.ErrInvalidInput)
	}

	batch, epoch, ok := c.lookup(key, size)
	if ok {
		telemetry.CacheRequests.WithLabelValues(backendName, "hit").Inc()
		return domain.CloneQuestions(batch), nil
	}
	telemetry.CacheRequests.WithLabelValues(backendName, "miss").Inc()

	flight := fmt.Sprintf("%s/%d@%d", key, size, epoch)
	result, err, _ := c.sf.Do(flight, func() (interface{}, error) {
		if batch, current, ok := c.lookup(key, size); ok && current == epoch {
			return batch, nil
		}

		telemetry.CacheFetches.WithLabelValues(backendName).Inc()
		all, err := c.store.ListAllQuestions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list questions: %w", err)
		}
		batch, err := c.sampler.Sample(all, size)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.epoch == epoch {
			c.entries[key] = cachedBatch{
				questions: batch,
				expiresAt: c.clock.Now().Add(c.sampler.TTLWithJitter(c.ttl)),
			}
		}
		c.mu.Unlock()
		return batch, nil
	})
	if err != nil {
		return nil, err
	}
	return domain.CloneQuestions(result.([]domain.Question)), nil
}

// InvalidateAll drops every cached batch and advances the epoch.
func (c *QuestionCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	c.epoch++
	c.entries = make(map[string]cachedBatch)
	c.mu.Unlock()
	return nil
}

// Epoch reports the current invalidation epoch.
func (c *QuestionCache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

func (c *QuestionCache) lookup(key string, size int) ([]domain.Question, uint64, bool) {
	now := c.clock.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || !entry.expiresAt.After(now) || len(entry.questions) != size {
		return nil, c.epoch, false
	}
	return entry.questions, c.epoch, true
}
