package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/telemetry"
)

const (
	backendName = "redis"
	epochKey    = "questions:epoch"
)

// QuestionCache caches random question batches in Redis and falls back to the
// data store on a miss.
// Batches are stored as: SET questions:batch:{epoch}:{key} <json> NX EX ttl
// The epoch lives in:     questions:epoch (INCR on invalidation)
// Batches written under an old epoch are never read again and age out by TTL.
type QuestionCache struct {
	client  redis.UniversalClient
	store   app.QuestionLister
	ttl     time.Duration
	sampler *app.Sampler
	sf      singleflight.Group
}

func NewQuestionCache(client redis.UniversalClient, store app.QuestionLister, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client:  client,
		store:   store,
		ttl:     ttl,
		sampler: app.NewSampler(time.Now().UnixNano()),
	}
}

func (c *QuestionCache) GetBatch(ctx context.Context, key string, size int) ([]domain.Question, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive", domain.ErrInvalidInput)
	}

	epoch, err := c.Epoch(ctx)
	if err != nil {
		return nil, err
	}
	batchKey := c.batchKey(epoch, key)

	if batch, ok, err := c.load(ctx, batchKey, size); err != nil {
		return nil, err
	} else if ok {
		telemetry.CacheRequests.WithLabelValues(backendName, "hit").Inc()
		return batch, nil
	}
	telemetry.CacheRequests.WithLabelValues(backendName, "miss").Inc()

	flight := fmt.Sprintf("%s/%d@%d", key, size, epoch)
	result, err, _ := c.sf.Do(flight, func() (interface{}, error) {
		// Re-check cache in case another goroutine or instance filled it.
		if batch, ok, err := c.load(ctx, batchKey, size); err != nil {
			return nil, err
		} else if ok {
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

		payload, err := json.Marshal(batch)
		if err != nil {
			return nil, fmt.Errorf("encode batch: %w", err)
		}
		stored, err := c.client.SetNX(ctx, batchKey, payload, c.sampler.TTLWithJitter(c.ttl)).Result()
		if err != nil {
			return nil, fmt.Errorf("store batch: %w", err)
		}
		if !stored {
			// Another instance won the race; serve its batch so all agree.
			if winner, ok, err := c.load(ctx, batchKey, size); err == nil && ok {
				return winner, nil
			}
		}
		return batch, nil
	})
	if err != nil {
		return nil, err
	}
	return domain.CloneQuestions(result.([]domain.Question)), nil
}

// InvalidateAll advances the epoch so every cached batch becomes unreachable.
func (c *QuestionCache) InvalidateAll(ctx context.Context) error {
	if err := c.client.Incr(ctx, epochKey).Err(); err != nil {
		return fmt.Errorf("bump cache epoch: %w", err)
	}
	return nil
}

// Epoch reports the current invalidation epoch; an absent counter is epoch 0.
func (c *QuestionCache) Epoch(ctx context.Context) (uint64, error) {
	raw, err := c.client.Get(ctx, epochKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache epoch: %w", err)
	}
	epoch, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cache epoch %q: %w", raw, err)
	}
	return epoch, nil
}

func (c *QuestionCache) load(ctx context.Context, batchKey string, size int) ([]domain.Question, bool, error) {
	raw, err := c.client.Get(ctx, batchKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read batch: %w", err)
	}
	var batch []domain.Question
	if err := json.Unmarshal(raw, &batch); err != nil || len(batch) != size {
		return nil, false, nil
	}
	return batch, true, nil
}

func (c *QuestionCache) batchKey(epoch uint64, key string) string {
	return "questions:batch:" + strconv.FormatUint(epoch, 10) + ":" + key
}
