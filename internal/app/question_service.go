package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"trivia-quiz-service/internal/domain"
)

// DefaultBatchSize is the number of questions served to a room.
const DefaultBatchSize = 10

// BatchKey derives the cache key for a random batch of the given size.
func BatchKey(size int) string {
	return fmt.Sprintf("random-%d", size)
}

// QuestionService is the mutation and read path for question content. Every
// successful write invalidates the cache before returning.
type QuestionService struct {
	store QuestionStore
	cache QuestionCache
}

func NewQuestionService(store QuestionStore, cache QuestionCache) *QuestionService {
	return &QuestionService{store: store, cache: cache}
}

// RandomBatch returns the cached random batch of the given size.
func (s *QuestionService) RandomBatch(ctx context.Context, size int) ([]domain.Question, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive", domain.ErrInvalidInput)
	}
	return s.cache.GetBatch(ctx, BatchKey(size), size)
}

func (s *QuestionService) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.store.ListAllQuestions(ctx)
}

func (s *QuestionService) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	return s.store.GetQuestion(ctx, id)
}

func (s *QuestionService) CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	if err := validateQuestion(q); err != nil {
		return domain.Question{}, err
	}
	if q.Difficulty == "" {
		q.Difficulty = domain.DefaultDifficulty
	}
	created, err := s.store.CreateQuestion(ctx, q)
	if err != nil {
		return domain.Question{}, err
	}
	return created, s.invalidate(ctx, "question created", created.ID)
}

func (s *QuestionService) UpdateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	if err := validateQuestion(q); err != nil {
		return domain.Question{}, err
	}
	updated, err := s.store.UpdateQuestion(ctx, q)
	if err != nil {
		return domain.Question{}, err
	}
	return updated, s.invalidate(ctx, "question updated", updated.ID)
}

func (s *QuestionService) DeleteQuestion(ctx context.Context, id int64) error {
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, "question deleted", id)
}

func (s *QuestionService) CreateAnswer(ctx context.Context, a domain.Answer) (domain.Answer, error) {
	if strings.TrimSpace(a.Text) == "" {
		return domain.Answer{}, fmt.Errorf("%w: answer text is required", domain.ErrInvalidInput)
	}
	created, err := s.store.CreateAnswer(ctx, a)
	if err != nil {
		return domain.Answer{}, err
	}
	return created, s.invalidate(ctx, "answer created", created.QuestionID)
}

func (s *QuestionService) UpdateAnswer(ctx context.Context, a domain.Answer) (domain.Answer, error) {
	if strings.TrimSpace(a.Text) == "" {
		return domain.Answer{}, fmt.Errorf("%w: answer text is required", domain.ErrInvalidInput)
	}
	updated, err := s.store.UpdateAnswer(ctx, a)
	if err != nil {
		return domain.Answer{}, err
	}
	return updated, s.invalidate(ctx, "answer updated", updated.QuestionID)
}

func (s *QuestionService) DeleteAnswer(ctx context.Context, id int64) error {
	if err := s.store.DeleteAnswer(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, "answer deleted", id)
}

// Import bulk-loads questions (used by the seed command) and invalidates once.
func (s *QuestionService) Import(ctx context.Context, questions []domain.Question) (int, error) {
	n := 0
	for _, q := range questions {
		if err := validateQuestion(q); err != nil {
			return n, fmt.Errorf("question %d: %w", n+1, err)
		}
		if q.Difficulty == "" {
			q.Difficulty = domain.DefaultDifficulty
		}
		if _, err := s.store.CreateQuestion(ctx, q); err != nil {
			return n, err
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.invalidate(ctx, "questions imported", int64(n))
}

func (s *QuestionService) invalidate(ctx context.Context, reason string, id int64) error {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("invalidate question cache: %w", err)
	}
	log.Debug().Str("reason", reason).Int64("id", id).Msg("question cache invalidated")
	return nil
}

func validateQuestion(q domain.Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: question text is required", domain.ErrInvalidInput)
	}
	for _, a := range q.Answers {
		if strings.TrimSpace(a.Text) == "" {
			return fmt.Errorf("%w: answer text is required", domain.ErrInvalidInput)
		}
	}
	return nil
}
