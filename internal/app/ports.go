package app

import (
	"context"

	"trivia-quiz-service/internal/domain"
)

// QuestionLister is the read side of the question data store used by caches.
type QuestionLister interface {
	ListAllQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionStore abstracts how questions and answers are persisted (in-memory, Postgres).
type QuestionStore interface {
	QuestionLister
	GetQuestion(ctx context.Context, id int64) (domain.Question, error)
	CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error)
	UpdateQuestion(ctx context.Context, q domain.Question) (domain.Question, error)
	DeleteQuestion(ctx context.Context, id int64) error
	CreateAnswer(ctx context.Context, a domain.Answer) (domain.Answer, error)
	UpdateAnswer(ctx context.Context, a domain.Answer) (domain.Answer, error)
	DeleteAnswer(ctx context.Context, id int64) error
}

// QuestionCache serves randomized question batches (in-memory or Redis).
type QuestionCache interface {
	GetBatch(ctx context.Context, key string, size int) ([]domain.Question, error)
	InvalidateAll(ctx context.Context) error
}

// ScoreStore persists immutable score entries.
type ScoreStore interface {
	InsertScore(ctx context.Context, entry domain.ScoreEntry) (domain.ScoreEntry, error)
	TopScores(ctx context.Context, n int) ([]domain.ScoreEntry, error)
}
