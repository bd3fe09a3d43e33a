package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-quiz-service/internal/domain"
)

const foreignKeyViolation = "23503"

// QuestionStore persists questions and their answers in Postgres.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

func (s *QuestionStore) ListAllQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, text, category, difficulty FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	var questions []domain.Question
	index := make(map[int64]int)
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Category, &q.Difficulty); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan question: %w", err)
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	answers, err := s.pool.Query(ctx, `SELECT id, question_id, text, is_correct FROM answers ORDER BY question_id, id`)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer answers.Close()
	for answers.Next() {
		var a domain.Answer
		if err := answers.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if i, ok := index[a.QuestionID]; ok {
			questions[i].Answers = append(questions[i].Answers, a)
		}
	}
	if err := answers.Err(); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return questions, nil
}

func (s *QuestionStore) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	var q domain.Question
	err := s.pool.QueryRow(ctx,
		`SELECT id, text, category, difficulty FROM questions WHERE id=$1`, id,
	).Scan(&q.ID, &q.Text, &q.Category, &q.Difficulty)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	q.Answers, err = answersOf(ctx, s.pool, id)
	return q, err
}

func (s *QuestionStore) CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (text, category, difficulty) VALUES ($1, $2, $3) RETURNING id`,
			q.Text, q.Category, q.Difficulty,
		).Scan(&q.ID); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		for i := range q.Answers {
			a := &q.Answers[i]
			a.QuestionID = q.ID
			if err := tx.QueryRow(ctx,
				`INSERT INTO answers (question_id, text, is_correct) VALUES ($1, $2, $3) RETURNING id`,
				a.QuestionID, a.Text, a.IsCorrect,
			).Scan(&a.ID); err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

// UpdateQuestion replaces the text fields. Answers are managed separately.
func (s *QuestionStore) UpdateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	var out domain.Question
	err := s.pool.QueryRow(ctx,
		`UPDATE questions
		    SET text=$2, category=$3, difficulty=COALESCE(NULLIF($4, ''), difficulty)
		  WHERE id=$1
		RETURNING id, text, category, difficulty`,
		q.ID, q.Text, q.Category, q.Difficulty,
	).Scan(&out.ID, &out.Text, &out.Category, &out.Difficulty)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("update question: %w", err)
	}
	out.Answers, err = answersOf(ctx, s.pool, out.ID)
	return out, err
}

func (s *QuestionStore) DeleteQuestion(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (s *QuestionStore) CreateAnswer(ctx context.Context, a domain.Answer) (domain.Answer, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO answers (question_id, text, is_correct) VALUES ($1, $2, $3) RETURNING id`,
		a.QuestionID, a.Text, a.IsCorrect,
	).Scan(&a.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return domain.Answer{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Answer{}, fmt.Errorf("insert answer: %w", err)
	}
	return a, nil
}

func (s *QuestionStore) UpdateAnswer(ctx context.Context, a domain.Answer) (domain.Answer, error) {
	err := s.pool.QueryRow(ctx,
		`UPDATE answers SET text=$2, is_correct=$3 WHERE id=$1 RETURNING question_id`,
		a.ID, a.Text, a.IsCorrect,
	).Scan(&a.QuestionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Answer{}, domain.ErrAnswerNotFound
	}
	if err != nil {
		return domain.Answer{}, fmt.Errorf("update answer: %w", err)
	}
	return a, nil
}

func (s *QuestionStore) DeleteAnswer(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM answers WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAnswerNotFound
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func answersOf(ctx context.Context, q querier, questionID int64) ([]domain.Answer, error) {
	rows, err := q.Query(ctx,
		`SELECT id, question_id, text, is_correct FROM answers WHERE question_id=$1 ORDER BY id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()
	var out []domain.Answer
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
