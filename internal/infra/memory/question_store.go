package memory

import (
	"context"
	"sort"
	"sync"

	"trivia-quiz-service/internal/domain"
)

// QuestionStore keeps questions and answers in process memory (useful for tests/demos).
type QuestionStore struct {
	mu         sync.RWMutex
	questions  map[int64]domain.Question
	answerOf   map[int64]int64
	nextQID    int64
	nextAnswer int64
}

func NewQuestionStore(seed ...domain.Question) *QuestionStore {
	s := &QuestionStore{
		questions: make(map[int64]domain.Question),
		answerOf:  make(map[int64]int64),
	}
	for _, q := range seed {
		s.insertLocked(q)
	}
	return s
}

func (s *QuestionStore) ListAllQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, q.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *QuestionStore) GetQuestion(_ context.Context, id int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q.Clone(), nil
}

func (s *QuestionStore) CreateQuestion(_ context.Context, q domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(q).Clone(), nil
}

// UpdateQuestion replaces the text fields. Answers are managed separately.
func (s *QuestionStore) UpdateQuestion(_ context.Context, q domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.questions[q.ID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	existing.Text = q.Text
	existing.Category = q.Category
	if q.Difficulty != "" {
		existing.Difficulty = q.Difficulty
	}
	s.questions[q.ID] = existing
	return existing.Clone(), nil
}

func (s *QuestionStore) DeleteQuestion(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	for _, a := range q.Answers {
		delete(s.answerOf, a.ID)
	}
	delete(s.questions, id)
	return nil
}

func (s *QuestionStore) CreateAnswer(_ context.Context, a domain.Answer) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[a.QuestionID]
	if !ok {
		return domain.Answer{}, domain.ErrQuestionNotFound
	}
	s.nextAnswer++
	a.ID = s.nextAnswer
	q.Answers = append(q.Answers, a)
	s.questions[q.ID] = q
	s.answerOf[a.ID] = q.ID
	return a, nil
}

func (s *QuestionStore) UpdateAnswer(_ context.Context, a domain.Answer) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qid, ok := s.answerOf[a.ID]
	if !ok {
		return domain.Answer{}, domain.ErrAnswerNotFound
	}
	q := s.questions[qid].Clone()
	for i := range q.Answers {
		if q.Answers[i].ID == a.ID {
			a.QuestionID = qid
			q.Answers[i] = a
		}
	}
	s.questions[qid] = q
	return a, nil
}

func (s *QuestionStore) DeleteAnswer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	qid, ok := s.answerOf[id]
	if !ok {
		return domain.ErrAnswerNotFound
	}
	q := s.questions[qid]
	kept := make([]domain.Answer, 0, len(q.Answers))
	for _, a := range q.Answers {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	q.Answers = kept
	s.questions[qid] = q
	delete(s.answerOf, id)
	return nil
}

func (s *QuestionStore) insertLocked(q domain.Question) domain.Question {
	s.nextQID++
	q = q.Clone()
	q.ID = s.nextQID
	if q.Difficulty == "" {
		q.Difficulty = domain.DefaultDifficulty
	}
	for i := range q.Answers {
		s.nextAnswer++
		q.Answers[i].ID = s.nextAnswer
		q.Answers[i].QuestionID = q.ID
		s.answerOf[q.Answers[i].ID] = q.ID
	}
	s.questions[q.ID] = q
	return q
}
