package domain

import "time"

// Answer is one option of a question together with its correctness flag.
type Answer struct {
	ID         int64  `json:"id" yaml:"id"`
	QuestionID int64  `json:"question_id" yaml:"-"`
	Text       string `json:"text" yaml:"text"`
	IsCorrect  bool   `json:"is_correct" yaml:"is_correct"`
}

// Question is a trivia question snapshot with its answers.
type Question struct {
	ID         int64    `json:"id" yaml:"id"`
	Text       string   `json:"text" yaml:"text"`
	Category   string   `json:"quiz_category" yaml:"category"`
	Difficulty string   `json:"difficulty" yaml:"difficulty"`
	Answers    []Answer `json:"answers" yaml:"answers"`
}

// Clone returns a copy that does not share the answers slice.
func (q Question) Clone() Question {
	out := q
	if q.Answers != nil {
		out.Answers = make([]Answer, len(q.Answers))
		copy(out.Answers, q.Answers)
	}
	return out
}

// DefaultDifficulty is applied to questions created without one.
const DefaultDifficulty = "easy"

// ScoreEntry is an immutable score submission.
type ScoreEntry struct {
	ID          int64     `json:"id"`
	PlayerName  string    `json:"player_name"`
	Points      int       `json:"points"`
	SubmittedAt time.Time `json:"date"`
}

// RoomState is the lifecycle state of a room's countdown.
type RoomState string

const (
	RoomIdle    RoomState = "idle"
	RoomRunning RoomState = "running"
	RoomExpired RoomState = "expired"
)

// RoomView is what a participant needs to resynchronize with a room.
type RoomView struct {
	RoomID           string    `json:"room_id"`
	State            RoomState `json:"state"`
	SecondsRemaining int       `json:"seconds_remaining"`
	Participants     int       `json:"participants"`
}

// CloneQuestions deep-copies a batch so callers cannot mutate cached content.
func CloneQuestions(qs []Question) []Question {
	if qs == nil {
		return nil
	}
	out := make([]Question, len(qs))
	for i, q := range qs {
		out[i] = q.Clone()
	}
	return out
}
