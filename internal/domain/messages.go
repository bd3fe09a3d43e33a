package domain

import (
	"encoding/json"
	"fmt"
)

// Inbound actions accepted from participants.
const ActionStartTimer = "start_timer"

// InboundMessage is the closed set of client messages. StartTimer is the only variant.
type InboundMessage interface {
	inbound()
}

// StartTimer asks the room's countdown to start. It is a no-op while one is running.
type StartTimer struct{}

func (StartTimer) inbound() {}

// ParseInbound validates a raw client frame and returns its variant.
func ParseInbound(raw []byte) (InboundMessage, error) {
	var env struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch env.Action {
	case ActionStartTimer:
		return StartTimer{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing action", ErrInvalidMessage)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidMessage, env.Action)
	}
}

// Outbound message types.
const (
	TypeTick      = "tick"
	TypeExpired   = "expired"
	TypeSnapshot  = "snapshot"
	TypeQuestions = "questions"
	TypeError     = "error"
)

// OutboundMessage is the closed set of server messages.
type OutboundMessage interface {
	Type() string
}

// Tick carries the countdown value after one interval.
type Tick struct {
	Remaining int
}

func (Tick) Type() string { return TypeTick }

func (t Tick) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type             string `json:"type"`
		SecondsRemaining int    `json:"seconds_remaining"`
	}{TypeTick, t.Remaining})
}

// Expired is the terminal countdown message.
type Expired struct{}

func (Expired) Type() string { return TypeExpired }

func (Expired) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type             string `json:"type"`
		SecondsRemaining int    `json:"seconds_remaining"`
	}{TypeExpired, 0})
}

// Snapshot resynchronizes a participant on join.
type Snapshot struct {
	Room RoomView
}

func (Snapshot) Type() string { return TypeSnapshot }

func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		RoomView
	}{TypeSnapshot, s.Room})
}

// QuestionBatch delivers the room's question set to one participant.
type QuestionBatch struct {
	Questions []Question
}

func (QuestionBatch) Type() string { return TypeQuestions }

func (q QuestionBatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string     `json:"type"`
		Questions []Question `json:"questions"`
	}{TypeQuestions, q.Questions})
}

// ErrorMessage reports a rejected request to a single participant.
type ErrorMessage struct {
	Err ErrorBody
}

func (ErrorMessage) Type() string { return TypeError }

func (e ErrorMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string    `json:"type"`
		Error ErrorBody `json:"error"`
	}{TypeError, e.Err})
}
