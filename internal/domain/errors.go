package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room is not (or no longer) registered.
	ErrRoomNotFound = errors.New("room not found")
	// ErrJobNotFound is returned when no countdown job exists for a room.
	ErrJobNotFound = errors.New("countdown job not found")
	// ErrHandleNotFound is returned when a participant handle is not in a room.
	ErrHandleNotFound = errors.New("participant handle not found")
	// ErrInsufficientData indicates fewer questions are stored than a batch needs.
	ErrInsufficientData = errors.New("not enough questions available")
	// ErrQuestionNotFound indicates a question ID is unknown to the store.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAnswerNotFound indicates an answer ID is unknown to the store.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrHandleClosed is reported for deliveries to a connection that already went away.
	ErrHandleClosed = errors.New("participant connection closed")
	// ErrSlowConsumer is reported when a connection's outbound queue is full.
	ErrSlowConsumer = errors.New("participant outbound queue full")
	// ErrDeliveryFailed wraps a per-handle delivery error in a broadcast report.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrInvalidMessage is returned for malformed or unknown inbound messages.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrInvalidInput is returned when a mutation payload fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthenticated is returned when no verified identity accompanies a request.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Error codes exposed to clients.
const (
	CodeNotFound         = "not_found"
	CodeInsufficientData = "insufficient_data"
	CodeInvalidMessage   = "invalid_message"
	CodeInvalidInput     = "invalid_input"
	CodeUnauthenticated  = "unauthenticated"
	CodeInternal         = "internal"
)

// ErrorBody is the structured error returned to REST and websocket callers.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Code maps an error onto a stable client-facing code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrJobNotFound),
		errors.Is(err, ErrHandleNotFound), errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrAnswerNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInsufficientData):
		return CodeInsufficientData
	case errors.Is(err, ErrInvalidMessage):
		return CodeInvalidMessage
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	default:
		return CodeInternal
	}
}

// NewErrorBody builds the client payload for err. Internal errors are not echoed verbatim.
func NewErrorBody(err error) ErrorBody {
	code := Code(err)
	msg := err.Error()
	if code == CodeInternal {
		msg = "internal error"
	}
	return ErrorBody{Code: code, Message: msg}
}
