package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

// APIHandler serves the REST surface for questions, scores and rooms.
type APIHandler struct {
	questions *app.QuestionService
	scores    *app.ScoreService
	registry  *app.Registry
	scheduler *app.Scheduler
}

func NewAPIHandler(questions *app.QuestionService, scores *app.ScoreService, registry *app.Registry, scheduler *app.Scheduler) *APIHandler {
	return &APIHandler{questions: questions, scores: scores, registry: registry, scheduler: scheduler}
}

func (h *APIHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.questions.ListQuestions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if qs == nil {
		qs = []domain.Question{}
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *APIHandler) RandomQuestions(w http.ResponseWriter, r *http.Request) {
	size, err := queryInt(r, "size", app.DefaultBatchSize)
	if err != nil {
		writeError(w, err)
		return
	}
	qs, err := h.questions.RandomBatch(r.Context(), size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *APIHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := h.questions.GetQuestion(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *APIHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := decodeBody(r, &q); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.questions.CreateQuestion(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *APIHandler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var q domain.Question
	if err := decodeBody(r, &q); err != nil {
		writeError(w, err)
		return
	}
	q.ID = id
	updated, err := h.questions.UpdateQuestion(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *APIHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.questions.DeleteQuestion(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	log.Info().Int64("question_id", id).Str("subject", SubjectFromCtx(r.Context())).Msg("question deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	questionID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var a domain.Answer
	if err := decodeBody(r, &a); err != nil {
		writeError(w, err)
		return
	}
	a.QuestionID = questionID
	created, err := h.questions.CreateAnswer(r.Context(), a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *APIHandler) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var a domain.Answer
	if err := decodeBody(r, &a); err != nil {
		writeError(w, err)
		return
	}
	a.ID = id
	updated, err := h.questions.UpdateAnswer(r.Context(), a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *APIHandler) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.questions.DeleteAnswer(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) Ranking(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", app.DefaultTopScores)
	if err != nil {
		writeError(w, err)
		return
	}
	top, err := h.scores.TopScores(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	if top == nil {
		top = []domain.ScoreEntry{}
	}
	writeJSON(w, http.StatusOK, top)
}

type scoreRequest struct {
	PlayerName string `json:"player_name"`
	Points     int    `json:"points"`
}

func (h *APIHandler) CreateScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := h.scores.CreateScore(r.Context(), req.PlayerName, req.Points)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *APIHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Rooms())
}

func (h *APIHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	view, err := h.registry.Snapshot(r.PathValue("room"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ResetRoom cancels the room's countdown, resynchronizes its participants and
// reports the resulting view.
func (h *APIHandler) ResetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	view, err := h.scheduler.Reset(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Info().Str("room_id", roomID).Str("subject", SubjectFromCtx(r.Context())).Msg("room countdown reset")
	writeJSON(w, http.StatusOK, view)
}

type errorResponse struct {
	Error domain.ErrorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: domain.NewErrorBody(err)})
}

func statusFor(err error) int {
	switch domain.Code(err) {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeInsufficientData:
		return http.StatusConflict
	case domain.CodeInvalidInput, domain.CodeInvalidMessage:
		return http.StatusBadRequest
	case domain.CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", domain.ErrInvalidInput, r.PathValue("id"))
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", domain.ErrInvalidInput, name)
	}
	return n, nil
}
