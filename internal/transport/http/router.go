package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"trivia-quiz-service/internal/auth"
	"trivia-quiz-service/internal/domain"
)

type ctxKey string

const ctxKeySubject ctxKey = "subject"

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(a *auth.Authenticator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		subject, err := a.Verify(strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected token")
			writeError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKeySubject, subject)))
	}
}

// SubjectFromCtx returns the authenticated subject, if any.
func SubjectFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySubject).(string); ok {
		return v
	}
	return ""
}

// NewRouter wires every HTTP and websocket route.
func NewRouter(api *APIHandler, ws *WSHandler, a *auth.Authenticator, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws/quiz/{room}", ws.ServeWS)

	mux.HandleFunc("GET /api/questions", api.ListQuestions)
	mux.HandleFunc("GET /api/questions/random", api.RandomQuestions)
	mux.HandleFunc("GET /api/questions/{id}", api.GetQuestion)
	mux.HandleFunc("POST /api/questions", RequireAuth(a, api.CreateQuestion))
	mux.HandleFunc("PUT /api/questions/{id}", RequireAuth(a, api.UpdateQuestion))
	mux.HandleFunc("DELETE /api/questions/{id}", RequireAuth(a, api.DeleteQuestion))
	mux.HandleFunc("POST /api/questions/{id}/answers", RequireAuth(a, api.CreateAnswer))
	mux.HandleFunc("PUT /api/answers/{id}", RequireAuth(a, api.UpdateAnswer))
	mux.HandleFunc("DELETE /api/answers/{id}", RequireAuth(a, api.DeleteAnswer))

	mux.HandleFunc("GET /api/ranking", api.Ranking)
	mux.HandleFunc("POST /api/score", RequireAuth(a, api.CreateScore))

	mux.HandleFunc("GET /api/rooms", api.ListRooms)
	mux.HandleFunc("GET /api/rooms/{room}", api.GetRoom)
	mux.HandleFunc("POST /api/rooms/{room}/reset", RequireAuth(a, api.ResetRoom))

	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)
}
