package http

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/auth"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
)

type testEnv struct {
	server    *httptest.Server
	registry  *app.Registry
	scheduler *app.Scheduler
	questions *app.QuestionService
	auth      *auth.Authenticator
}

func newTestEnv(t *testing.T, tick time.Duration, seeded int) *testEnv {
	t.Helper()

	registry := app.NewRegistry(app.RegistryConfig{GracePeriod: time.Minute})
	dispatcher := app.NewDispatcher(app.DispatcherConfig{Registry: registry})
	scheduler := app.NewScheduler(app.SchedulerConfig{
		TickInterval: tick,
		Registry:     registry,
		Dispatcher:   dispatcher,
	})
	registry.OnEmpty(scheduler.CancelIfEmpty)

	store := memory.NewQuestionStore(sampleQuestions(seeded)...)
	questions := app.NewQuestionService(store, memory.NewQuestionCache(store, time.Hour, nil))
	scores := app.NewScoreService(memory.NewScoreStore(), nil)

	authenticator, err := auth.NewAuthenticator("test-secret", "quiz-service")
	require.NoError(t, err)

	ws := NewWSHandler(WSConfig{Registry: registry, Scheduler: scheduler, Questions: questions})
	api := NewAPIHandler(questions, scores, registry, scheduler)
	server := httptest.NewServer(NewRouter(api, ws, authenticator, nil))

	t.Cleanup(func() {
		server.Close()
		scheduler.Stop()
	})
	return &testEnv{server: server, registry: registry, scheduler: scheduler, questions: questions, auth: authenticator}
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	token, err := e.auth.Mint("admin", time.Hour)
	require.NoError(t, err)
	return token
}

func sampleQuestions(n int) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = domain.Question{
			Text:     fmt.Sprintf("Question %d?", i+1),
			Category: "general",
			Answers: []domain.Answer{
				{Text: "right", IsCorrect: true},
				{Text: "wrong"},
			},
		}
	}
	return out
}
