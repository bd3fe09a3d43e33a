package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/cli"
	"trivia-quiz-service/internal/domain"
	pgstore "trivia-quiz-service/internal/infra/postgres"
	infraredis "trivia-quiz-service/internal/infra/redis"
)

func TestQuestionBankEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	require.NoError(t, cli.Migrate(ctx, pgURL))
	// A second run must find nothing to apply.
	require.NoError(t, cli.Migrate(ctx, pgURL))

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	defer redisClient.Close()

	store := pgstore.NewQuestionStore(pool)
	cache := infraredis.NewQuestionCache(redisClient, store, 5*time.Minute)
	svc := app.NewQuestionService(store, cache)

	n, err := svc.Import(ctx, sampleQuestions(3))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	batch, err := svc.RandomBatch(ctx, 3)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for _, q := range batch {
		assert.Len(t, q.Answers, 2)
		assert.Equal(t, domain.DefaultDifficulty, q.Difficulty)
	}

	again, err := svc.RandomBatch(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, batch, again, "cached batch is reused")

	_, err = svc.RandomBatch(ctx, 4)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	created, err := svc.CreateQuestion(ctx, domain.Question{
		Text:    "Largest planet?",
		Answers: []domain.Answer{{Text: "Jupiter", IsCorrect: true}, {Text: "Mars"}},
	})
	require.NoError(t, err)

	fresh, err := svc.RandomBatch(ctx, 4)
	require.NoError(t, err, "mutation bumps the cache epoch")
	ids := make([]int64, 0, len(fresh))
	for _, q := range fresh {
		ids = append(ids, q.ID)
	}
	assert.Contains(t, ids, created.ID)

	_, err = svc.CreateAnswer(ctx, domain.Answer{QuestionID: 999999, Text: "orphan"})
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)

	require.NoError(t, svc.DeleteQuestion(ctx, created.ID))
	_, err = svc.GetQuestion(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
}

func TestScoreRankingEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	require.NoError(t, cli.Migrate(ctx, pgURL))

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	scores := app.NewScoreService(pgstore.NewScoreStore(pool), nil)
	for _, s := range []struct {
		name   string
		points int
	}{{"ana", 10}, {"bo", 30}, {"cy", 30}, {"di", 5}} {
		_, err := scores.CreateScore(ctx, s.name, s.points)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	top, err := scores.TopScores(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "bo", top[0].PlayerName, "ties go to the earlier submission")
	assert.Equal(t, "cy", top[1].PlayerName)
	assert.Equal(t, "ana", top[2].PlayerName)
}

func TestRoomPresenceEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	client, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	defer client.Close()

	presence := infraredis.NewRoomPresence(client, time.Minute)
	registry := app.NewRegistry(app.RegistryConfig{Presence: presence})

	h := &stubHandle{id: "p1"}
	_, err = registry.Join("lobby", h)
	require.NoError(t, err)
	registry.FlushPresence()

	view, err := presence.Lookup(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomIdle, view.State)
	assert.Equal(t, 30, view.SecondsRemaining)
	assert.Equal(t, 1, view.Participants)

	registry.Teardown("lobby")
	registry.FlushPresence()
	_, err = presence.Lookup(ctx, "lobby")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

type stubHandle struct{ id string }

func (s *stubHandle) ID() string                        { return s.id }
func (s *stubHandle) Send(domain.OutboundMessage) error { return nil }
func (s *stubHandle) Close()                            {}

func sampleQuestions(n int) []domain.Question {
	out := make([]domain.Question, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.Question{
			Text:     fmt.Sprintf("Question %d?", i),
			Category: "general",
			Answers: []domain.Answer{
				{Text: "yes", IsCorrect: true},
				{Text: "no"},
			},
		})
	}
	return out
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
