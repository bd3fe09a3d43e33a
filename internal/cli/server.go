package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/auth"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/infra/memory"
	pgstore "trivia-quiz-service/internal/infra/postgres"
	rediscache "trivia-quiz-service/internal/infra/redis"
	"trivia-quiz-service/internal/telemetry"
	transport "trivia-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	var seedFile string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, seedFile)
		},
	}
	cmd.Flags().StringVar(&seedFile, "seed-file", "", "YAML question bank preloaded into the in-memory store")
	return cmd
}

type backends struct {
	questions app.QuestionStore
	scores    app.ScoreStore
	cache     app.QuestionCache
	presence  app.Presence
	close     func()
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{close: func() {}}
	var closers []func()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		closers = append(closers, pool.Close)
		b.questions = pgstore.NewQuestionStore(pool)
		b.scores = pgstore.NewScoreStore(pool)
	} else {
		log.Warn().Msg("postgres not configured; questions and scores are kept in memory")
		b.questions = memory.NewQuestionStore()
		b.scores = memory.NewScoreStore()
	}

	cacheTTL := config.TTLDuration(cfg.Cache.TTL, time.Hour)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := telemetry.MonitorRedis(client); err != nil {
			log.Warn().Err(err).Msg("redis instrumentation unavailable")
		}
		closers = append(closers, func() { _ = client.Close() })
		b.cache = rediscache.NewQuestionCache(client, b.questions, cacheTTL)
		b.presence = rediscache.NewRoomPresence(client, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		b.cache = memory.NewQuestionCache(b.questions, cacheTTL, nil)
		b.presence = memory.NewRoomPresence()
	}

	b.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return b, nil
}

func runServer(ctx context.Context, configPath, portFlag, seedFile string) error {
	cfg, err := loadConfig(configPath, portFlag)
	if err != nil {
		return err
	}

	be, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	questions := app.NewQuestionService(be.questions, be.cache)
	scores := app.NewScoreService(be.scores, nil)
	if seedFile != "" {
		if err := seedQuestions(ctx, questions, seedFile); err != nil {
			return err
		}
	}

	countdown := cfg.Session.CountdownStart
	registry := app.NewRegistry(app.RegistryConfig{
		GracePeriod:    config.TTLDuration(cfg.Session.GracePeriod, 10*time.Second),
		CountdownStart: countdown,
		Presence:       be.presence,
	})
	dispatcher := app.NewDispatcher(app.DispatcherConfig{Registry: registry})
	scheduler := app.NewScheduler(app.SchedulerConfig{
		CountdownStart: countdown,
		TickInterval:   config.TTLDuration(cfg.Session.TickInterval, app.DefaultTickInterval),
		Registry:       registry,
		Dispatcher:     dispatcher,
	})
	registry.OnEmpty(scheduler.CancelIfEmpty)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn().Msg("auth.jwt_secret not set; using an ephemeral secret, mutation endpoints will reject external tokens")
	}
	authenticator, err := auth.NewAuthenticator(secret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	wsHandler := transport.NewWSHandler(transport.WSConfig{
		Registry:  registry,
		Scheduler: scheduler,
		Questions: questions,
	})
	apiHandler := transport.NewAPIHandler(questions, scores, registry, scheduler)

	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     transport.NewRouter(apiHandler, wsHandler, authenticator, cfg.Server.AllowedOrigins),
		ReadTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	case err := <-errCh:
		log.Error().Err(err).Msg("failed to start server")
		scheduler.Stop()
		return err
	}

	scheduler.Stop()
	registry.FlushPresence()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
