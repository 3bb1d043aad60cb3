package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/file"
	"timed-quiz-service/internal/infra/httpsource"
	"timed-quiz-service/internal/infra/memory"
	"timed-quiz-service/internal/infra/postgres"
	redisinfra "timed-quiz-service/internal/infra/redis"
	"timed-quiz-service/internal/infra/sqlite"
	transport "timed-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	service, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s source=%s store=%s", finalPort, cfg.Quiz.Source, cfg.Session.Store)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildService wires the question source, session store and machine options.
// The returned cleanup releases every opened connection.
func buildService(ctx context.Context, cfg config.Config) (*app.QuizService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	source, err := buildQuestionSource(ctx, cfg, redisClient, &closers)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	stores, err := buildStoreProvider(ctx, cfg, redisClient, &closers)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	service := app.NewQuizService(source, stores,
		app.WithTimeLimit(cfg.TimeLimitSeconds()),
		app.WithTickInterval(config.TTLDuration(cfg.Quiz.TickInterval, time.Second)),
	)
	return service, cleanup, nil
}

func buildQuestionSource(ctx context.Context, cfg config.Config, redisClient *redis.Client, closers *[]func()) (app.QuestionSource, error) {
	var loader app.QuestionSource
	switch cfg.Quiz.Source {
	case config.SourceStatic:
		loader = memory.NewStaticSource(sampleQuestions())
	case config.SourceFile:
		if cfg.Quiz.Path == "" {
			return nil, fmt.Errorf("quiz.path not configured")
		}
		loader = file.NewQuestionSource(cfg.Quiz.Path)
	case config.SourceHTTP:
		if cfg.Quiz.URL == "" {
			return nil, fmt.Errorf("quiz.url not configured")
		}
		loader = httpsource.NewQuestionSource(cfg.Quiz.URL, 10*time.Second)
	case config.SourcePostgres:
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("postgres url not configured")
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, pool.Close)
		loader = postgres.NewQuestionLoader(pool, cfg.Quiz.SetID)
	default:
		return nil, fmt.Errorf("unknown quiz source %q", cfg.Quiz.Source)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		return redisinfra.NewQuestionCache(redisClient, loader, cfg.Quiz.SetID, quizTTL), nil
	}
	return memory.NewCachedSource(loader, quizTTL), nil
}

func buildStoreProvider(ctx context.Context, cfg config.Config, redisClient *redis.Client, closers *[]func()) (app.StoreProvider, error) {
	switch cfg.Session.Store {
	case config.StoreMemory:
		return memory.NewProfileStore(), nil
	case config.StoreRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis addr not configured")
		}
		return redisinfra.NewProfileStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)), nil
	case config.StorePostgres:
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("postgres url not configured")
		}
		db := postgres.OpenDB(cfg.Postgres.URL)
		*closers = append(*closers, func() { _ = db.Close() })
		return postgres.NewProfileStore(db), nil
	case config.StoreSQLite:
		path := cfg.SQLite.Path
		if path == "" {
			path = "sessions.db"
		}
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, func() { _ = db.Close() })
		return sqlite.NewProfileStore(db), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

// sampleQuestions backs the static source used for demos.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			Text:    "Which of these are prime numbers?",
			Choices: []string{"2", "4", "5", "9"},
			Answers: []string{"2", "5"},
		},
		{
			Text:    "Which are Go keywords?",
			Choices: []string{"func", "def", "select", "lambda"},
			Answers: []string{"func", "select"},
		},
	}
}
