package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/postgres"
	infraredis "timed-quiz-service/internal/infra/redis"
)

func TestQuizAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.OpenDB(pgURL)
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := postgres.SeedQuestionSet(ctx, db, "default", sampleSet()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	source := infraredis.NewQuestionCache(redisClient, postgres.NewQuestionLoader(pool, "default"), "default", 5*time.Minute)
	service := app.NewQuizService(source, postgres.NewProfileStore(db))

	first := service.Open(ctx, "u1", grantedGate{})
	if _, err := first.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	first.ToggleAnswer(ctx, 0, "4")
	first.Next(ctx)
	first.ToggleAnswer(ctx, 1, "Go")
	first.Close()

	// A reload resumes from the Postgres record.
	second := service.Open(ctx, "u1", grantedGate{})
	defer second.Close()
	snap := second.Snapshot()
	if snap.State != domain.InProgress || snap.CurrentIndex != 1 {
		t.Fatalf("expected resumed attempt on question 2, got %+v", snap)
	}

	snap, err = second.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if snap.Score == nil || *snap.Score != 1 {
		t.Fatalf("expected score 1, got %+v", snap.Score)
	}

	count, err := db.NewSelect().Table("session_values").Where("profile_id = ?", "u1").Count(ctx)
	if err != nil {
		t.Fatalf("count session values: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected record cleared after submit, got %d rows", count)
	}
}

type grantedGate struct{}

func (grantedGate) IsActive() bool             { return true }
func (grantedGate) Request() error             { return nil }
func (grantedGate) OnChange(func(bool)) func() { return func() {} }

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
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

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{Quiz: []domain.Question{
		{Text: "What is 2 + 2?", Choices: []string{"3", "4", "5"}, Answers: []string{"4"}},
		{Text: "Pick the compiled languages", Choices: []string{"Go", "Rust", "Python"}, Answers: []string{"Go", "Rust"}},
	}}
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
