package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"campus-gateway/internal/app"
	"campus-gateway/internal/domain"
	"campus-gateway/internal/infra/memory"
	pgloader "campus-gateway/internal/infra/postgres"
	pgmigrations "campus-gateway/internal/infra/postgres/migrations"
	infraredis "campus-gateway/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestQuizSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgloader.NewQuizLoader(pool)
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	tracker := app.NewProgressTracker(infraredis.NewProgressStore(redisClient))
	answers := infraredis.NewAnswerCache(redisClient, time.Hour)
	sink := memory.NewResultLog()
	service := app.NewQuizService(quizRepo, sink, answers, tracker, time.Second)

	runner, err := service.Start(ctx, "u1", "course-1")
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if err := runner.Answer("q1", "o2"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	result, err := runner.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 100 || !result.Passed {
		t.Fatalf("expected a full-score pass, got %+v", result)
	}

	// Passing marks the quiz section, and the mark survives a fresh
	// tracker backed by the same Redis store.
	if !tracker.SectionStatus(ctx, "u1", "course-1", "section-quiz") {
		t.Fatalf("section not marked after a pass")
	}
	fresh := app.NewProgressTracker(infraredis.NewProgressStore(redisClient))
	if !fresh.SectionStatus(ctx, "u1", "course-1", "section-quiz") {
		t.Fatalf("section mark did not persist in redis")
	}

	cached, err := service.ReviewAnswers(ctx, "u1", "course-1")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if cached["q1"] != "o2" {
		t.Fatalf("expected cached answers in redis, got %+v", cached)
	}

	if results := sink.Results("u1", "course-1"); len(results) != 1 {
		t.Fatalf("expected one recorded submission, got %d", len(results))
	}

	// A second start should be served out of the Redis quiz cache.
	if _, err := service.Start(ctx, "u2", "course-1"); err != nil {
		t.Fatalf("second start: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "campus", "POSTGRES_PASSWORD": "campuspass", "POSTGRES_DB": "campusdb"},
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
	dsn := fmt.Sprintf("postgres://campus:campuspass@%s:%s/campusdb?sslmode=disable", host, port.Port())
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

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (course_id, data) VALUES (?, ?::jsonb) ON CONFLICT (course_id) DO UPDATE SET data=EXCLUDED.data`, quiz.Settings.CourseID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Settings: domain.QuizSettings{
			QuizID:    "quiz-1",
			CourseID:  "course-1",
			SectionID: "section-quiz",
			Passmark:  70,
			Duration:  5 * time.Minute,
		},
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4"},
					{ID: "o3", Text: "5"},
				},
				CorrectOptionID: "o2",
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
