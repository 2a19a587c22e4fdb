package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-gateway/internal/app"
	"campus-gateway/internal/config"
	"campus-gateway/internal/domain"
	"campus-gateway/internal/infra/memory"
	pgloader "campus-gateway/internal/infra/postgres"
	redisinfra "campus-gateway/internal/infra/redis"
	transport "campus-gateway/internal/transport/http"
	"campus-gateway/internal/upstream"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewServeCmd builds the CLI subcommand to start the gateway.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var apiClient *upstream.Client
	if cfg.Upstream.BaseURL != "" {
		apiClient = upstream.NewClient(
			cfg.Upstream.BaseURL,
			cfg.Upstream.Token,
			config.Duration(cfg.Upstream.Timeout, 15*time.Second),
		)
	}

	// Quiz content comes from the upstream API when configured, then a
	// local Postgres mirror, then the built-in sample set.
	var loader memory.QuizLoader
	switch {
	case apiClient != nil:
		loader = apiClient
	case pool != nil:
		loader = pgloader.NewQuizLoader(pool)
	default:
		loader = memory.NewStaticQuizLoader(sampleQuizzes())
	}

	cacheTTL := config.Duration(cfg.Quiz.CacheTTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, cacheTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, cacheTTL)
	}

	var progressRepo app.ProgressRepository
	var answerCache app.AnswerCache
	if redisClient != nil {
		progressRepo = redisinfra.NewProgressStore(redisClient)
		answerCache = redisinfra.NewAnswerCache(redisClient, 24*time.Hour)
	} else {
		progressRepo = memory.NewProgressStore()
		answerCache = memory.NewAnswerCache()
	}
	tracker := app.NewProgressTracker(progressRepo)

	var sink app.ResultSink = memory.NewResultLog()
	if apiClient != nil {
		sink = apiClient
	}
	quizService := app.NewQuizService(quizRepo, sink, answerCache, tracker, config.Duration(cfg.Quiz.Tick, time.Second))

	var pager app.FeedPager = memory.NewStaticFeedPager(sampleFeeds())
	if apiClient != nil {
		pager = apiClient
	}
	feeds := app.NewFeedFetcher(pager, cfg.PerPage(10))

	api := transport.NewAPI(tracker, feeds, quizService)
	wsHandler := transport.NewWSHandler(quizService)

	mux := http.NewServeMux()
	api.Register(mux)
	mux.HandleFunc("/ws/quiz", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting campus gateway on :%s", finalPort)
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

// sampleQuizzes provides minimal quiz content for running the gateway
// without an upstream API or content mirror.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"course-1": {
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
		},
	}
}

func sampleFeeds() map[string][]domain.FeedItem {
	return map[string][]domain.FeedItem{
		"posts": {
			{ID: "p1", Kind: "posts", Title: "Welcome", Body: "First post", Author: "admin"},
			{ID: "p2", Kind: "posts", Title: "Getting started", Body: "Read the docs", Author: "admin"},
		},
		"events": {
			{ID: "e1", Kind: "events", Title: "Orientation", Body: "Main hall, Monday", Author: "admin"},
		},
	}
}
