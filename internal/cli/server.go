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

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/auth"
	"adaptive-quiz-service/internal/config"
	"adaptive-quiz-service/internal/infra/amqp"
	"adaptive-quiz-service/internal/infra/memory"
	mongostore "adaptive-quiz-service/internal/infra/mongo"
	"adaptive-quiz-service/internal/infra/postgres"
	redisstore "adaptive-quiz-service/internal/infra/redis"
	"adaptive-quiz-service/internal/metrics"
	transport "adaptive-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	var questionsFile string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, questionsFile)
		},
	}
	cmd.Flags().StringVar(&questionsFile, "questions", "", "YAML question bank for the in-memory backend")
	return cmd
}

// backends holds the stores chosen from config plus their cleanup.
type backends struct {
	sessions  app.SessionStore
	questions app.QuestionRepository
	results   app.ResultStore
	events    app.EventPublisher
	janitor   *memory.SessionStore
	closers   []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag, questionsFile string) error {
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

	b, err := openBackends(ctx, cfg, questionsFile)
	if err != nil {
		return err
	}
	defer b.close()

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if !cfg.Auth.DevTokens {
			return fmt.Errorf("auth.jwt_secret (JWT_SECRET) not configured")
		}
		log.Println("Warning: JWT secret is empty, using an insecure development secret")
		secret = "dev-only-secret"
	}
	authSvc := auth.NewService(secret, cfg.Auth.Issuer, config.TTLDuration(cfg.Auth.TokenTTL, auth.DefaultTokenTTL))
	recorder := metrics.NewRecorder()

	service := app.NewQuizService(b.sessions, b.questions, b.results,
		app.WithQuestionLimits(cfg.Quiz.MinQuestions, cfg.Quiz.MaxQuestions),
		app.WithPassingScore(cfg.Quiz.PassingScore),
		app.WithCallTimeout(config.TTLDuration(cfg.Quiz.CallTimeout, app.DefaultCallTimeout)),
		app.WithLockTimeout(config.TTLDuration(cfg.Session.LockTimeout, app.DefaultLockTimeout)),
		app.WithEvents(b.events),
		app.WithMetrics(recorder),
	)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if b.janitor != nil {
		b.janitor.StartJanitor(runCtx, config.TTLDuration(cfg.Session.SweepInterval, time.Minute))
	}

	handler := transport.NewRouter(transport.RouterConfig{
		Service:          service,
		Auth:             authSvc,
		Metrics:          recorder.Handler(),
		DefaultQuestions: cfg.Quiz.DefaultQuestions,
		DevTokens:        cfg.Auth.DevTokens,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
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

// openBackends picks Redis over memory for sessions, and Postgres, then
// MongoDB, then memory for questions and results.
func openBackends(ctx context.Context, cfg config.Config, questionsFile string) (*backends, error) {
	b := &backends{}
	ok := false
	defer func() {
		if !ok {
			b.close()
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}
	idleTTL := config.TTLDuration(cfg.Session.IdleTTL, 30*time.Minute)
	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)

	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		db := postgres.NewBunDB(cfg.Postgres.URL)
		b.closers = append(b.closers, func() { _ = db.Close() })
		b.questions = postgres.NewQuestionRepository(pool)
		b.results = postgres.NewResultStore(db)
	case cfg.Mongo.URI != "":
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Disconnect(context.Background()) })
		database := client.Database(cfg.Mongo.Database)
		repo := mongostore.NewQuestionRepository(database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		results := mongostore.NewResultStore(database)
		if err := results.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		b.questions = repo
		b.results = results
	default:
		questions := sampleQuestions()
		if questionsFile != "" {
			loaded, err := loadQuestionFile(questionsFile)
			if err != nil {
				return nil, err
			}
			questions = loaded
		}
		bank, err := memory.NewQuestionBank(questions...)
		if err != nil {
			return nil, err
		}
		log.Printf("using in-memory question bank with %d questions", len(questions))
		b.questions = bank
		b.results = memory.NewResultStore()
	}

	if redisClient != nil {
		b.questions = redisstore.NewAnswerKeyCache(redisClient, b.questions, cacheTTL)
		callTimeout := config.TTLDuration(cfg.Quiz.CallTimeout, app.DefaultCallTimeout)
		b.sessions = redisstore.NewSessionStore(redisClient, idleTTL).
			WithLockLease(app.MaxLockHold(callTimeout))
	} else {
		b.questions = memory.NewQuestionCache(b.questions, cacheTTL)
		store := memory.NewSessionStore(idleTTL)
		b.sessions = store
		b.janitor = store
	}

	if cfg.AMQP.URL != "" {
		publisher, err := amqp.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = publisher.Close() })
		b.events = publisher
	} else {
		log.Println("Warning: AMQP URL is empty, quiz events are not published")
	}

	ok = true
	return b, nil
}
