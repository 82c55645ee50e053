package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/config"
	"adaptive-quiz-service/internal/domain"
	mongostore "adaptive-quiz-service/internal/infra/mongo"
	"adaptive-quiz-service/internal/infra/postgres"
	redisstore "adaptive-quiz-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type questionUpserter interface {
	Upsert(ctx context.Context, q domain.Question) error
}

// seedTarget is a question backend that seed can write to.
type seedTarget interface {
	app.QuestionRepository
	questionUpserter
}

// answerKeyInvalidator drops cached answer keys of rewritten questions.
type answerKeyInvalidator interface {
	Invalidate(ctx context.Context, questionID string) error
}

// NewSeedCmd imports a YAML question bank into the configured database.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import questions from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "questions.yaml", "question bank YAML file")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	questions, err := loadQuestionFile(file)
	if err != nil {
		return err
	}

	var target seedTarget
	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		target = postgres.NewQuestionRepository(pool)
	case cfg.Mongo.URI != "":
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		repo := mongostore.NewQuestionRepository(client.Database(cfg.Mongo.Database))
		if err := repo.EnsureIndexes(ctx); err != nil {
			return err
		}
		target = repo
	default:
		return fmt.Errorf("seed needs postgres.url or mongo.uri")
	}

	var cache answerKeyInvalidator
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = redisstore.NewAnswerKeyCache(client, target, config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute))
	}

	if err := seedQuestions(ctx, target, cache, questions); err != nil {
		return err
	}
	log.Printf("seeded %d questions from %s", len(questions), file)
	return nil
}

// seedQuestions upserts every question. A running server may hold the old
// answer key in its cache, so each rewritten key is dropped from it.
func seedQuestions(ctx context.Context, target questionUpserter, cache answerKeyInvalidator, questions []domain.Question) error {
	for _, q := range questions {
		if err := target.Upsert(ctx, q); err != nil {
			return err
		}
		if cache == nil {
			continue
		}
		if err := cache.Invalidate(ctx, q.ID); err != nil {
			return fmt.Errorf("invalidate cached answer key %s: %w", q.ID, err)
		}
	}
	return nil
}
