package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"adaptive-quiz-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usageRetries = 5

// QuestionRepository serves the question bank from the "questions" collection.
type QuestionRepository struct {
	Col   *mongo.Collection
	clock func() time.Time
}

func NewQuestionRepository(db *mongo.Database) *QuestionRepository {
	return &QuestionRepository{Col: db.Collection("questions"), clock: time.Now}
}

func (r *QuestionRepository) FetchAdaptive(ctx context.Context, difficulty domain.Difficulty, subject string, excludeIDs []string, limit int) ([]domain.Question, error) {
	filter := bson.M{
		"is_active":  true,
		"difficulty": difficulty,
	}
	if subject != "" && subject != domain.AnySubject {
		filter["subject"] = subject
	}
	if len(excludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": excludeIDs}
	}

	opts := options.Find().SetSort(bson.D{{Key: "usage_count", Value: 1}, {Key: "correct_rate", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.Col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	defer cur.Close(ctx)

	questions := make([]domain.Question, 0)
	for cur.Next(ctx) {
		var q domain.Question
		if err := cur.Decode(&q); err != nil {
			return nil, fmt.Errorf("decode question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, cur.Err()
}

func (r *QuestionRepository) FindQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var q domain.Question
	err := r.Col.FindOne(ctx, bson.M{"_id": questionID}).Decode(&q)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

// RecordUsage updates the running statistics with a compare-and-set on
// usage_count, retrying when another writer got there first.
func (r *QuestionRepository) RecordUsage(ctx context.Context, questionID string, isCorrect bool, timeSpentSeconds int) error {
	for attempt := 0; attempt < usageRetries; attempt++ {
		q, err := r.FindQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		seen := q.UsageCount
		q.ApplyUsage(isCorrect, timeSpentSeconds, r.clock())

		res, err := r.Col.UpdateOne(ctx,
			bson.M{"_id": questionID, "usage_count": seen},
			bson.M{"$set": bson.M{
				"usage_count":  q.UsageCount,
				"correct_rate": q.CorrectRate,
				"average_time": q.AverageTime,
				"last_used":    q.LastUsed,
			}})
		if err != nil {
			return fmt.Errorf("record usage: %w", err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}
	return fmt.Errorf("record usage of %s: too much contention", questionID)
}

func (r *QuestionRepository) Subjects(ctx context.Context) ([]string, error) {
	raw, err := r.Col.Distinct(ctx, "subject", bson.M{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	subjects := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			subjects = append(subjects, s)
		}
	}
	sort.Strings(subjects)
	return subjects, nil
}

// Upsert writes question content; usage statistics survive re-imports.
func (r *QuestionRepository) Upsert(ctx context.Context, q domain.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := r.Col.UpdateOne(ctx,
		bson.M{"_id": q.ID},
		bson.M{
			"$set": bson.M{
				"question":       q.Text,
				"options":        q.Options,
				"correct_answer": q.CorrectIndex,
				"subject":        q.Subject,
				"topic":          q.Topic,
				"difficulty":     q.Difficulty,
				"explanation":    q.Explanation,
				"tags":           tags,
				"is_active":      q.IsActive,
			},
			"$setOnInsert": bson.M{
				"usage_count":  0,
				"correct_rate": 0,
				"average_time": 0,
			},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert question %s: %w", q.ID, err)
	}
	return nil
}

// EnsureIndexes creates the index backing adaptive selection.
func (r *QuestionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.Col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "difficulty", Value: 1},
			{Key: "subject", Value: 1},
			{Key: "is_active", Value: 1},
			{Key: "usage_count", Value: 1},
			{Key: "correct_rate", Value: -1},
		},
	})
	return err
}
