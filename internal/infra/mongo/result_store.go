package mongo

import (
	"context"
	"errors"
	"fmt"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ResultStore keeps quiz results in the "quiz_results" collection.
type ResultStore struct {
	Col *mongo.Collection
}

func NewResultStore(db *mongo.Database) *ResultStore {
	return &ResultStore{Col: db.Collection("quiz_results")}
}

func (s *ResultStore) Save(ctx context.Context, result domain.QuizResult) error {
	if _, err := s.Col.InsertOne(ctx, result); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrResultExists
		}
		return fmt.Errorf("insert quiz result: %w", err)
	}
	return nil
}

func (s *ResultStore) Get(ctx context.Context, resultID, userID string) (domain.QuizResult, error) {
	var result domain.QuizResult
	err := s.Col.FindOne(ctx, bson.M{"_id": resultID, "user_id": userID}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.QuizResult{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.QuizResult{}, fmt.Errorf("load quiz result: %w", err)
	}
	return result, nil
}

func (s *ResultStore) ListByUser(ctx context.Context, userID string, query app.ResultQuery) ([]domain.QuizResult, int, error) {
	filter := bson.M{"user_id": userID}
	if query.Subject != "" {
		filter["subject"] = query.Subject
	}
	total, err := s.Col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count quiz results: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "end_time", Value: -1}})
	if query.Limit > 0 {
		opts.SetSkip(int64(query.Offset())).SetLimit(int64(query.Limit))
	}
	cur, err := s.Col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list quiz results: %w", err)
	}
	defer cur.Close(ctx)

	results := make([]domain.QuizResult, 0)
	if err := cur.All(ctx, &results); err != nil {
		return nil, 0, fmt.Errorf("decode quiz results: %w", err)
	}
	return results, int(total), nil
}

// EnsureIndexes keeps one result per session and backs the history query.
func (s *ResultStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.Col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "end_time", Value: -1}},
		},
	})
	return err
}
