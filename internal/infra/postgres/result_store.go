package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

// NewBunDB opens a bun handle over the pg driver for dsn.
func NewBunDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

type quizResultRow struct {
	bun.BaseModel `bun:"table:quiz_results,alias:qr"`

	ID                 string                `bun:"id,pk"`
	SessionID          string                `bun:"session_id,notnull"`
	UserID             string                `bun:"user_id,notnull"`
	Subject            string                `bun:"subject,notnull"`
	Score              int                   `bun:"score,notnull"`
	CorrectAnswers     int                   `bun:"correct_answers,notnull"`
	TotalQuestions     int                   `bun:"total_questions,notnull"`
	QuestionsRequested int                   `bun:"questions_requested,notnull"`
	TimeSpent          int                   `bun:"time_spent,notnull"`
	Passed             bool                  `bun:"passed,notnull"`
	CompletionReason   string                `bun:"completion_reason,notnull"`
	Answers            []domain.AnswerRecord `bun:"answers,type:jsonb,notnull"`
	AdaptiveData       domain.AdaptiveData   `bun:"adaptive_data,type:jsonb,notnull"`
	Feedback           domain.Feedback       `bun:"feedback,type:jsonb,notnull"`
	StartTime          time.Time             `bun:"start_time,notnull"`
	EndTime            time.Time             `bun:"end_time,notnull"`
}

func rowFromResult(r domain.QuizResult) quizResultRow {
	return quizResultRow{
		ID:                 r.ID,
		SessionID:          r.SessionID,
		UserID:             r.UserID,
		Subject:            r.Subject,
		Score:              r.Score,
		CorrectAnswers:     r.CorrectAnswers,
		TotalQuestions:     r.TotalQuestions,
		QuestionsRequested: r.QuestionsRequested,
		TimeSpent:          r.TimeSpentSeconds,
		Passed:             r.Passed,
		CompletionReason:   string(r.CompletionReason),
		Answers:            r.Answers,
		AdaptiveData:       r.AdaptiveData,
		Feedback:           r.Feedback,
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
	}
}

func (row quizResultRow) result() domain.QuizResult {
	return domain.QuizResult{
		ID:                 row.ID,
		SessionID:          row.SessionID,
		UserID:             row.UserID,
		Subject:            row.Subject,
		Score:              row.Score,
		CorrectAnswers:     row.CorrectAnswers,
		TotalQuestions:     row.TotalQuestions,
		QuestionsRequested: row.QuestionsRequested,
		TimeSpentSeconds:   row.TimeSpent,
		Passed:             row.Passed,
		CompletionReason:   domain.CompletionReason(row.CompletionReason),
		Answers:            row.Answers,
		AdaptiveData:       row.AdaptiveData,
		Feedback:           row.Feedback,
		StartTime:          row.StartTime,
		EndTime:            row.EndTime,
	}
}

// ResultStore persists quiz results in the quiz_results table.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) Save(ctx context.Context, result domain.QuizResult) error {
	row := rowFromResult(result)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation {
			return domain.ErrResultExists
		}
		return fmt.Errorf("insert quiz result: %w", err)
	}
	return nil
}

func (s *ResultStore) Get(ctx context.Context, resultID, userID string) (domain.QuizResult, error) {
	var row quizResultRow
	err := s.db.NewSelect().
		Model(&row).
		Where("qr.id = ?", resultID).
		Where("qr.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizResult{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.QuizResult{}, fmt.Errorf("load quiz result: %w", err)
	}
	return row.result(), nil
}

func (s *ResultStore) ListByUser(ctx context.Context, userID string, query app.ResultQuery) ([]domain.QuizResult, int, error) {
	var rows []quizResultRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("qr.user_id = ?", userID).
		OrderExpr("qr.end_time DESC")
	if query.Subject != "" {
		q = q.Where("qr.subject = ?", query.Subject)
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit).Offset(query.Offset())
	}
	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list quiz results: %w", err)
	}

	results := make([]domain.QuizResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.result())
	}
	return results, total, nil
}
