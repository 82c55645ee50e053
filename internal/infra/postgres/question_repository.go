package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adaptive-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const questionColumns = `id, question, options, correct_answer, subject, topic, difficulty,
	explanation, tags, is_active, usage_count, correct_rate, average_time, last_used`

// QuestionRepository serves the question bank from Postgres.
type QuestionRepository struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool, clock: time.Now}
}

func (r *QuestionRepository) FetchAdaptive(ctx context.Context, difficulty domain.Difficulty, subject string, excludeIDs []string, limit int) ([]domain.Question, error) {
	if subject == domain.AnySubject {
		subject = ""
	}
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+questionColumns+`
		FROM questions
		WHERE is_active
		  AND difficulty = $1
		  AND ($2 = '' OR subject = $2)
		  AND NOT (id = ANY($3))
		ORDER BY usage_count ASC, correct_rate DESC, created_at ASC
		LIMIT NULLIF($4::int, 0)`,
		string(difficulty), subject, excludeIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	return questions, nil
}

func (r *QuestionRepository) FindQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, questionID)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, err
}

// RecordUsage folds one attempt into the question's statistics. The row is
// locked for the read-modify-write so concurrent attempts are not lost.
func (r *QuestionRepository) RecordUsage(ctx context.Context, questionID string, isCorrect bool, timeSpentSeconds int) error {
	return r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1 FOR UPDATE`, questionID)
		q, err := scanQuestion(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrQuestionNotFound
		}
		if err != nil {
			return err
		}

		q.ApplyUsage(isCorrect, timeSpentSeconds, r.clock())
		_, err = tx.Exec(ctx, `
			UPDATE questions
			SET usage_count=$2, correct_rate=$3, average_time=$4, last_used=$5
			WHERE id=$1`,
			q.ID, q.UsageCount, q.CorrectRate, q.AverageTime, q.LastUsed)
		if err != nil {
			return fmt.Errorf("record usage: %w", err)
		}
		return nil
	})
}

func (r *QuestionRepository) Subjects(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT subject FROM questions WHERE is_active ORDER BY subject`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	subjects := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// Upsert inserts or updates question content. Usage statistics of an
// existing question are left untouched.
func (r *QuestionRepository) Upsert(ctx context.Context, q domain.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsRaw, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO questions (id, question, options, correct_answer, subject, topic, difficulty, explanation, tags, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			question = EXCLUDED.question,
			options = EXCLUDED.options,
			correct_answer = EXCLUDED.correct_answer,
			subject = EXCLUDED.subject,
			topic = EXCLUDED.topic,
			difficulty = EXCLUDED.difficulty,
			explanation = EXCLUDED.explanation,
			tags = EXCLUDED.tags,
			is_active = EXCLUDED.is_active`,
		q.ID, q.Text, options, q.CorrectIndex, q.Subject, q.Topic, string(q.Difficulty), q.Explanation, tagsRaw, q.IsActive)
	if err != nil {
		return fmt.Errorf("upsert question %s: %w", q.ID, err)
	}
	return nil
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q          domain.Question
		difficulty string
		options    []byte
		tags       []byte
		lastUsed   *time.Time
	)
	err := row.Scan(&q.ID, &q.Text, &options, &q.CorrectIndex, &q.Subject, &q.Topic, &difficulty,
		&q.Explanation, &tags, &q.IsActive, &q.UsageCount, &q.CorrectRate, &q.AverageTime, &lastUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Question{}, err
		}
		return domain.Question{}, fmt.Errorf("scan question: %w", err)
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal options of %s: %w", q.ID, err)
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &q.Tags); err != nil {
			return domain.Question{}, fmt.Errorf("unmarshal tags of %s: %w", q.ID, err)
		}
	}
	q.Difficulty = domain.Difficulty(difficulty)
	if lastUsed != nil {
		q.LastUsed = *lastUsed
	}
	return q, nil
}
