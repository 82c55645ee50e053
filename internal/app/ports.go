package app

import (
	"context"

	"adaptive-quiz-service/internal/domain"
)

// SessionStore keeps active quiz sessions (in-memory, Redis, etc).
// Reads and writes of one session are serialized by holding its Lock;
// different sessions never contend.
type SessionStore interface {
	Create(ctx context.Context, session domain.QuizSession) error
	Get(ctx context.Context, sessionID string) (domain.QuizSession, error)
	Replace(ctx context.Context, session domain.QuizSession) error
	Delete(ctx context.Context, sessionID string) error
	// Lock blocks until the caller owns sessionID or ctx is done. It returns
	// domain.ErrSessionNotFound for sessions that do not exist.
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

// QuestionRepository is the question bank the engine draws from.
type QuestionRepository interface {
	// FetchAdaptive returns active questions of the given difficulty and
	// subject (domain.AnySubject matches all) not in excludeIDs, least used
	// first and then highest correct rate first.
	FetchAdaptive(ctx context.Context, difficulty domain.Difficulty, subject string, excludeIDs []string, limit int) ([]domain.Question, error)
	FindQuestion(ctx context.Context, questionID string) (domain.Question, error)
	RecordUsage(ctx context.Context, questionID string, isCorrect bool, timeSpentSeconds int) error
	Subjects(ctx context.Context) ([]string, error)
}

// ResultQuery filters and pages a user's result history. Limit 0 returns everything.
type ResultQuery struct {
	Subject string
	Page    int
	Limit   int
}

// Offset returns the number of rows to skip for the query's page.
func (q ResultQuery) Offset() int {
	if q.Limit <= 0 || q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// ResultStore persists finalized quiz results.
type ResultStore interface {
	Save(ctx context.Context, result domain.QuizResult) error
	Get(ctx context.Context, resultID, userID string) (domain.QuizResult, error)
	// ListByUser returns the matching page newest first plus the total match count.
	ListByUser(ctx context.Context, userID string, query ResultQuery) ([]domain.QuizResult, int, error)
}

// EventPublisher announces finished quizzes to other services.
type EventPublisher interface {
	QuizCompleted(ctx context.Context, result domain.QuizResult) error
}

// Metrics observes engine events.
type Metrics interface {
	SessionStarted(subject string)
	AnswerRecorded(difficulty domain.Difficulty, correct bool)
	SessionFinished(reason domain.CompletionReason, score int)
}

type nopMetrics struct{}

func (nopMetrics) SessionStarted(string) {}
func (nopMetrics) AnswerRecorded(domain.Difficulty, bool) {}
func (nopMetrics) SessionFinished(domain.CompletionReason, int) {}

type nopEvents struct{}

func (nopEvents) QuizCompleted(context.Context, domain.QuizResult) error { return nil }
