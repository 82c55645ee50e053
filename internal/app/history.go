package app

import (
	"context"
	"strings"

	"adaptive-quiz-service/internal/adaptive"
	"adaptive-quiz-service/internal/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// History lists a user's finished quizzes, newest first.
func (s *QuizService) History(ctx context.Context, userID string, query ResultQuery) ([]domain.QuizResult, int, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, 0, domain.Invalid("userId", "user id is required")
	}
	query = NormalizeResultQuery(query)

	callCtx, cancel := s.call(ctx)
	defer cancel()
	results, total, err := s.results.ListByUser(callCtx, userID, query)
	if err != nil {
		return nil, 0, domain.StoreFailure("list results", err)
	}
	return results, total, nil
}

// NormalizeResultQuery applies the paging defaults History uses.
func NormalizeResultQuery(query ResultQuery) ResultQuery {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = defaultPageSize
	}
	if query.Limit > maxPageSize {
		query.Limit = maxPageSize
	}
	if query.Subject == domain.AnySubject {
		query.Subject = ""
	}
	return query
}

// Result returns one of the user's results.
func (s *QuizService) Result(ctx context.Context, userID, resultID string) (domain.QuizResult, error) {
	callCtx, cancel := s.call(ctx)
	defer cancel()
	result, err := s.results.Get(callCtx, resultID, userID)
	if err != nil {
		return domain.QuizResult{}, domain.StoreFailure("get result", err)
	}
	return result, nil
}

// Stats aggregates every result of the user.
func (s *QuizService) Stats(ctx context.Context, userID string) (adaptive.UserStats, error) {
	callCtx, cancel := s.call(ctx)
	defer cancel()
	results, _, err := s.results.ListByUser(callCtx, userID, ResultQuery{})
	if err != nil {
		return adaptive.UserStats{}, domain.StoreFailure("list results", err)
	}
	return adaptive.Summarize(results), nil
}

// Subjects lists the subjects that currently have active questions.
func (s *QuizService) Subjects(ctx context.Context) ([]string, error) {
	callCtx, cancel := s.call(ctx)
	defer cancel()
	subjects, err := s.questions.Subjects(callCtx)
	if err != nil {
		return nil, domain.StoreFailure("list subjects", err)
	}
	return subjects, nil
}
