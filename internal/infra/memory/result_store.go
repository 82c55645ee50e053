package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/domain"
)

// ResultStore keeps finished quiz results in memory.
type ResultStore struct {
	mu      sync.RWMutex
	results   map[string]domain.QuizResult
	byUser    map[string][]string
	bySession map[string]string
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		results:   make(map[string]domain.QuizResult),
		byUser:    make(map[string][]string),
		bySession: make(map[string]string),
	}
}

func (s *ResultStore) Save(_ context.Context, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[result.ID]; ok {
		return errors.New("quiz result " + result.ID + " already saved")
	}
	if _, ok := s.bySession[result.SessionID]; ok && result.SessionID != "" {
		return domain.ErrResultExists
	}
	s.results[result.ID] = result
	if result.SessionID != "" {
		s.bySession[result.SessionID] = result.ID
	}
	s.byUser[result.UserID] = append(s.byUser[result.UserID], result.ID)
	return nil
}

func (s *ResultStore) Get(_ context.Context, resultID, userID string) (domain.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[resultID]
	if !ok || r.UserID != userID {
		return domain.QuizResult{}, domain.ErrResultNotFound
	}
	return r, nil
}

func (s *ResultStore) ListByUser(_ context.Context, userID string, query app.ResultQuery) ([]domain.QuizResult, int, error) {
	s.mu.RLock()
	matches := make([]domain.QuizResult, 0, len(s.byUser[userID]))
	for _, id := range s.byUser[userID] {
		r := s.results[id]
		if query.Subject != "" && r.Subject != query.Subject {
			continue
		}
		matches = append(matches, r)
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].EndTime.After(matches[j].EndTime)
	})
	total := len(matches)
	if query.Limit <= 0 {
		return matches, total, nil
	}
	start := query.Offset()
	if start >= total {
		return []domain.QuizResult{}, total, nil
	}
	end := start + query.Limit
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}
