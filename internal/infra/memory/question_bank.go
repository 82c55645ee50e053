package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"adaptive-quiz-service/internal/domain"
)

// QuestionBank is an in-memory question repository (useful for tests/demos).
type QuestionBank struct {
	mu        sync.RWMutex
	questions map[string]*domain.Question
	order     []string
	clock     func() time.Time
}

func NewQuestionBank(questions ...domain.Question) (*QuestionBank, error) {
	b := &QuestionBank{
		questions: make(map[string]*domain.Question),
		clock:     time.Now,
	}
	for _, q := range questions {
		if err := b.Add(q); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Add validates and upserts a question.
func (b *QuestionBank) Add(q domain.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if q.ID == "" {
		return domain.Invalid("id", "question id is required")
	}
	q.Options = append([]string(nil), q.Options...)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.questions[q.ID]; !ok {
		b.order = append(b.order, q.ID)
	}
	b.questions[q.ID] = &q
	return nil
}

func (b *QuestionBank) FetchAdaptive(_ context.Context, difficulty domain.Difficulty, subject string, excludeIDs []string, limit int) ([]domain.Question, error) {
	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	b.mu.RLock()
	matches := make([]domain.Question, 0)
	for _, id := range b.order {
		q := b.questions[id]
		if !q.IsActive || q.Difficulty != difficulty {
			continue
		}
		if subject != "" && subject != domain.AnySubject && q.Subject != subject {
			continue
		}
		if _, skip := excluded[id]; skip {
			continue
		}
		matches = append(matches, *q)
	}
	b.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].UsageCount != matches[j].UsageCount {
			return matches[i].UsageCount < matches[j].UsageCount
		}
		return matches[i].CorrectRate > matches[j].CorrectRate
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (b *QuestionBank) FindQuestion(_ context.Context, questionID string) (domain.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	out := *q
	out.Options = append([]string(nil), q.Options...)
	return out, nil
}

func (b *QuestionBank) RecordUsage(_ context.Context, questionID string, isCorrect bool, timeSpentSeconds int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.questions[questionID]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	q.ApplyUsage(isCorrect, timeSpentSeconds, b.clock())
	return nil
}

func (b *QuestionBank) Subjects(_ context.Context) ([]string, error) {
	b.mu.RLock()
	seen := make(map[string]struct{})
	for _, q := range b.questions {
		if q.IsActive {
			seen[q.Subject] = struct{}{}
		}
	}
	b.mu.RUnlock()

	subjects := make([]string, 0, len(seen))
	for s := range seen {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects, nil
}
