package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/domain"
	"adaptive-quiz-service/internal/infra/memory"
)

type countingRepo struct {
	app.QuestionRepository
	calls int
}

func (r *countingRepo) FindQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	r.calls++
	return r.QuestionRepository.FindQuestion(ctx, questionID)
}

func newBank(t *testing.T) *memory.QuestionBank {
	t.Helper()
	bank, err := memory.NewQuestionBank(domain.Question{
		ID:           "q1",
		Text:         "2 + 2?",
		Options:      []string{"3", "4", "5", "22"},
		CorrectIndex: 1,
		Subject:      "Mathematics",
		Topic:        "Arithmetic",
		Difficulty:   domain.DifficultyEasy,
		Explanation:  "Basic addition.",
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	return bank
}

func TestAnswerKeyCacheCachesInRedis(t *testing.T) {
	mr, client := newTestClient(t)
	repo := &countingRepo{QuestionRepository: newBank(t)}
	cache := NewAnswerKeyCache(client, repo, time.Minute)
	ctx := context.Background()

	q, err := cache.FindQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("find question: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected loader once, got %d", repo.calls)
	}
	if !mr.Exists("quiz:question:q1") {
		t.Fatalf("expected hash key to be set")
	}
	if got := mr.HGet("quiz:question:q1", "correct"); got != "1" {
		t.Fatalf("expected cached answer index 1, got %q", got)
	}
	if ttl := mr.TTL("quiz:question:q1"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with jitter, got %v", ttl)
	}

	cached, err := cache.FindQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("find question 2: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", repo.calls)
	}
	if cached.CorrectIndex != q.CorrectIndex || cached.Difficulty != q.Difficulty || len(cached.Options) != 4 || cached.Explanation != q.Explanation {
		t.Fatalf("cached question differs: %+v vs %+v", cached, q)
	}

	if err := cache.Invalidate(ctx, "q1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = cache.FindQuestion(ctx, "q1")
	if repo.calls != 2 {
		t.Fatalf("expected reload after invalidate, got %d", repo.calls)
	}
}

func TestAnswerKeyCachePassesThroughMisses(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewAnswerKeyCache(client, newBank(t), time.Minute)

	if _, err := cache.FindQuestion(context.Background(), "nope"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if mr.Exists("quiz:question:nope") {
		t.Fatalf("misses must not be cached")
	}

	// Non-cached calls reach the repository untouched.
	subjects, err := cache.Subjects(context.Background())
	if err != nil || len(subjects) != 1 || subjects[0] != "Mathematics" {
		t.Fatalf("unexpected subjects %v err %v", subjects, err)
	}
}

func TestAnswerKeyCacheIgnoresCorruptEntries(t *testing.T) {
	mr, client := newTestClient(t)
	repo := &countingRepo{QuestionRepository: newBank(t)}
	cache := NewAnswerKeyCache(client, repo, time.Minute)
	mr.HSet("quiz:question:q1", "correct", "not-a-number")

	q, err := cache.FindQuestion(context.Background(), "q1")
	if err != nil {
		t.Fatalf("find question: %v", err)
	}
	if repo.calls != 1 || q.CorrectIndex != 1 {
		t.Fatalf("expected fallback to repository, calls=%d q=%+v", repo.calls, q)
	}
}
