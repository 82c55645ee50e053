package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"adaptive-quiz-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testSession(id string) domain.QuizSession {
	return domain.QuizSession{
		ID:                    id,
		UserID:                "u1",
		Subject:               "Mathematics",
		QuestionCount:         5,
		CurrentQuestionNumber: 1,
		CurrentDifficulty:     domain.DifficultyMedium,
		UsedQuestionIDs:       []string{"q1"},
		StartTime:             time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	if err := store.Create(ctx, testSession("s1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("quiz:session:s1") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quiz:session:s1"); ttl != time.Minute {
		t.Fatalf("expected idle ttl on key, got %v", ttl)
	}
	if err := store.Create(ctx, testSession("s1")); !errors.Is(err, domain.ErrSessionExists) {
		t.Fatalf("expected duplicate create to fail, got %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Subject != "Mathematics" || !got.StartTime.Equal(testSession("s1").StartTime) {
		t.Fatalf("unexpected session %+v", got)
	}

	got.Answers = append(got.Answers, domain.AnswerRecord{QuestionID: "q1", IsCorrect: true, Difficulty: domain.DifficultyMedium})
	got.CurrentQuestionNumber = 2
	if err := store.Replace(ctx, got); err != nil {
		t.Fatalf("replace: %v", err)
	}
	again, _ := store.Get(ctx, "s1")
	if again.CurrentQuestionNumber != 2 || len(again.Answers) != 1 {
		t.Fatalf("expected replaced session, got %+v", again)
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("quiz:session:s1") {
		t.Fatalf("expected redis key to be removed")
	}
	if err := store.Replace(ctx, again); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("replace after delete should not resurrect, got %v", err)
	}
}

func TestSessionStoreExpiresIdleSessions(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()
	_ = store.Create(ctx, testSession("s1"))

	mr.FastForward(40 * time.Second)
	if _, err := store.Get(ctx, "s1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	mr.FastForward(40 * time.Second)
	if _, err := store.Get(ctx, "s1"); err != nil {
		t.Fatalf("read should have refreshed ttl: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestSessionStoreLock(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	if _, err := store.Lock(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_ = store.Create(ctx, testSession("s1"))
	unlock, err := store.Lock(ctx, "s1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !mr.Exists("quiz:session:s1:lock") {
		t.Fatalf("expected lock key")
	}

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := store.Lock(waitCtx, "s1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected contended lock to time out, got %v", err)
	}

	unlock()
	unlock()
	if mr.Exists("quiz:session:s1:lock") {
		t.Fatalf("expected lock released")
	}

	again, err := store.Lock(ctx, "s1")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}

func TestSessionStoreUnlockKeepsForeignLease(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewSessionStore(client, time.Minute).WithLockLease(time.Second)
	ctx := context.Background()
	_ = store.Create(ctx, testSession("s1"))

	unlock, err := store.Lock(ctx, "s1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	// Lease runs out and another holder takes over.
	mr.FastForward(2 * time.Second)
	if err := mr.Set("quiz:session:s1:lock", "someone-else"); err != nil {
		t.Fatalf("seed foreign lock: %v", err)
	}

	unlock()
	if got, _ := mr.Get("quiz:session:s1:lock"); got != "someone-else" {
		t.Fatalf("stale unlock must not release a foreign lease, got %q", got)
	}
}

func TestSessionStoreLockLease(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	store := NewSessionStore(client, time.Minute)
	if err := store.Create(ctx, testSession("s1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	unlock, err := store.Lock(ctx, "s1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if ttl := mr.TTL("quiz:session:s1:lock"); ttl != defaultLockLease {
		t.Fatalf("expected default lease %v, got %v", defaultLockLease, ttl)
	}
	unlock()

	store.WithLockLease(36 * time.Second)
	unlock, err = store.Lock(ctx, "s1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()
	if ttl := mr.TTL("quiz:session:s1:lock"); ttl != 36*time.Second {
		t.Fatalf("expected configured lease, got %v", ttl)
	}
}
