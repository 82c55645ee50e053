package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"adaptive-quiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockLease = 30 * time.Second
	lockRetryDelay   = 15 * time.Millisecond
)

// releaseLock deletes the lock key only when the caller still owns it.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionStore keeps quiz sessions in Redis so any instance can serve the
// next answer. Sessions are stored as JSON under quiz:session:{id}; every
// read or write pushes the key's expiry out by the idle TTL.
type SessionStore struct {
	client    *redis.Client
	ttl       time.Duration
	lockLease time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:    client,
		ttl:       ttl,
		lockLease: defaultLockLease,
	}
}

// WithLockLease bounds how long a crashed holder can block a session.
func (s *SessionStore) WithLockLease(lease time.Duration) *SessionStore {
	if lease > 0 {
		s.lockLease = lease
	}
	return s
}

func (s *SessionStore) Create(ctx context.Context, session domain.QuizSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(session.ID), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return domain.ErrSessionExists
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	var (
		raw []byte
		err error
	)
	if s.ttl > 0 {
		raw, err = s.client.GetEx(ctx, s.key(sessionID), s.ttl).Bytes()
	} else {
		raw, err = s.client.Get(ctx, s.key(sessionID)).Bytes()
	}
	if errors.Is(err, redis.Nil) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("load session: %w", err)
	}

	var session domain.QuizSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.QuizSession{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return session, nil
}

func (s *SessionStore) Replace(ctx context.Context, session domain.QuizSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	// XX: never resurrect a session that expired or was deleted meanwhile.
	err = s.client.SetArgs(ctx, s.key(session.ID), raw, redis.SetArgs{Mode: "XX", TTL: s.ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Lock takes a lease on quiz:session:{id}:lock, polling until it is free or
// ctx is done. The lease expires on its own if the holder dies.
func (s *SessionStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrSessionNotFound
	}

	lockKey := s.lockKey(sessionID)
	token := uuid.NewString()
	for {
		ok, err := s.client.SetNX(ctx, lockKey, token, s.lockLease).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(lockRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// release on a fresh context: the caller's may already be canceled
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = releaseLock.Run(releaseCtx, s.client, []string{lockKey}, token).Err()
		})
	}, nil
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}

func (s *SessionStore) lockKey(sessionID string) string {
	return "quiz:session:" + sessionID + ":lock"
}
