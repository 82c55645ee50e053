package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"adaptive-quiz-service/internal/domain"
)

const shardCount = 32

// SessionStore is an in-memory implementation of app.SessionStore.
// Sessions are spread over mutex-guarded shards so unrelated sessions never
// contend, and each session carries its own lock for read-modify-write
// sequences. Sessions idle for longer than the TTL are treated as gone.
type SessionStore struct {
	shards  [shardCount]*shard
	idleTTL time.Duration
	clock   func() time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	lock    chan struct{}
	session domain.QuizSession
	touched time.Time
}

// NewSessionStore builds a store; idleTTL <= 0 disables expiry.
func NewSessionStore(idleTTL time.Duration) *SessionStore {
	return NewSessionStoreWithClock(idleTTL, time.Now)
}

// NewSessionStoreWithClock allows deterministic expiry in tests.
func NewSessionStoreWithClock(idleTTL time.Duration, now func() time.Time) *SessionStore {
	s := &SessionStore{idleTTL: idleTTL, clock: now}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*sessionEntry)}
	}
	return s
}

func (s *SessionStore) Create(_ context.Context, session domain.QuizSession) error {
	sh := s.shardFor(session.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.clock()
	if e, ok := sh.entries[session.ID]; ok && !s.expired(e, now) {
		return domain.ErrSessionExists
	}
	sh.entries[session.ID] = &sessionEntry{
		lock:    make(chan struct{}, 1),
		session: session.Clone(),
		touched: now,
	}
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (domain.QuizSession, error) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, err := s.liveLocked(sh, sessionID)
	if err != nil {
		return domain.QuizSession{}, err
	}
	return e.session.Clone(), nil
}

func (s *SessionStore) Replace(_ context.Context, session domain.QuizSession) error {
	sh := s.shardFor(session.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, err := s.liveLocked(sh, session.ID)
	if err != nil {
		return err
	}
	e.session = session.Clone()
	return nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) error {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	delete(sh.entries, sessionID)
	sh.mu.Unlock()
	return nil
}

// Lock waits for exclusive access to one session.
func (s *SessionStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	e, err := s.liveLocked(sh, sessionID)
	sh.mu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-e.lock }) }, nil
}

// Sweep drops expired sessions that nobody holds and reports how many went.
func (s *SessionStore) Sweep() int {
	if s.idleTTL <= 0 {
		return 0
	}
	now := s.clock()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, e := range sh.entries {
			if s.expired(e, now) && len(e.lock) == 0 {
				delete(sh.entries, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// StartJanitor sweeps every interval until ctx is canceled.
func (s *SessionStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.idleTTL <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Len reports the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// liveLocked returns the entry and refreshes its idle timer. sh.mu must be held.
func (s *SessionStore) liveLocked(sh *shard, sessionID string) (*sessionEntry, error) {
	now := s.clock()
	e, ok := sh.entries[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.expired(e, now) {
		delete(sh.entries, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	e.touched = now
	return e, nil
}

func (s *SessionStore) expired(e *sessionEntry, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(e.touched) > s.idleTTL
}

func (s *SessionStore) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return s.shards[h.Sum32()%shardCount]
}
