package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionCache caches answer-key lookups with TTL to avoid repeated DB hits
// while every other call goes straight to the wrapped repository.
type QuestionCache struct {
	app.QuestionRepository

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionCache(repo app.QuestionRepository, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		QuestionRepository: repo,
		ttl:                ttl,
		clock:              time.Now,
		rnd:                rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:              make(map[string]cachedQuestion),
	}
}

func (c *QuestionCache) FindQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	if q, ok := c.lookup(questionID); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(questionID, func() (interface{}, error) {
		if q, ok := c.lookup(questionID); ok {
			return q, nil
		}

		q, err := c.QuestionRepository.FindQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		c.mu.Lock()
		c.cache[questionID] = cachedQuestion{
			question:  q,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *QuestionCache) lookup(questionID string) (domain.Question, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.cache[questionID]; ok && entry.expiresAt.After(now) {
		return entry.question, true
	}
	return domain.Question{}, false
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
