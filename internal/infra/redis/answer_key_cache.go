package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// AnswerKeyCache caches question answer keys in Redis (hash per question) and
// falls back to the wrapped repository on a miss. Stored as:
//
//	HSET quiz:question:{id} correct {index} difficulty {level} subject {s} ...
//
// Every other repository call goes straight through.
type AnswerKeyCache struct {
	app.QuestionRepository

	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewAnswerKeyCache(client *redis.Client, repo app.QuestionRepository, ttl time.Duration) *AnswerKeyCache {
	return &AnswerKeyCache{
		QuestionRepository: repo,
		client:             client,
		ttl:                ttl,
		rnd:                rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *AnswerKeyCache) FindQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	key := c.key(questionID)
	if q, ok := c.cached(ctx, key, questionID); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(questionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if q, ok := c.cached(ctx, key, questionID); ok {
			return q, nil
		}

		q, err := c.QuestionRepository.FindQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		options, _ := json.Marshal(q.Options)
		pipe := c.client.Pipeline()
		pipe.HSet(ctx, key, map[string]interface{}{
			"text":        q.Text,
			"options":     string(options),
			"correct":     q.CorrectIndex,
			"subject":     q.Subject,
			"topic":       q.Topic,
			"difficulty":  string(q.Difficulty),
			"explanation": q.Explanation,
		})
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// best effort: a failed write only costs another repository read
		_, _ = pipe.Exec(ctx)

		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// Invalidate drops a cached answer key, e.g. after the question was edited.
func (c *AnswerKeyCache) Invalidate(ctx context.Context, questionID string) error {
	return c.client.Del(ctx, c.key(questionID)).Err()
}

func (c *AnswerKeyCache) cached(ctx context.Context, key, questionID string) (domain.Question, bool) {
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		return domain.Question{}, false
	}
	return questionFromHash(questionID, fields)
}

func questionFromHash(questionID string, fields map[string]string) (domain.Question, bool) {
	correct, err := strconv.Atoi(fields["correct"])
	if err != nil {
		return domain.Question{}, false
	}
	var options []string
	if raw := fields["options"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &options); err != nil {
			return domain.Question{}, false
		}
	}
	difficulty := domain.Difficulty(fields["difficulty"])
	if !difficulty.Valid() {
		return domain.Question{}, false
	}
	return domain.Question{
		ID:           questionID,
		Text:         fields["text"],
		Options:      options,
		CorrectIndex: correct,
		Subject:      fields["subject"],
		Topic:        fields["topic"],
		Difficulty:   difficulty,
		Explanation:  fields["explanation"],
		IsActive:     true,
	}, true
}

func (c *AnswerKeyCache) key(questionID string) string {
	return "quiz:question:" + questionID
}

func (c *AnswerKeyCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
