package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// QuestionCache stores the encoded question set under one key and falls back
// to a loader on cache miss:
//
//	SET quiz:questions:{setID} {json}
type QuestionCache struct {
	client *redis.Client
	loader app.QuestionSource
	setID  string
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader app.QuestionSource, setID string, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		setID:  setID,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) LoadQuestions(ctx context.Context) (domain.QuestionSet, error) {
	if set, ok := c.cached(ctx); ok {
		return set, nil
	}

	result, err, _ := c.sf.Do(c.setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if set, ok := c.cached(ctx); ok {
			return set, nil
		}

		set, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		raw, err := json.Marshal(set)
		if err != nil {
			return domain.QuestionSet{}, err
		}
		if err := c.client.Set(ctx, c.key(), raw, c.ttlWithJitter()).Err(); err != nil {
			log.Printf("cache questions set=%s: %v", c.setID, err)
		}
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (c *QuestionCache) cached(ctx context.Context) (domain.QuestionSet, bool) {
	raw, err := c.client.Get(ctx, c.key()).Bytes()
	if err != nil {
		return domain.QuestionSet{}, false
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		log.Printf("cached questions set=%s unreadable: %v", c.setID, err)
		return domain.QuestionSet{}, false
	}
	return set, true
}

func (c *QuestionCache) key() string {
	return "quiz:questions:" + c.setID
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
