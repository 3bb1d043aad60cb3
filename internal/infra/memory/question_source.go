package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// CachedSource caches a question set with TTL to avoid repeated loads.
type CachedSource struct {
	loader app.QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	cached    *domain.QuestionSet
	expiresAt time.Time
}

func NewCachedSource(loader app.QuestionSource, ttl time.Duration) *CachedSource {
	return &CachedSource{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CachedSource) LoadQuestions(ctx context.Context) (domain.QuestionSet, error) {
	if set, ok := c.fresh(c.clock()); ok {
		return set, nil
	}

	result, err, _ := c.sf.Do("questions", func() (interface{}, error) {
		now := c.clock()
		if set, ok := c.fresh(now); ok {
			return set, nil
		}

		set, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		c.mu.Lock()
		c.cached = &set
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (c *CachedSource) fresh(now time.Time) (domain.QuestionSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached != nil && c.expiresAt.After(now) {
		return *c.cached, true
	}
	return domain.QuestionSet{}, false
}

func (c *CachedSource) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticSource serves a fixed question set (useful for tests/demos).
type StaticSource struct {
	set domain.QuestionSet
}

func NewStaticSource(questions []domain.Question) *StaticSource {
	return &StaticSource{set: domain.QuestionSet{Quiz: questions}}
}

func (s *StaticSource) LoadQuestions(_ context.Context) (domain.QuestionSet, error) {
	return s.set, nil
}
