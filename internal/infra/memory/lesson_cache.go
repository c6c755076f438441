package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"edupath-service/internal/domain"
)

// LessonLoader fetches lesson content from a backing store.
type LessonLoader interface {
	LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
}

// LessonCache caches lessons with TTL to avoid repeated DB hits on the read
// path. Lessons are immutable during a submission, so staleness is bounded
// by the TTL.
type LessonCache struct {
	loader LessonLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedLesson
}

type cachedLesson struct {
	lesson    domain.Lesson
	expiresAt time.Time
}

func NewLessonCache(loader LessonLoader, ttl time.Duration) *LessonCache {
	return &LessonCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedLesson),
	}
}

func (c *LessonCache) GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[lessonID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.lesson, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(lessonID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[lessonID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.lesson, nil
		}
		c.mu.RUnlock()

		lesson, err := c.loader.LoadLesson(ctx, lessonID)
		if err != nil {
			return domain.Lesson{}, err
		}

		c.mu.Lock()
		c.cache[lessonID] = cachedLesson{
			lesson:    lesson,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return lesson, nil
	})
	if err != nil {
		return domain.Lesson{}, err
	}
	return result.(domain.Lesson), nil
}

// Invalidate drops a lesson after a write so the next read hits the store.
func (c *LessonCache) Invalidate(_ context.Context, lessonID string) {
	c.mu.Lock()
	delete(c.cache, lessonID)
	c.mu.Unlock()
}

func (c *LessonCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
