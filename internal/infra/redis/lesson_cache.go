// Package redis caches lesson content in Redis so hot lessons do not hit
// Postgres on every read. Entries expire on a jittered TTL; writes through
// PutLesson invalidate eagerly.
package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"edupath-service/internal/domain"
)

// LessonLoader fetches lesson content from a backing store.
type LessonLoader interface {
	LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
}

// LessonCache stores the full lesson document as JSON under lesson:{id} and
// falls back to a loader on cache miss.
type LessonCache struct {
	client *redis.Client
	loader LessonLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewLessonCache(client *redis.Client, loader LessonLoader, ttl time.Duration) *LessonCache {
	return &LessonCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LessonCache) GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	key := c.key(lessonID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var lesson domain.Lesson
		if err := json.Unmarshal(raw, &lesson); err == nil {
			return lesson, nil
		}
		// Corrupt entry: fall through and refill.
	}

	result, err, _ := c.sf.Do(lessonID, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var lesson domain.Lesson
			if err := json.Unmarshal(raw, &lesson); err == nil {
				return lesson, nil
			}
		}

		lesson, err := c.loader.LoadLesson(ctx, lessonID)
		if err != nil {
			return domain.Lesson{}, err
		}

		if raw, err := json.Marshal(lesson); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return lesson, nil
	})
	if err != nil {
		return domain.Lesson{}, err
	}
	return result.(domain.Lesson), nil
}

// Invalidate drops the cached copy, for use after a lesson update.
func (c *LessonCache) Invalidate(ctx context.Context, lessonID string) {
	_ = c.client.Del(ctx, c.key(lessonID)).Err()
}

func (c *LessonCache) key(lessonID string) string {
	return "lesson:" + lessonID
}

func (c *LessonCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
