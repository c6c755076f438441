package memory

import (
	"context"
	"testing"
	"time"

	"edupath-service/internal/domain"
)

type countingLoader struct {
	store *Store
	calls int
}

func (l *countingLoader) LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	l.calls++
	return l.store.LoadLesson(ctx, lessonID)
}

func TestLessonCacheAvoidsRepeatedLoads(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if err := store.PutLesson(ctx, domain.Lesson{ID: "l1", Title: "Sums"}); err != nil {
		t.Fatalf("put lesson: %v", err)
	}

	loader := &countingLoader{store: store}
	cache := NewLessonCache(loader, time.Minute)

	if _, err := cache.GetLesson(ctx, "l1"); err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if _, err := cache.GetLesson(ctx, "l1"); err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected a single backing load, got %d", loader.calls)
	}
}

func TestLessonCachePropagatesNotFound(t *testing.T) {
	cache := NewLessonCache(&countingLoader{store: NewStore()}, time.Minute)
	if _, err := cache.GetLesson(context.Background(), "nope"); err != domain.ErrLessonNotFound {
		t.Fatalf("err = %v, want %v", err, domain.ErrLessonNotFound)
	}
}
