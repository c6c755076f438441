package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"edupath-service/internal/domain"
	"edupath-service/internal/infra/memory"
)

type countingLoader struct {
	store *memory.Store
	calls int
}

func (l *countingLoader) LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	l.calls++
	return l.store.LoadLesson(ctx, lessonID)
}

func newTestCache(t *testing.T) (*LessonCache, *countingLoader, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store := memory.NewStore()
	if err := store.PutLesson(context.Background(), domain.Lesson{
		ID:    "l1",
		Title: "Sums",
		Questions: []domain.Question{
			{ID: "q1", CorrectAnswer: "4", Points: 10},
		},
	}); err != nil {
		t.Fatalf("put lesson: %v", err)
	}

	loader := &countingLoader{store: store}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewLessonCache(client, loader, time.Minute), loader, mr
}

func TestLessonCacheFillsRedis(t *testing.T) {
	ctx := context.Background()
	cache, loader, mr := newTestCache(t)

	lesson, err := cache.GetLesson(ctx, "l1")
	if err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if lesson.Title != "Sums" || len(lesson.Questions) != 1 {
		t.Fatalf("unexpected lesson: %+v", lesson)
	}
	if !mr.Exists("lesson:l1") {
		t.Fatalf("expected redis key to be set")
	}

	if _, err := cache.GetLesson(ctx, "l1"); err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestLessonCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	cache, loader, mr := newTestCache(t)

	if _, err := cache.GetLesson(ctx, "l1"); err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	cache.Invalidate(ctx, "l1")
	if mr.Exists("lesson:l1") {
		t.Fatalf("expected key removed")
	}
	if _, err := cache.GetLesson(ctx, "l1"); err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, calls=%d", loader.calls)
	}
}

func TestLessonCacheMissPropagates(t *testing.T) {
	cache, _, _ := newTestCache(t)
	if _, err := cache.GetLesson(context.Background(), "nope"); err != domain.ErrLessonNotFound {
		t.Fatalf("err = %v, want %v", err, domain.ErrLessonNotFound)
	}
}
