// Package memory provides an in-memory backend used by unit tests. It
// mirrors the transactional contract of the Postgres store: writes staged
// inside RunSubmission are only applied on a nil callback return.
package memory

import (
	"context"
	"sort"
	"sync"

	"edupath-service/internal/app"
	"edupath-service/internal/domain"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]domain.User
	byEmail  map[string]string
	groups   map[string]domain.Group
	lessons  map[string]domain.Lesson
	attempts []domain.Attempt

	// FailBestDelta, when set, makes the next ApplyBestDelta inside a
	// transaction fail with the given error. Test-only rollback trigger.
	FailBestDelta error
}

func NewStore() *Store {
	return &Store{
		users:   make(map[string]domain.User),
		byEmail: make(map[string]string),
		groups:  make(map[string]domain.Group),
		lessons: make(map[string]domain.Lesson),
	}
}

// --- user store ---

func (s *Store) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return domain.ErrEmailTaken
	}
	if u.BestByLesson == nil {
		u.BestByLesson = map[string]int{}
	}
	if u.GroupPoints == nil {
		u.GroupPoints = map[string]int{}
	}
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) ListStudents(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.User
	for _, u := range s.users {
		if u.Role == domain.RoleStudent {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- group store ---

func (s *Store) CreateGroup(_ context.Context, g domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
	return nil
}

func (s *Store) ListGroups(_ context.Context) ([]domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- lesson store ---

func (s *Store) PutLesson(_ context.Context, l domain.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[l.ID] = l
	return nil
}

func (s *Store) ListLessons(_ context.Context, assignmentID string) ([]domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Lesson
	for _, l := range s.lessons {
		if l.AssignmentID == assignmentID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// LoadLesson satisfies the cache's loader interface.
func (s *Store) LoadLesson(_ context.Context, lessonID string) (domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lessons[lessonID]
	if !ok {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	return l, nil
}

// --- attempts, standings, reconciliation reads ---

func (s *Store) ListAttempts(_ context.Context, userID, lessonID string) ([]domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Attempt
	for _, a := range s.attempts {
		if a.UserID == userID && (lessonID == "" || a.LessonID == lessonID) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GroupStandings(_ context.Context, groupID string) ([]domain.StandingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StandingEntry
	for _, u := range s.users {
		if pts, ok := u.GroupPoints[groupID]; ok {
			out = append(out, domain.StandingEntry{UserID: u.ID, DisplayName: u.Name, Points: pts})
		}
	}
	return out, nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) BestScores(_ context.Context, userID string) (domain.BestScoreState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestScoresLocked(userID)
}

func (s *Store) bestScoresLocked(userID string) (domain.BestScoreState, error) {
	u, ok := s.users[userID]
	if !ok {
		return domain.BestScoreState{}, domain.ErrUserNotFound
	}
	return domain.BestScoreState{
		UserID:          u.ID,
		Name:            u.Name,
		TotalBestPoints: u.TotalBestPoints,
		BestByLesson:    cloneCounts(u.BestByLesson),
		GroupPoints:     cloneCounts(u.GroupPoints),
	}, nil
}

func (s *Store) DerivedBestByLesson(_ context.Context, userID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	derived := map[string]int{}
	for _, a := range s.attempts {
		if a.UserID == userID && a.PointsEarned > derived[a.LessonID] {
			derived[a.LessonID] = a.PointsEarned
		}
	}
	return derived, nil
}

func (s *Store) SaveBestScores(_ context.Context, userID string, totalBest int, bestByLesson map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.TotalBestPoints = totalBest
	u.BestByLesson = cloneCounts(bestByLesson)
	s.users[userID] = u
	return nil
}

// --- submission transaction ---

// RunSubmission holds the store lock for the whole transaction and discards
// staged writes when fn fails.
func (s *Store) RunSubmission(ctx context.Context, fn func(ctx context.Context, tx app.SubmissionTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, bestUpdates: make(map[string]*bestUpdate)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.attempts = append(s.attempts, tx.inserted...)
	for userID, upd := range tx.bestUpdates {
		u := s.users[userID]
		u.BestByLesson = cloneCounts(u.BestByLesson)
		u.GroupPoints = cloneCounts(u.GroupPoints)
		for lessonID, best := range upd.bestByLesson {
			u.BestByLesson[lessonID] = best
		}
		for groupID, delta := range upd.groupDeltas {
			u.GroupPoints[groupID] += delta
		}
		u.TotalBestPoints += upd.totalDelta
		s.users[userID] = u
	}
	return nil
}

type bestUpdate struct {
	bestByLesson map[string]int
	groupDeltas  map[string]int
	totalDelta   int
}

type memTx struct {
	store       *Store
	inserted    []domain.Attempt
	bestUpdates map[string]*bestUpdate
}

func (t *memTx) GetGroup(_ context.Context, groupID string) (domain.Group, error) {
	g, ok := t.store.groups[groupID]
	if !ok {
		return domain.Group{}, domain.ErrGroupNotFound
	}
	return g, nil
}

func (t *memTx) GetLesson(_ context.Context, lessonID string) (domain.Lesson, error) {
	l, ok := t.store.lessons[lessonID]
	if !ok {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	return l, nil
}

func (t *memTx) LockBestScores(_ context.Context, userID string) (domain.BestScoreState, error) {
	// The store lock held by RunSubmission already serializes transactions.
	return t.bestScores(userID)
}

func (t *memTx) LatestAttempt(_ context.Context, userID, lessonID string) (int, error) {
	latest := 0
	for _, a := range t.store.attempts {
		if a.UserID == userID && a.LessonID == lessonID && a.Attempt > latest {
			latest = a.Attempt
		}
	}
	for _, a := range t.inserted {
		if a.UserID == userID && a.LessonID == lessonID && a.Attempt > latest {
			latest = a.Attempt
		}
	}
	return latest, nil
}

func (t *memTx) InsertAttempt(_ context.Context, attempt domain.Attempt) error {
	for _, a := range t.store.attempts {
		if a.UserID == attempt.UserID && a.LessonID == attempt.LessonID && a.Attempt == attempt.Attempt {
			return domain.ErrDuplicateAttempt
		}
	}
	for _, a := range t.inserted {
		if a.UserID == attempt.UserID && a.LessonID == attempt.LessonID && a.Attempt == attempt.Attempt {
			return domain.ErrDuplicateAttempt
		}
	}
	t.inserted = append(t.inserted, attempt)
	return nil
}

func (t *memTx) ApplyBestDelta(_ context.Context, userID, lessonID, groupID string, best, delta int) error {
	if err := t.store.FailBestDelta; err != nil {
		t.store.FailBestDelta = nil
		return err
	}
	upd, ok := t.bestUpdates[userID]
	if !ok {
		upd = &bestUpdate{bestByLesson: map[string]int{}, groupDeltas: map[string]int{}}
		t.bestUpdates[userID] = upd
	}
	upd.bestByLesson[lessonID] = best
	upd.groupDeltas[groupID] += delta
	upd.totalDelta += delta
	return nil
}

func (t *memTx) BestScores(_ context.Context, userID string) (domain.BestScoreState, error) {
	return t.bestScores(userID)
}

func (t *memTx) bestScores(userID string) (domain.BestScoreState, error) {
	state, err := t.store.bestScoresLocked(userID)
	if err != nil {
		return domain.BestScoreState{}, err
	}
	if upd, ok := t.bestUpdates[userID]; ok {
		for lessonID, best := range upd.bestByLesson {
			state.BestByLesson[lessonID] = best
		}
		for groupID, delta := range upd.groupDeltas {
			state.GroupPoints[groupID] += delta
		}
		state.TotalBestPoints += upd.totalDelta
	}
	return state, nil
}

func cloneUser(u domain.User) domain.User {
	u.BestByLesson = cloneCounts(u.BestByLesson)
	u.GroupPoints = cloneCounts(u.GroupPoints)
	return u
}

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
