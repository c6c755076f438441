package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"edupath-service/internal/domain"
	"edupath-service/internal/scoring"
)

// SubmissionTx is the set of store operations available inside one
// submission transaction. Implementations must roll every write back when
// the callback passed to RunSubmission returns an error.
type SubmissionTx interface {
	GetGroup(ctx context.Context, groupID string) (domain.Group, error)
	GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
	// LockBestScores loads the caller's aggregates and takes a write lock on
	// them for the remainder of the transaction, serializing attempt
	// numbering per user.
	LockBestScores(ctx context.Context, userID string) (domain.BestScoreState, error)
	LatestAttempt(ctx context.Context, userID, lessonID string) (int, error)
	InsertAttempt(ctx context.Context, attempt domain.Attempt) error
	ApplyBestDelta(ctx context.Context, userID, lessonID, groupID string, best, delta int) error
	BestScores(ctx context.Context, userID string) (domain.BestScoreState, error)
}

// SubmissionStore runs a submission callback inside a single transaction.
type SubmissionStore interface {
	RunSubmission(ctx context.Context, fn func(ctx context.Context, tx SubmissionTx) error) error
}

// StandingsNotifier receives leaderboard updates after a committed submission.
type StandingsNotifier interface {
	Update(groupID string, entry domain.StandingEntry)
}

// SubmissionRequest is the body of a submit call.
type SubmissionRequest struct {
	GroupID  string               `json:"groupId"`
	LessonID string               `json:"lessonId"`
	Answers  []domain.AnswerInput `json:"answers"`
}

// SubmissionResult is returned to the caller after a committed attempt.
// BestForLesson and GroupPoints reflect the stored aggregates after the
// submission, which equal the pre-existing values when the attempt did not
// beat the previous best.
type SubmissionResult struct {
	AttemptID       string              `json:"attemptId"`
	Attempt         int                 `json:"attempt"`
	PointsEarned    int                 `json:"pointsEarned"`
	Status          domain.LessonStatus `json:"status"`
	Accuracy        float64             `json:"accuracy"`
	TotalQuestions  int                 `json:"totalQuestions"`
	CorrectAnswers  int                 `json:"correctAnswers"`
	TotalBestPoints int                 `json:"totalBestPoints"`
	BestForLesson   int                 `json:"bestByLesson"`
	GroupPoints     int                 `json:"groupPoints"`
}

// SubmissionService coordinates one lesson submission: membership checks,
// scoring, attempt numbering, the ledger insert, and best-score
// reconciliation, all inside one store transaction.
type SubmissionService struct {
	store          SubmissionStore
	openMembership bool
	notifier       StandingsNotifier
	now            func() time.Time
	newID          func() string
}

type SubmissionOption func(*SubmissionService)

// WithClosedMembership makes groups with an empty assignedStudents list
// reject every caller instead of accepting anyone.
func WithClosedMembership() SubmissionOption {
	return func(s *SubmissionService) { s.openMembership = false }
}

// WithNotifier wires a leaderboard hub to be nudged after each commit.
func WithNotifier(n StandingsNotifier) SubmissionOption {
	return func(s *SubmissionService) { s.notifier = n }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) SubmissionOption {
	return func(s *SubmissionService) { s.now = now }
}

func NewSubmissionService(store SubmissionStore, opts ...SubmissionOption) *SubmissionService {
	s := &SubmissionService{
		store:          store,
		openMembership: true,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates, scores, and persists one attempt. Either everything is
// committed (attempt row plus aggregate deltas) or nothing is.
func (s *SubmissionService) Submit(ctx context.Context, caller domain.Identity, req SubmissionRequest) (SubmissionResult, error) {
	if caller.UserID == "" {
		return SubmissionResult{}, domain.ErrUnauthenticated
	}
	if req.GroupID == "" || req.LessonID == "" {
		return SubmissionResult{}, domain.ErrMissingIDs
	}

	var (
		out         SubmissionResult
		displayName string
	)
	err := s.store.RunSubmission(ctx, func(ctx context.Context, tx SubmissionTx) error {
		group, err := tx.GetGroup(ctx, req.GroupID)
		if err != nil {
			return err
		}
		if len(group.AssignedStudents) == 0 {
			if !s.openMembership {
				return domain.ErrNotGroupMember
			}
		} else if !group.HasStudent(caller.UserID) {
			return domain.ErrNotGroupMember
		}
		if !group.AllowsLesson(req.LessonID) {
			return domain.ErrLessonNotInGroup
		}

		lesson, err := tx.GetLesson(ctx, req.LessonID)
		if err != nil {
			return err
		}

		score := scoring.Score(lesson, req.Answers)

		// Lock before numbering: concurrent submissions by the same user
		// serialize here, so LatestAttempt cannot be read twice for the
		// same attempt number.
		best, err := tx.LockBestScores(ctx, caller.UserID)
		if err != nil {
			return err
		}

		last, err := tx.LatestAttempt(ctx, caller.UserID, req.LessonID)
		if err != nil {
			return err
		}

		attempt := domain.Attempt{
			ID:           s.newID(),
			UserID:       caller.UserID,
			GroupID:      req.GroupID,
			LessonID:     req.LessonID,
			Attempt:      last + 1,
			PointsEarned: score.PointsEarned,
			Status:       score.Status,
			Accuracy:     score.Accuracy,
			Detail:       score.Detail,
			CreatedAt:    s.now(),
		}
		if err := tx.InsertAttempt(ctx, attempt); err != nil {
			return err
		}

		if delta := score.PointsEarned - best.BestByLesson[req.LessonID]; delta > 0 {
			if err := tx.ApplyBestDelta(ctx, caller.UserID, req.LessonID, req.GroupID, score.PointsEarned, delta); err != nil {
				return err
			}
		}

		updated, err := tx.BestScores(ctx, caller.UserID)
		if err != nil {
			return err
		}

		displayName = updated.Name
		out = SubmissionResult{
			AttemptID:       attempt.ID,
			Attempt:         attempt.Attempt,
			PointsEarned:    score.PointsEarned,
			Status:          score.Status,
			Accuracy:        score.Accuracy,
			TotalQuestions:  len(lesson.Questions),
			CorrectAnswers:  score.CorrectAnswers,
			TotalBestPoints: updated.TotalBestPoints,
			BestForLesson:   updated.BestByLesson[req.LessonID],
			GroupPoints:     updated.GroupPoints[req.GroupID],
		}
		return nil
	})
	if err != nil {
		return SubmissionResult{}, err
	}

	if s.notifier != nil {
		s.notifier.Update(req.GroupID, domain.StandingEntry{
			UserID:      caller.UserID,
			DisplayName: displayName,
			Points:      out.GroupPoints,
		})
	}
	return out, nil
}
