package app

import (
	"context"
	"fmt"
	"log"

	"edupath-service/internal/domain"
)

// ReconcileStore exposes the reads (and optional repair write) the
// reconciler needs. The attempt ledger is the source of truth; the user
// aggregates are treated as a cache that can drift.
type ReconcileStore interface {
	ListUserIDs(ctx context.Context) ([]string, error)
	BestScores(ctx context.Context, userID string) (domain.BestScoreState, error)
	// DerivedBestByLesson recomputes max(pointsEarned) per lesson from the
	// attempt ledger.
	DerivedBestByLesson(ctx context.Context, userID string) (map[string]int, error)
	SaveBestScores(ctx context.Context, userID string, totalBest int, bestByLesson map[string]int) error
}

// Drift is one mismatch between a stored aggregate and its ledger-derived value.
type Drift struct {
	UserID  string `json:"userId"`
	Field   string `json:"field"` // "totalBestPoints" or "bestByLesson:<lessonId>"
	Stored  int    `json:"stored"`
	Derived int    `json:"derived"`
}

// Reconciler recomputes best-score aggregates from the attempt ledger and
// flags (or repairs) drift. groupPoints is an incremental ledger keyed by
// attribution at submission time and is deliberately not re-derived here.
type Reconciler struct {
	store ReconcileStore
}

func NewReconciler(store ReconcileStore) *Reconciler {
	return &Reconciler{store: store}
}

// ReconcileUser compares one user's stored aggregates against the ledger.
// With repair set, drifted values are overwritten with the derived ones.
func (r *Reconciler) ReconcileUser(ctx context.Context, userID string, repair bool) ([]Drift, error) {
	stored, err := r.store.BestScores(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}
	derived, err := r.store.DerivedBestByLesson(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("derive from ledger: %w", err)
	}

	var drifts []Drift
	derivedTotal := 0
	for lessonID, best := range derived {
		derivedTotal += best
		if stored.BestByLesson[lessonID] != best {
			drifts = append(drifts, Drift{
				UserID:  userID,
				Field:   "bestByLesson:" + lessonID,
				Stored:  stored.BestByLesson[lessonID],
				Derived: best,
			})
		}
	}
	for lessonID, best := range stored.BestByLesson {
		if _, ok := derived[lessonID]; !ok {
			drifts = append(drifts, Drift{
				UserID:  userID,
				Field:   "bestByLesson:" + lessonID,
				Stored:  best,
				Derived: 0,
			})
		}
	}
	if stored.TotalBestPoints != derivedTotal {
		drifts = append(drifts, Drift{
			UserID:  userID,
			Field:   "totalBestPoints",
			Stored:  stored.TotalBestPoints,
			Derived: derivedTotal,
		})
	}

	if repair && len(drifts) > 0 {
		if err := r.store.SaveBestScores(ctx, userID, derivedTotal, derived); err != nil {
			return drifts, fmt.Errorf("repair aggregates: %w", err)
		}
		log.Printf("reconciler: repaired %d drifted field(s) for user %s", len(drifts), userID)
	}
	return drifts, nil
}

// ReconcileAll sweeps every user and returns all drift found.
func (r *Reconciler) ReconcileAll(ctx context.Context, repair bool) ([]Drift, error) {
	ids, err := r.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var all []Drift
	for _, id := range ids {
		drifts, err := r.ReconcileUser(ctx, id, repair)
		if err != nil {
			return all, err
		}
		all = append(all, drifts...)
	}
	return all, nil
}
