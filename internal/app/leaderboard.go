package app

import (
	"sort"
	"sync"
	"time"

	"edupath-service/internal/domain"
)

// LeaderboardHub fans group standings out to websocket subscribers. Boards
// are in-memory projections of the group_points aggregates: they are seeded
// from the store when the first subscriber arrives and nudged by the
// submission service after each commit.
type LeaderboardHub struct {
	mu     sync.RWMutex
	boards map[string]*board
	now    func() time.Time
}

type board struct {
	groupID     string
	entries     map[string]domain.StandingEntry
	subscribers map[chan domain.GroupStandings]struct{}
}

func NewLeaderboardHub() *LeaderboardHub {
	return &LeaderboardHub{
		boards: make(map[string]*board),
		now:    time.Now,
	}
}

// NewLeaderboardHubWithClock is test-only for deterministic timestamps.
func NewLeaderboardHubWithClock(now func() time.Time) *LeaderboardHub {
	h := NewLeaderboardHub()
	h.now = now
	return h
}

// Seed replaces a group's entries with a snapshot loaded from the store.
// Existing entries win over seed rows so updates that raced the seed are kept.
func (h *LeaderboardHub) Seed(groupID string, entries []domain.StandingEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := h.boardLocked(groupID)
	for _, e := range entries {
		if _, ok := b.entries[e.UserID]; !ok {
			b.entries[e.UserID] = e
		}
	}
}

// Update upserts one entry and broadcasts the new standings.
func (h *LeaderboardHub) Update(groupID string, entry domain.StandingEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := h.boardLocked(groupID)
	b.entries[entry.UserID] = entry
	h.broadcastLocked(b)
}

// Subscribe returns a channel receiving standings snapshots, starting with
// the current one. The caller must invoke cancel to avoid leaks.
func (h *LeaderboardHub) Subscribe(groupID string) (<-chan domain.GroupStandings, func()) {
	ch := make(chan domain.GroupStandings, 8)

	h.mu.Lock()
	b := h.boardLocked(groupID)
	b.subscribers[ch] = struct{}{}
	initial := h.snapshotLocked(b)
	h.mu.Unlock()

	ch <- initial

	cancel := func() {
		h.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		if len(b.subscribers) == 0 && len(b.entries) == 0 {
			delete(h.boards, groupID)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *LeaderboardHub) boardLocked(groupID string) *board {
	b, ok := h.boards[groupID]
	if !ok {
		b = &board{
			groupID:     groupID,
			entries:     make(map[string]domain.StandingEntry),
			subscribers: make(map[chan domain.GroupStandings]struct{}),
		}
		h.boards[groupID] = b
	}
	return b
}

func (h *LeaderboardHub) broadcastLocked(b *board) {
	snap := h.snapshotLocked(b)
	for ch := range b.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow subscriber: drop its stale snapshot so it only ever
			// sees the latest standings.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (h *LeaderboardHub) snapshotLocked(b *board) domain.GroupStandings {
	entries := make([]domain.StandingEntry, 0, len(b.entries))
	for _, e := range b.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		if entries[i].DisplayName != entries[j].DisplayName {
			return entries[i].DisplayName < entries[j].DisplayName
		}
		return entries[i].UserID < entries[j].UserID
	})
	return domain.GroupStandings{
		GroupID:   b.groupID,
		Entries:   entries,
		UpdatedAt: h.now(),
	}
}
