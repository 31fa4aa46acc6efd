package service

import (
	"sync"
	"time"

	"github.com/voyagen/streamsift/internal/models"
)

// recentKeep bounds how many outcomes a Snapshot carries.
const recentKeep = 20

// Snapshot is a point-in-time view of the current (or last) run,
// served by the status endpoint.
type Snapshot struct {
	Active    bool             `json:"active"`
	RunID     string           `json:"run_id,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Total     int              `json:"total"`
	Processed int              `json:"processed"`
	Counts    map[string]int   `json:"counts"`
	Cancelled bool             `json:"cancelled"`
	Recent    []models.Outcome `json:"recent,omitempty"`
}

// Tracker accumulates run progress behind a mutex so the HTTP status
// server can read while the pipeline writes.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Counts: make(map[string]int)}}
}

// Start resets the tracker for a new run.
func (t *Tracker) Start(runID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Snapshot{
		Active:    true,
		RunID:     runID,
		StartedAt: time.Now(),
		Total:     total,
		Counts:    make(map[string]int),
	}
}

// Observe records one completed outcome.
func (t *Tracker) Observe(out models.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Processed++
	t.snap.Counts[out.Status.String()]++
	t.snap.Recent = append(t.snap.Recent, out)
	if len(t.snap.Recent) > recentKeep {
		t.snap.Recent = t.snap.Recent[len(t.snap.Recent)-recentKeep:]
	}
}

// Finish marks the run complete.
func (t *Tracker) Finish(cancelled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Active = false
	t.snap.Cancelled = cancelled
}

// Snapshot returns a copy safe for concurrent use.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.snap
	snap.Counts = make(map[string]int, len(t.snap.Counts))
	for k, v := range t.snap.Counts {
		snap.Counts[k] = v
	}
	snap.Recent = append([]models.Outcome(nil), t.snap.Recent...)
	return snap
}
