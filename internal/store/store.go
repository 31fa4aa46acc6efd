// Package store persists the run catalog: one row per harvest run and
// one per source outcome, queryable afterwards from the CLI.
package store

import (
	"context"
	"errors"

	"github.com/voyagen/streamsift/internal/models"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// Store defines persistence for harvest runs and their outcomes.
type Store interface {
	// CreateRun inserts the run row at the start of a harvest.
	CreateRun(ctx context.Context, run *models.Run) error
	// RecordOutcome appends one source outcome to the run.
	RecordOutcome(ctx context.Context, runID string, out *models.Outcome) error
	// FinishRun updates aggregate counts and sets finished_at.
	FinishRun(ctx context.Context, run *models.Run) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
	// GetRun returns a single run by id, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*models.Run, error)
	// ListOutcomes returns a run's outcomes in source index order.
	ListOutcomes(ctx context.Context, runID string) ([]models.Outcome, error)
}
