package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voyagen/streamsift/internal/cache"
	"github.com/voyagen/streamsift/internal/metrics"
	"github.com/voyagen/streamsift/internal/models"
	"github.com/voyagen/streamsift/internal/playlist"
	"github.com/voyagen/streamsift/internal/store"
)

// manifestName is written next to the output files after every run.
const manifestName = "harvest_manifest.json"

// RunSummary aggregates one harvest run. Outcomes appear in completion
// order, not submission order.
type RunSummary struct {
	RunID         string
	Started       time.Time
	Elapsed       time.Duration
	Total         int
	Saved         int
	TooLarge      int
	NoMarker      int
	Empty         int
	InvalidFormat int
	Failed        int
	Cancelled     bool
	Outcomes      []models.Outcome
}

func (s *RunSummary) observe(out models.Outcome) {
	s.Outcomes = append(s.Outcomes, out)
	switch out.Status {
	case models.StatusSaved:
		s.Saved++
	case models.StatusSkippedTooLarge:
		s.TooLarge++
	case models.StatusSkippedNoMarker:
		s.NoMarker++
	case models.StatusSkippedEmpty:
		s.Empty++
	case models.StatusSkippedInvalidFormat:
		s.InvalidFormat++
	case models.StatusFailed:
		s.Failed++
	}
}

func (s *RunSummary) toRun() *models.Run {
	return &models.Run{
		ID:            s.RunID,
		StartedAt:     s.Started,
		Sources:       s.Total,
		Saved:         s.Saved,
		TooLarge:      s.TooLarge,
		NoMarker:      s.NoMarker,
		Empty:         s.Empty,
		InvalidFormat: s.InvalidFormat,
		Failed:        s.Failed,
		Cancelled:     s.Cancelled,
	}
}

// Run executes the pipeline for every source under the worker pool.
// Results are consumed as they complete; ctx cancellation is honored
// between results and stops dispatching, while sequences already in
// flight drain on their own deadlines. The only error Run itself
// returns is a destination directory that cannot be created, since
// then no source has anywhere to land.
func (h *Harvester) Run(ctx context.Context, list []models.Source) (*RunSummary, error) {
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", h.dir, err)
	}

	sum := &RunSummary{RunID: uuid.New().String(), Started: time.Now(), Total: len(list)}
	if h.tracker != nil {
		h.tracker.Start(sum.RunID, len(list))
	}

	// A failed catalog insert disables recording for this run only;
	// the harvest itself does not depend on Postgres.
	catalog := h.catalog
	if catalog != nil {
		if err := catalog.CreateRun(ctx, sum.toRun()); err != nil {
			h.logger.Warn("run catalog disabled for this run", "error", err)
			catalog = nil
		}
	}

	workers := h.workers
	if workers > len(list) {
		workers = len(list)
	}
	h.logger.Info("harvest starting",
		"run_id", sum.RunID, "sources", len(list), "workers", workers,
		"marker", h.parser.Marker, "dir", h.dir)

	jobs := make(chan models.Source)
	results := make(chan models.Outcome, len(list))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				results <- h.processSource(src)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, src := range list {
			if h.limiter != nil {
				if err := h.limiter.Wait(ctx); err != nil {
					return
				}
			}
			select {
			case jobs <- src:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for out := range results {
		if ctx.Err() != nil {
			break
		}
		h.finishOutcome(ctx, sum, out, catalog)
	}
	if ctx.Err() != nil {
		sum.Cancelled = true
		h.logger.Info("cancellation requested, draining in-flight sources")
	}
	wg.Wait()

	sum.Elapsed = time.Since(sum.Started)
	metrics.RunDuration.Set(sum.Elapsed.Seconds())
	if h.tracker != nil {
		h.tracker.Finish(sum.Cancelled)
	}
	if catalog != nil {
		if err := catalog.FinishRun(context.Background(), sum.toRun()); err != nil {
			h.logger.Warn("catalog: finish run", "error", err)
		}
	}
	if err := h.writeManifest(sum); err != nil {
		h.logger.Warn("write manifest", "error", err)
	}
	return sum, nil
}

// finishOutcome applies one completed result: logging, counters,
// catalog row, and the probe hand-off for saved files.
func (h *Harvester) finishOutcome(ctx context.Context, sum *RunSummary, out models.Outcome, catalog store.Store) {
	sum.observe(out)
	metrics.SourcesTotal.WithLabelValues(out.Status.String()).Inc()
	if h.tracker != nil {
		h.tracker.Observe(out)
	}

	switch out.Status {
	case models.StatusSaved:
		h.logger.Info("saved", "index", out.Index, "file", out.File,
			"channels", out.Channels, "groups", out.Groups, "bytes", out.Bytes)
	case models.StatusFailed:
		h.logger.Error("failed", "index", out.Index, "url", out.URL, "error", out.Error)
	default:
		h.logger.Warn("skipped", "index", out.Index, "reason", out.Status.String(), "url", out.URL)
	}

	if catalog != nil {
		if err := catalog.RecordOutcome(ctx, sum.RunID, &out); err != nil {
			h.logger.Warn("catalog: record outcome", "index", out.Index, "error", err)
		}
	}
	if h.rds != nil && h.queue != "" && out.Status == models.StatusSaved {
		job := cache.ProbeJob{
			RunID:  sum.RunID,
			Index:  out.Index,
			File:   filepath.Join(h.dir, out.File),
			Source: out.URL,
		}
		if err := cache.Enqueue(ctx, h.rds, h.queue, job); err != nil {
			h.logger.Warn("probe enqueue", "index", out.Index, "error", err)
		}
	}
}

type manifest struct {
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	ElapsedMS int64            `json:"elapsed_ms"`
	Total     int              `json:"total"`
	Counts    map[string]int   `json:"counts"`
	Cancelled bool             `json:"cancelled"`
	Outcomes  []models.Outcome `json:"outcomes"`
}

// writeManifest records the run next to its output files so the
// destination directory is self-describing.
func (h *Harvester) writeManifest(sum *RunSummary) error {
	m := manifest{
		RunID:     sum.RunID,
		StartedAt: sum.Started,
		ElapsedMS: sum.Elapsed.Milliseconds(),
		Total:     sum.Total,
		Counts: map[string]int{
			models.StatusSaved.String():                sum.Saved,
			models.StatusSkippedTooLarge.String():      sum.TooLarge,
			models.StatusSkippedNoMarker.String():      sum.NoMarker,
			models.StatusSkippedEmpty.String():         sum.Empty,
			models.StatusSkippedInvalidFormat.String(): sum.InvalidFormat,
			models.StatusFailed.String():               sum.Failed,
		},
		Cancelled: sum.Cancelled,
		Outcomes:  sum.Outcomes,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return playlist.WriteAtomic(filepath.Join(h.dir, manifestName), data)
}
