package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voyagen/streamsift/internal/models"
)

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// CreateRun inserts the run row at the start of a harvest.
func (p *Postgres) CreateRun(ctx context.Context, run *models.Run) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO runs (id, started_at, sources) VALUES ($1, $2, $3)`,
		run.ID, run.StartedAt, run.Sources,
	)
	if err != nil {
		return fmt.Errorf("CreateRun: %w", err)
	}
	return nil
}

// RecordOutcome appends one source outcome to the run.
func (p *Postgres) RecordOutcome(ctx context.Context, runID string, out *models.Outcome) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO run_sources (run_id, idx, url, status, channels, groups, bytes, file, error, elapsed_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''), NULLIF($9,''), $10)`,
		runID, out.Index, out.URL, int16(out.Status), out.Channels, out.Groups,
		out.Bytes, out.File, out.Error, out.ElapsedMS,
	)
	if err != nil {
		return fmt.Errorf("RecordOutcome: %w", err)
	}
	return nil
}

// FinishRun updates aggregate counts and sets finished_at.
func (p *Postgres) FinishRun(ctx context.Context, run *models.Run) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE runs SET finished_at = NOW(), saved = $2, skipped_too_large = $3,
		   skipped_no_marker = $4, skipped_empty = $5, skipped_invalid = $6,
		   failed = $7, cancelled = $8
		 WHERE id = $1`,
		run.ID, run.Saved, run.TooLarge, run.NoMarker, run.Empty,
		run.InvalidFormat, run.Failed, run.Cancelled,
	)
	if err != nil {
		return fmt.Errorf("FinishRun: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, started_at, finished_at, sources, saved, skipped_too_large,
		   skipped_no_marker, skipped_empty, skipped_invalid, failed, cancelled
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var r models.Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Sources, &r.Saved,
			&r.TooLarge, &r.NoMarker, &r.Empty, &r.InvalidFormat, &r.Failed, &r.Cancelled); err != nil {
			return nil, fmt.Errorf("ListRuns scan: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by id.
func (p *Postgres) GetRun(ctx context.Context, id string) (*models.Run, error) {
	var r models.Run
	err := p.pool.QueryRow(ctx,
		`SELECT id, started_at, finished_at, sources, saved, skipped_too_large,
		   skipped_no_marker, skipped_empty, skipped_invalid, failed, cancelled
		 FROM runs WHERE id = $1`, id).
		Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Sources, &r.Saved,
			&r.TooLarge, &r.NoMarker, &r.Empty, &r.InvalidFormat, &r.Failed, &r.Cancelled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetRun: %w", err)
	}
	return &r, nil
}

// ListOutcomes returns a run's outcomes in source index order.
func (p *Postgres) ListOutcomes(ctx context.Context, runID string) ([]models.Outcome, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT idx, url, status, channels, groups, bytes,
		   COALESCE(file,''), COALESCE(error,''), elapsed_ms
		 FROM run_sources WHERE run_id = $1 ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("ListOutcomes: %w", err)
	}
	defer rows.Close()

	var outs []models.Outcome
	for rows.Next() {
		var o models.Outcome
		var status int16
		if err := rows.Scan(&o.Index, &o.URL, &status, &o.Channels, &o.Groups,
			&o.Bytes, &o.File, &o.Error, &o.ElapsedMS); err != nil {
			return nil, fmt.Errorf("ListOutcomes scan: %w", err)
		}
		o.Status = models.Status(status)
		outs = append(outs, o)
	}
	return outs, rows.Err()
}
