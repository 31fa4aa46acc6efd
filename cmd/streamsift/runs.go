package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/voyagen/streamsift/internal/config"
	"github.com/voyagen/streamsift/internal/models"
)

// RunsList prints recent harvest runs from the catalog.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.setup(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return config.ErrNoDatabaseURL
	}

	pg, err := r.openCatalog(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer pg.Close()

	runs, err := pg.ListRuns(ctx, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		r.writePlain("%s\n", r.styles.Help("no runs recorded yet"))
		return nil
	}

	r.writePlain("%s\n", r.styles.Title("Recent runs"))
	for _, run := range runs {
		state := r.styles.OK("done")
		switch {
		case run.FinishedAt == nil:
			state = r.styles.Warn("running")
		case run.Cancelled:
			state = r.styles.Warn("cancelled")
		}
		r.writePlain("  %s  %s  %d sources, %d saved, %d failed  %s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"), run.ID,
			run.Sources, run.Saved, run.Failed, state)
	}
	return nil
}

// RunsShow prints one run and its per-source outcomes.
func (r *Runner) RunsShow(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.setup(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return config.ErrNoDatabaseURL
	}
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("run id is required")
	}

	pg, err := r.openCatalog(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer pg.Close()

	run, err := pg.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	outcomes, err := pg.ListOutcomes(ctx, id)
	if err != nil {
		return fmt.Errorf("list outcomes: %w", err)
	}

	r.writePlain("%s\n", r.styles.Title("Run "+run.ID))
	r.writePlain("  started   %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		r.writePlain("  finished  %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	r.writePlain("  sources   %d (%d saved, %d too large, %d no marker, %d empty, %d invalid, %d failed)\n",
		run.Sources, run.Saved, run.TooLarge, run.NoMarker, run.Empty, run.InvalidFormat, run.Failed)
	if run.Cancelled {
		r.writePlain("  %s\n", r.styles.Warn("cancelled before completion"))
	}

	if len(outcomes) > 0 {
		r.writePlain("\n")
		for _, out := range outcomes {
			detail := out.File
			if out.Status == models.StatusFailed {
				detail = out.Error
			}
			if detail == "" {
				detail = out.URL
			}
			r.writePlain("  %3d  %-22s  %s\n", out.Index, r.styleStatus(out.Status), detail)
		}
	}
	return nil
}

func (r *Runner) styleStatus(s models.Status) string {
	switch s {
	case models.StatusSaved:
		return r.styles.OK(s.String())
	case models.StatusFailed:
		return r.styles.Err(s.String())
	default:
		return r.styles.Warn(s.String())
	}
}

func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect the run catalog",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent harvest runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to return",
						Value: 20,
					},
				},
				Action: r.RunsList,
			},
			{
				Name:  "show",
				Usage: "Show one run with its per-source outcomes",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.RunsShow,
			},
		},
	}
}
