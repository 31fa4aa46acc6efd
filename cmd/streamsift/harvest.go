package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/voyagen/streamsift/internal/cache"
	"github.com/voyagen/streamsift/internal/config"
	"github.com/voyagen/streamsift/internal/fetcher"
	"github.com/voyagen/streamsift/internal/playlist"
	"github.com/voyagen/streamsift/internal/probe"
	"github.com/voyagen/streamsift/internal/server"
	"github.com/voyagen/streamsift/internal/service"
	"github.com/voyagen/streamsift/internal/sources"
	"github.com/voyagen/streamsift/internal/store"
)

const harvestLockTTL = 2 * time.Hour

// Harvest fetches every source, filters by marker, and writes the
// accepted playlists.
func (r *Runner) Harvest(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.setup(cmd)
	if err != nil {
		return err
	}
	if v := cmd.String("input"); v != "" {
		cfg.SourcesFile = v
	}
	if v := cmd.String("dir"); v != "" {
		cfg.Dir = v
	}
	if v := cmd.String("marker"); v != "" {
		cfg.Marker = v
	}
	if v := int(cmd.Int("workers")); v > 0 {
		cfg.Workers = v
	}
	if v := cmd.Float("rate"); v > 0 {
		cfg.Rate = v
	}
	if v := cmd.String("metrics"); v != "" {
		cfg.MetricsAddr = v
	}

	list, rejected, err := sources.Load(cfg.SourcesFile)
	if err != nil {
		return fmt.Errorf("sources: %w", err)
	}
	for _, line := range rejected {
		r.logger.Warn("ignoring source line", "line", line)
	}
	if len(list) == 0 {
		return fmt.Errorf("no usable sources in %s", cfg.SourcesFile)
	}

	if cmd.Bool("fresh") {
		r.logger.Info("clearing destination", "dir", cfg.Dir)
		if err := os.RemoveAll(cfg.Dir); err != nil {
			return fmt.Errorf("clear destination: %w", err)
		}
	}

	catalog, err := r.openCatalog(ctx, cfg, true)
	if err != nil {
		return err
	}
	var cat store.Store
	if catalog != nil {
		defer catalog.Close()
		cat = catalog
	} else {
		r.logger.Info("run catalog disabled (DATABASE_URL not set)")
	}

	var rds *cache.Redis
	if cfg.RedisURL != "" {
		rds, err = cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rds.Close()

		unlock, err := cache.TryLock(ctx, rds, "streamsift:harvest:"+cfg.Dir, harvestLockTTL)
		if err != nil {
			if err == cache.ErrLocked {
				return fmt.Errorf("another harvest is already writing to %s", cfg.Dir)
			}
			return fmt.Errorf("harvest lock: %w", err)
		}
		defer unlock()
	} else {
		r.logger.Info("redis disabled (REDIS_URL not set)")
	}

	tracker := service.NewTracker()
	if cfg.MetricsAddr != "" {
		srv := server.New(tracker, cat, cfg.MetricsAddr, r.logger)
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				r.logger.Error("monitor server", "error", err)
			}
		}()
	}

	h := service.NewHarvester(service.HarvesterOpts{
		Fetcher: fetcher.New(cfg.UserAgent, cfg.Timeout, cfg.MaxBytes),
		Parser:  &playlist.Parser{Marker: cfg.Marker},
		Dir:     cfg.Dir,
		Workers: cfg.Workers,
		Rate:    cfg.Rate,
		Store:   cat,
		Redis:   rds,
		Queue:   cfg.Probe.Queue,
		Tracker: tracker,
		Logger:  r.logger,
	})

	sum, err := h.Run(ctx, list)
	if err != nil {
		return err
	}

	// Fresh files invalidate every cached stream verdict.
	if rds != nil && sum.Saved > 0 {
		if err := cache.DelPattern(context.Background(), rds, probe.VerdictKeyPrefix+"*"); err != nil {
			r.logger.Warn("verdict cache invalidation", "error", err)
		}
	}

	r.renderSummary(cfg, sum)
	return nil
}

func (r *Runner) renderSummary(cfg *config.Config, sum *service.RunSummary) {
	r.writePlain("%s\n", r.styles.Title("Harvest complete"))
	r.writePlain("  %s %d/%d sources saved in %s\n",
		r.styles.OK("✓"), sum.Saved, sum.Total, sum.Elapsed.Round(time.Millisecond))
	if skipped := sum.TooLarge + sum.NoMarker + sum.Empty + sum.InvalidFormat; skipped > 0 {
		r.writePlain("  %s %d skipped (%d too large, %d no marker, %d empty, %d invalid)\n",
			r.styles.Warn("~"), skipped, sum.TooLarge, sum.NoMarker, sum.Empty, sum.InvalidFormat)
	}
	if sum.Failed > 0 {
		r.writePlain("  %s %d failed\n", r.styles.Err("✗"), sum.Failed)
	}
	if sum.Cancelled {
		r.writePlain("  %s cancelled before all sources were processed\n", r.styles.Warn("!"))
	}
	r.writePlain("%s\n", r.styles.Help(fmt.Sprintf("playlists in %s/, manifest in %s",
		cfg.Dir, filepath.Join(cfg.Dir, "harvest_manifest.json"))))
}

// openCatalog connects to Postgres when DATABASE_URL is configured,
// optionally running migrations first. Returns nil without error when
// no database is configured.
func (r *Runner) openCatalog(ctx context.Context, cfg *config.Config, migrate bool) (*store.Postgres, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	if migrate {
		if err := store.Ping(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		if err := store.RunMigrations(cfg.DatabaseURL, migrationsURL()); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	return pg, nil
}

// migrationsURL resolves the migrations directory, falling back to the
// directory next to the executable for installed binaries.
func migrationsURL() string {
	abs, err := filepath.Abs("migrations")
	if err != nil {
		abs = "migrations"
	}
	if _, err := os.Stat(abs); err != nil {
		if exe, e := os.Executable(); e == nil {
			abs = filepath.Join(filepath.Dir(exe), "migrations")
		}
	}
	return "file://" + abs
}

func harvestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "harvest",
		Usage: "Fetch sources, filter by marker, and write playlists",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Sources file, one URL per line",
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Destination directory for accepted playlists",
			},
			&cli.StringFlag{
				Name:    "marker",
				Aliases: []string{"m"},
				Usage:   "Substring a playlist's groups must contain (case-insensitive)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Concurrent fetch workers",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Fetch starts per second (0 = unlimited)",
			},
			&cli.BoolFlag{
				Name:  "fresh",
				Usage: "Delete the destination directory before harvesting",
			},
			&cli.StringFlag{
				Name:  "metrics",
				Usage: "Serve the monitoring API on this address (e.g. :9090)",
			},
		},
		Action: r.Harvest,
	}
}
