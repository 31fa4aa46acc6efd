package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/voyagen/streamsift/internal/cache"
	"github.com/voyagen/streamsift/internal/config"
	"github.com/voyagen/streamsift/internal/probe"
)

// ProbeRun measures every harvested playlist and promotes the working
// ones into the best directory.
func (r *Runner) ProbeRun(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.setup(cmd)
	if err != nil {
		return err
	}
	applyProbeFlags(cfg, cmd)

	rds, err := r.connectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rds != nil {
		defer rds.Close()
	}

	sel := probe.NewSelector(probe.SelectorOpts{
		Prober:  newProber(cfg),
		Dir:     cfg.Dir,
		BestDir: cfg.Probe.BestDir,
		Workers: cfg.Probe.Workers,
		Redis:   rds,
		Logger:  r.logger,
	})

	rep, err := sel.Select(ctx)
	if err != nil {
		return err
	}

	r.writePlain("%s\n", r.styles.Title("Probe complete"))
	r.writePlain("  %s %d/%d playlists stream at %.0f KB/s or better",
		r.styles.OK("✓"), rep.Passed, rep.Checked, cfg.Probe.MinKBps)
	if rep.Cached > 0 {
		r.writePlain(" %s", r.styles.Help(fmt.Sprintf("(%d from cache)", rep.Cached)))
	}
	r.writePlain("\n")
	for _, f := range rep.Copied {
		r.writePlain("  %s %s\n", r.styles.OK("→"), f)
	}
	if rep.Passed == 0 {
		r.writePlain("  %s nothing worth keeping this round\n", r.styles.Warn("~"))
	}
	return nil
}

// ProbeWorker consumes probe jobs from the Redis queue as harvest
// enqueues them, warming the verdict cache in the background.
func (r *Runner) ProbeWorker(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.setup(cmd)
	if err != nil {
		return err
	}
	applyProbeFlags(cfg, cmd)
	if cfg.RedisURL == "" {
		return config.ErrNoRedisURL
	}

	rds, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rds.Close()

	sel := probe.NewSelector(probe.SelectorOpts{
		Prober:  newProber(cfg),
		Dir:     cfg.Dir,
		BestDir: cfg.Probe.BestDir,
		Workers: cfg.Probe.Workers,
		Redis:   rds,
		Logger:  r.logger,
	})

	queue := cfg.Probe.Queue
	r.logger.Info("probe worker started", "queue", queue)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("probe worker stopping")
			return nil
		default:
		}

		job, err := cache.Dequeue(ctx, rds, queue, 5*time.Second)
		if err != nil {
			r.logger.Error("dequeue", "error", err)
			time.Sleep(2 * time.Second)
			continue
		}
		if job == nil {
			continue // timeout, loop back to check ctx
		}

		v, cached, err := sel.CheckFile(ctx, job.File)
		if err != nil {
			r.logger.Warn("probe job failed", "file", job.File, "error", err)
			continue
		}
		r.logger.Info("probe job done",
			"file", filepath.Base(job.File), "ok", v.OK,
			"kbps", fmt.Sprintf("%.1f", v.KBps), "cached", cached)
	}
}

// connectRedis connects when REDIS_URL is set, nil otherwise.
func (r *Runner) connectRedis(ctx context.Context, cfg *config.Config) (*cache.Redis, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	rds, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rds, nil
}

func newProber(cfg *config.Config) *probe.Prober {
	return probe.New(cfg.UserAgent, cfg.Probe.Window, cfg.Probe.Buffer,
		cfg.Probe.MinKBps, cfg.Probe.DNSServers)
}

func applyProbeFlags(cfg *config.Config, cmd *cli.Command) {
	if v := cmd.String("dir"); v != "" {
		cfg.Dir = v
	}
	if v := cmd.String("best-dir"); v != "" {
		cfg.Probe.BestDir = v
	}
	if v := cmd.Float("min-rate"); v > 0 {
		cfg.Probe.MinKBps = v
	}
	if v := cmd.Duration("window"); v > 0 {
		cfg.Probe.Window = v
	}
	if v := cmd.Duration("buffer"); v > 0 {
		cfg.Probe.Buffer = v
	}
	if v := int(cmd.Int("workers")); v > 0 {
		cfg.Probe.Workers = v
	}
	if v := cmd.StringSlice("dns"); len(v) > 0 {
		cfg.Probe.DNSServers = v
	}
	if v := cmd.String("queue"); v != "" {
		cfg.Probe.Queue = v
	}
}

func probeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "Directory of harvested playlists to verify",
		},
		&cli.StringFlag{
			Name:  "best-dir",
			Usage: "Directory for playlists that pass verification",
		},
		&cli.FloatFlag{
			Name:  "min-rate",
			Usage: "Minimum sustained rate in KB/s",
		},
		&cli.DurationFlag{
			Name:  "window",
			Usage: "How long to watch each stream",
		},
		&cli.DurationFlag{
			Name:  "buffer",
			Usage: "Grace period before the rate floor applies",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Concurrent probes",
		},
		&cli.StringSliceFlag{
			Name:  "dns",
			Usage: "DNS servers to resolve stream hosts with",
		},
	}
}

func probeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Verify that harvested playlists actually stream",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Probe all playlists and copy the good ones to the best directory",
				Flags:  probeFlags(),
				Action: r.ProbeRun,
			},
			{
				Name:  "worker",
				Usage: "Consume probe jobs from the Redis queue",
				Flags: append(probeFlags(), &cli.StringFlag{
					Name:  "queue",
					Usage: "Redis list to consume jobs from",
				}),
				Action: r.ProbeWorker,
			},
		},
	}
}
