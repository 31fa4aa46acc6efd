package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/voyagen/streamsift/internal/cache"
	"github.com/voyagen/streamsift/internal/metrics"
	"github.com/voyagen/streamsift/internal/playlist"
)

// VerdictKeyPrefix namespaces cached verdicts. Harvest invalidates
// them with a pattern delete after producing fresh files.
const VerdictKeyPrefix = "streamsift:probe:"

const verdictTTL = time.Hour

// ErrNoPlayable is returned for a playlist without a single channel URL.
var ErrNoPlayable = errors.New("playlist has no playable channel")

// Selector probes harvested playlists and promotes the working ones.
type Selector struct {
	prober  *Prober
	parser  *playlist.Parser
	rds     *cache.Redis
	workers int
	dir     string
	bestDir string
	logger  *log.Logger
}

// SelectorOpts carries the dependencies for NewSelector. Redis is
// optional; without it every selection pass measures from scratch.
type SelectorOpts struct {
	Prober  *Prober
	Dir     string
	BestDir string
	Workers int
	Redis   *cache.Redis
	Logger  *log.Logger
}

func NewSelector(opts SelectorOpts) *Selector {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Selector{
		prober:  opts.Prober,
		parser:  &playlist.Parser{},
		rds:     opts.Redis,
		workers: workers,
		dir:     opts.Dir,
		bestDir: opts.BestDir,
		logger:  logger,
	}
}

// Report summarizes one selection pass.
type Report struct {
	Checked int
	Passed  int
	Cached  int
	Copied  []string
}

// Select probes every playlist under the source directory and copies
// the passing ones into the best directory as best1.m3u, best2.m3u and
// so on, keeping source index order. The second passing file is also
// written as mvp.m3u.
func (s *Selector) Select(ctx context.Context) (*Report, error) {
	files, err := listPlaylists(s.dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no playlists under %s", s.dir)
	}
	if err := os.MkdirAll(s.bestDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", s.bestDir, err)
	}

	verdicts := make([]Verdict, len(files))
	hits := make([]bool, len(files))
	errs := make([]error, len(files))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			verdicts[i], hits[i], errs[i] = s.CheckFile(ctx, f)
		}(i, f)
	}
	wg.Wait()

	rep := &Report{Checked: len(files)}
	n := 0
	for i, f := range files {
		if errs[i] != nil {
			s.logger.Warn("skipping file", "file", filepath.Base(f), "error", errs[i])
			continue
		}
		if hits[i] {
			rep.Cached++
		}
		v := verdicts[i]
		if !v.OK {
			s.logger.Info("stream rejected",
				"file", filepath.Base(f), "kbps", fmt.Sprintf("%.1f", v.KBps), "reason", v.Reason)
			continue
		}
		rep.Passed++
		n++
		dst := filepath.Join(s.bestDir, fmt.Sprintf("best%d.m3u", n))
		if err := copyPlaylist(f, dst); err != nil {
			s.logger.Error("copy failed", "file", filepath.Base(f), "error", err)
			continue
		}
		rep.Copied = append(rep.Copied, dst)
		s.logger.Info("stream accepted",
			"file", filepath.Base(f), "kbps", fmt.Sprintf("%.1f", v.KBps), "as", filepath.Base(dst))
		if n == 2 {
			mvp := filepath.Join(s.bestDir, "mvp.m3u")
			if err := copyPlaylist(f, mvp); err != nil {
				s.logger.Error("copy failed", "file", "mvp.m3u", "error", err)
			} else {
				rep.Copied = append(rep.Copied, mvp)
			}
		}
	}
	return rep, nil
}

// CheckFile parses one playlist file, takes its first playable
// channel, and measures it. Verdicts are cached so repeated selection
// passes and queue workers share results.
func (s *Selector) CheckFile(ctx context.Context, path string) (Verdict, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Verdict{}, false, err
	}
	pl, err := s.parser.Parse(data)
	if err != nil {
		return Verdict{}, false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	target := ""
	for _, ch := range pl.Channels {
		if ch.URL != "" {
			target = ch.URL
			break
		}
	}
	if target == "" {
		return Verdict{}, false, ErrNoPlayable
	}

	if s.rds != nil {
		v, err := cache.Get[Verdict](ctx, s.rds, VerdictKeyPrefix+target)
		if err == nil {
			return v, true, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("verdict cache read", "error", err)
		}
	}

	v := s.prober.Measure(ctx, target)
	if v.OK {
		metrics.ProbeVerdicts.WithLabelValues("pass").Inc()
	} else {
		metrics.ProbeVerdicts.WithLabelValues("fail").Inc()
	}
	if s.rds != nil {
		if err := cache.Set(ctx, s.rds, VerdictKeyPrefix+target, v, verdictTTL); err != nil {
			s.logger.Warn("verdict cache write", "error", err)
		}
	}
	return v, false, nil
}

// listPlaylists returns the .m3u files under dir ordered by the
// numeric suffix harvest gives them, lexicographic for anything else.
func listPlaylists(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.m3u"))
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		a, b := playlistIndex(files[i]), playlistIndex(files[j])
		if a != b {
			return a < b
		}
		return files[i] < files[j]
	})
	return files, nil
}

func playlistIndex(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".m3u")
	num := strings.TrimPrefix(base, "M3U")
	if num == base {
		return math.MaxInt
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return math.MaxInt
	}
	return n
}

func copyPlaylist(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return playlist.WriteAtomic(dst, data)
}
