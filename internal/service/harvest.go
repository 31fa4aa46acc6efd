// Package service runs the harvest pipeline: fetch each source under a
// bounded worker pool, parse and filter it, reorder its groups, and
// commit accepted documents atomically.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/voyagen/streamsift/internal/cache"
	"github.com/voyagen/streamsift/internal/fetcher"
	"github.com/voyagen/streamsift/internal/metrics"
	"github.com/voyagen/streamsift/internal/models"
	"github.com/voyagen/streamsift/internal/playlist"
	"github.com/voyagen/streamsift/internal/store"
)

// Harvester owns one harvest run's collaborators. Store, Redis, and
// Tracker are optional; a nil value disables that concern.
type Harvester struct {
	fetch   *fetcher.Client
	parser  *playlist.Parser
	dir     string
	workers int
	limiter *rate.Limiter
	catalog store.Store
	rds     *cache.Redis
	queue   string
	tracker *Tracker
	logger  *log.Logger
}

// HarvesterOpts configures NewHarvester.
type HarvesterOpts struct {
	Fetcher *fetcher.Client
	Parser  *playlist.Parser
	Dir     string
	Workers int
	Rate    float64 // fetch dispatches per second, 0 = unlimited
	Store   store.Store
	Redis   *cache.Redis
	Queue   string
	Tracker *Tracker
	Logger  *log.Logger
}

func NewHarvester(opts HarvesterOpts) *Harvester {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}
	return &Harvester{
		fetch:   opts.Fetcher,
		parser:  opts.Parser,
		dir:     opts.Dir,
		workers: opts.Workers,
		limiter: limiter,
		catalog: opts.Store,
		rds:     opts.Redis,
		queue:   opts.Queue,
		tracker: opts.Tracker,
		logger:  opts.Logger,
	}
}

// outputName is the deterministic file name for a source's playlist.
func outputName(index int) string {
	return "M3U" + strconv.Itoa(index) + ".m3u"
}

// processSource runs one source's full sequence and stamps timing.
func (h *Harvester) processSource(src models.Source) models.Outcome {
	start := time.Now()
	metrics.SourcesInFlight.Inc()
	out := h.runSequence(src)
	metrics.SourcesInFlight.Dec()
	elapsed := time.Since(start)
	metrics.FetchDuration.Observe(elapsed.Seconds())
	out.ElapsedMS = elapsed.Milliseconds()
	return out
}

// runSequence is the per-source pipeline with its short-circuit
// acceptance order: too large, invalid format, empty, missing marker,
// then write. A cancelled run never aborts a sequence already here;
// the fetch owns its deadline via the client timeout.
func (h *Harvester) runSequence(src models.Source) models.Outcome {
	out := models.Outcome{Index: src.Index, URL: src.URL, Status: models.StatusFailed}

	res, err := h.fetch.Fetch(context.Background(), src.URL)
	if err != nil {
		switch {
		case errors.Is(err, fetcher.ErrTooLarge):
			out.Status = models.StatusSkippedTooLarge
		case errors.Is(err, fetcher.ErrEmptyBody):
			out.Status = models.StatusSkippedEmpty
		default:
			out.Status = models.StatusFailed
			out.Error = err.Error()
		}
		return out
	}
	out.Bytes = res.BytesRead
	metrics.FetchedBytes.Add(float64(res.BytesRead))
	if res.Incomplete {
		h.logger.Warn("incomplete body, processing what arrived",
			"index", src.Index, "received", res.BytesRead, "declared", res.DeclaredLength)
	}

	pl, err := h.parser.Parse(res.Body)
	if err != nil {
		if errors.Is(err, playlist.ErrInvalidFormat) {
			out.Status = models.StatusSkippedInvalidFormat
		} else {
			out.Status = models.StatusFailed
			out.Error = err.Error()
		}
		return out
	}
	out.Channels = len(pl.Channels)
	out.Groups = len(pl.Groups)

	if len(pl.Channels) == 0 {
		out.Status = models.StatusSkippedEmpty
		return out
	}
	if !pl.HasMarker {
		out.Status = models.StatusSkippedNoMarker
		return out
	}

	order := playlist.OrderGroups(pl.Groups)
	data, written, eligible := playlist.Render(pl, order)
	if written != eligible {
		h.logger.Warn("serialized record count differs from eligible count",
			"index", src.Index, "written", written, "eligible", eligible)
	}

	name := outputName(src.Index)
	if err := playlist.WriteAtomic(filepath.Join(h.dir, name), data); err != nil {
		out.Status = models.StatusFailed
		out.Error = fmt.Sprintf("write %s: %v", name, err)
		return out
	}
	metrics.ChannelsWritten.Add(float64(written))

	out.Status = models.StatusSaved
	out.File = name
	return out
}
