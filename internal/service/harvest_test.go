package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/voyagen/streamsift/internal/fetcher"
	"github.com/voyagen/streamsift/internal/models"
	"github.com/voyagen/streamsift/internal/playlist"
)

const goodDoc = "#EXTM3U\n" +
	"#EXTINF:-1 group-title=\"News\",CNN\nhttp://host/cnn\n" +
	"#EXTINF:-1 group-title=\"BeIN Sports\",BeIN 1\nhttp://host/bein1\n"

const noMarkerDoc = "#EXTM3U\n" +
	"#EXTINF:-1 group-title=\"Movies\",Film\nhttp://host/film\n"

func newPipelineServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/good1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, goodDoc)
	})
	mux.HandleFunc("/good2", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, goodDoc)
	})
	mux.HandleFunc("/nomarker", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, noMarkerDoc)
	})
	mux.HandleFunc("/invalid", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>login required</html>")
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "#EXTM3U\n")
	})
	mux.HandleFunc("/toolarge", func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 4; i++ {
			io.WriteString(w, strings.Repeat("x", 1024))
			flusher.Flush()
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestHarvester(dir string, workers int, tracker *Tracker) *Harvester {
	return NewHarvester(HarvesterOpts{
		Fetcher: fetcher.New("test-agent", 5*time.Second, 2048),
		Parser:  &playlist.Parser{Marker: "bein"},
		Dir:     dir,
		Workers: workers,
		Tracker: tracker,
		Logger:  log.New(io.Discard),
	})
}

func TestHarvesterRun(t *testing.T) {
	srv := newPipelineServer(t)
	dir := filepath.Join(t.TempDir(), "out")
	tracker := NewTracker()
	h := newTestHarvester(dir, 4, tracker)

	list := []models.Source{
		{Index: 1, URL: srv.URL + "/good1"},
		{Index: 2, URL: srv.URL + "/good2"},
		{Index: 3, URL: srv.URL + "/nomarker"},
		{Index: 4, URL: srv.URL + "/invalid"},
		{Index: 5, URL: srv.URL + "/empty"},
		{Index: 6, URL: srv.URL + "/toolarge"},
		{Index: 7, URL: srv.URL + "/missing"},
	}

	sum, err := h.Run(context.Background(), list)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sum.Total != 7 {
		t.Errorf("expected total 7, got %d", sum.Total)
	}
	if sum.Saved != 2 || sum.NoMarker != 1 || sum.InvalidFormat != 1 ||
		sum.Empty != 1 || sum.TooLarge != 1 || sum.Failed != 1 {
		t.Errorf("unexpected counts %+v", sum)
	}
	if sum.Cancelled {
		t.Error("run flagged cancelled")
	}
	if len(sum.Outcomes) != 7 {
		t.Fatalf("expected 7 outcomes, got %d", len(sum.Outcomes))
	}

	t.Run("saved files exist with ordered groups", func(t *testing.T) {
		for _, name := range []string{"M3U1.m3u", "M3U2.m3u"} {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				t.Fatalf("reading %s: %v", name, err)
			}
			text := string(data)
			if !strings.HasPrefix(text, "#EXTM3U\n") {
				t.Errorf("%s missing header", name)
			}
			bein := strings.Index(text, "BeIN Sports")
			news := strings.Index(text, "News")
			if bein < 0 || news < 0 || bein > news {
				t.Errorf("%s groups not reordered: bein at %d, news at %d", name, bein, news)
			}
		}
	})

	t.Run("skipped sources leave no files", func(t *testing.T) {
		for _, name := range []string{"M3U3.m3u", "M3U4.m3u", "M3U5.m3u", "M3U6.m3u", "M3U7.m3u"} {
			if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
				t.Errorf("unexpected file %s", name)
			}
		}
	})

	t.Run("outcome detail per status", func(t *testing.T) {
		byIndex := make(map[int]models.Outcome, len(sum.Outcomes))
		for _, out := range sum.Outcomes {
			byIndex[out.Index] = out
		}

		if out := byIndex[1]; out.Status != models.StatusSaved || out.File != "M3U1.m3u" ||
			out.Channels != 2 || out.Groups != 2 || out.Bytes == 0 {
			t.Errorf("unexpected saved outcome %+v", out)
		}
		if out := byIndex[3]; out.Status != models.StatusSkippedNoMarker || out.Channels != 1 {
			t.Errorf("unexpected no-marker outcome %+v", out)
		}
		if out := byIndex[4]; out.Status != models.StatusSkippedInvalidFormat || out.Error != "" {
			t.Errorf("unexpected invalid-format outcome %+v", out)
		}
		if out := byIndex[5]; out.Status != models.StatusSkippedEmpty {
			t.Errorf("unexpected empty outcome %+v", out)
		}
		if out := byIndex[6]; out.Status != models.StatusSkippedTooLarge {
			t.Errorf("unexpected too-large outcome %+v", out)
		}
		if out := byIndex[7]; out.Status != models.StatusFailed || !strings.Contains(out.Error, "404") {
			t.Errorf("unexpected failed outcome %+v", out)
		}
	})

	t.Run("manifest describes the run", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, manifestName))
		if err != nil {
			t.Fatalf("reading manifest: %v", err)
		}
		var m manifest
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decoding manifest: %v", err)
		}
		if m.RunID != sum.RunID {
			t.Errorf("expected run id %s, got %s", sum.RunID, m.RunID)
		}
		if m.Total != 7 || m.Counts["saved"] != 2 || m.Counts["failed"] != 1 {
			t.Errorf("unexpected manifest %+v", m)
		}
		if len(m.Outcomes) != 7 {
			t.Errorf("expected 7 manifest outcomes, got %d", len(m.Outcomes))
		}
	})

	t.Run("tracker reflects the finished run", func(t *testing.T) {
		snap := tracker.Snapshot()
		if snap.Active {
			t.Error("tracker still active")
		}
		if snap.RunID != sum.RunID || snap.Total != 7 || snap.Processed != 7 {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if snap.Counts["saved"] != 2 {
			t.Errorf("expected 2 saved in counts, got %d", snap.Counts["saved"])
		}
	})
}

func TestHarvesterRunCancelled(t *testing.T) {
	srv := newPipelineServer(t)
	dir := filepath.Join(t.TempDir(), "out")
	tracker := NewTracker()
	h := newTestHarvester(dir, 2, tracker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	list := []models.Source{
		{Index: 1, URL: srv.URL + "/good1"},
		{Index: 2, URL: srv.URL + "/good2"},
		{Index: 3, URL: srv.URL + "/nomarker"},
	}
	sum, err := h.Run(ctx, list)
	if err != nil {
		t.Fatalf("cancellation should not be an error: %v", err)
	}
	if !sum.Cancelled {
		t.Error("expected cancelled summary")
	}
	if len(sum.Outcomes) > len(list) {
		t.Errorf("more outcomes than sources: %d", len(sum.Outcomes))
	}
	if !tracker.Snapshot().Cancelled {
		t.Error("tracker missed cancellation")
	}
}

func TestHarvesterRunBadDestination(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "occupied")
	if err := os.WriteFile(blocked, []byte("file"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := newTestHarvester(blocked, 1, nil)
	if _, err := h.Run(context.Background(), nil); err == nil {
		t.Fatal("expected error when destination is a file")
	}
}

func TestOutputName(t *testing.T) {
	if got := outputName(1); got != "M3U1.m3u" {
		t.Errorf("expected M3U1.m3u, got %q", got)
	}
	if got := outputName(42); got != "M3U42.m3u" {
		t.Errorf("expected M3U42.m3u, got %q", got)
	}
}
