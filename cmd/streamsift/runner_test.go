package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/voyagen/streamsift/internal/config"
	"github.com/voyagen/streamsift/internal/models"
	"github.com/voyagen/streamsift/internal/service"
)

func TestNewRunner(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		if runner.logger == nil {
			t.Error("expected a default logger")
		}
		if runner.output != os.Stdout {
			t.Error("expected stdout as default output")
		}
		if runner.styles == nil {
			t.Error("expected the default palette")
		}
	})

	t.Run("uses provided options", func(t *testing.T) {
		logger := log.New(io.Discard)
		var buf bytes.Buffer
		runner := NewRunner(RunnerOpts{Logger: logger, Output: &buf})
		if runner.logger != logger {
			t.Error("expected the provided logger")
		}
		if runner.output != &buf {
			t.Error("expected the provided output")
		}
	})
}

func TestRegister(t *testing.T) {
	runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard)})
	commands := runner.register()

	names := make([]string, 0, len(commands))
	for _, cmd := range commands {
		names = append(names, cmd.Name)
	}
	want := []string{"harvest", "probe", "runs"}
	if len(names) != len(want) {
		t.Fatalf("expected commands %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("command %d: expected %s, got %s", i, want[i], names[i])
		}
	}

	t.Run("harvest is a leaf command", func(t *testing.T) {
		if commands[0].Action == nil {
			t.Error("harvest has no action")
		}
		if len(commands[0].Flags) == 0 {
			t.Error("harvest has no flags")
		}
	})

	t.Run("probe and runs have subcommands", func(t *testing.T) {
		sub := func(cmd int) []string {
			var names []string
			for _, c := range commands[cmd].Commands {
				names = append(names, c.Name)
			}
			return names
		}
		if got := sub(1); len(got) != 2 || got[0] != "run" || got[1] != "worker" {
			t.Errorf("unexpected probe subcommands %v", got)
		}
		if got := sub(2); len(got) != 2 || got[0] != "list" || got[1] != "show" {
			t.Errorf("unexpected runs subcommands %v", got)
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestWritePlain(t *testing.T) {
	t.Run("formats to the configured writer", func(t *testing.T) {
		var buf bytes.Buffer
		runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: &buf})
		if err := runner.writePlain("%d sources\n", 7); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.String() != "7 sources\n" {
			t.Errorf("unexpected output %q", buf.String())
		}
	})

	t.Run("reports write failures", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: failingWriter{}})
		err := runner.writePlain("anything")
		if err == nil || !strings.Contains(err.Error(), "failed to write output") {
			t.Errorf("unexpected error %v", err)
		}
	})
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: &buf})
	cfg := &config.Config{Dir: "specialiptvs"}

	sum := &service.RunSummary{
		Total:         7,
		Saved:         2,
		TooLarge:      1,
		NoMarker:      1,
		Empty:         1,
		InvalidFormat: 1,
		Failed:        1,
		Elapsed:       1234 * time.Millisecond,
	}
	runner.renderSummary(cfg, sum)

	out := buf.String()
	for _, want := range []string{
		"Harvest complete",
		"2/7 sources saved",
		"4 skipped (1 too large, 1 no marker, 1 empty, 1 invalid)",
		"1 failed",
		"harvest_manifest.json",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "cancelled") {
		t.Error("summary mentions cancellation for a completed run")
	}

	t.Run("cancelled run is called out", func(t *testing.T) {
		buf.Reset()
		sum.Cancelled = true
		runner.renderSummary(cfg, sum)
		if !strings.Contains(buf.String(), "cancelled") {
			t.Error("summary missing cancellation notice")
		}
	})
}

func TestStyleStatus(t *testing.T) {
	runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard)})
	for _, s := range []models.Status{models.StatusSaved, models.StatusFailed, models.StatusSkippedNoMarker} {
		if got := runner.styleStatus(s); !strings.Contains(got, s.String()) {
			t.Errorf("styled status %v lost its text: %q", s, got)
		}
	}
}
