package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/voyagen/streamsift/internal/config"
	"github.com/voyagen/streamsift/internal/ui"
)

// Runner holds shared dependencies for CLI commands and provides a
// method for each command action.
type Runner struct {
	logger *log.Logger
	output io.Writer
	styles *ui.Palette
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided options.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = ui.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{logger: opts.Logger, output: opts.Output, styles: ui.Styles}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		harvestCommand, probeCommand, runsCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// setup applies the global logging flags and loads configuration.
func (r *Runner) setup(cmd *cli.Command) (*config.Config, error) {
	if cmd.Bool("debug") {
		r.logger.SetLevel(log.DebugLevel)
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
