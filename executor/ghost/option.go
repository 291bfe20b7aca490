package ghost

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/shlex"
)

// Option is a function that allows configuring the Ghost executor.
type Option func(*Ghost) error

// WithLogger sets the logger used by the Ghost executor.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Ghost) error {
		g.logger = logger.With("component", "executor", "executor_type", "gh-ost")
		return nil
	}
}

// WithBinary sets the path to the gh-ost binary.
func WithBinary(path string) Option {
	return func(g *Ghost) error {
		if path == "" {
			return errors.New("gh-ost binary path is required")
		}
		g.binary = path
		return nil
	}
}

// WithExecute sets whether gh-ost should actually migrate tables. Without it
// gh-ost only performs a noop migration, and every alter operation fails with
// ErrDryRun so the migration stays pending.
func WithExecute(execute bool) Option {
	return func(g *Ghost) error {
		g.execute = execute
		return nil
	}
}

// WithExtraArgs sets additional command line arguments passed to gh-ost. args
// is split using shell quoting rules, e.g.
// `--max-load=Threads_running=25 --chunk-size=500 --allow-on-master`.
func WithExtraArgs(args string) Option {
	return func(g *Ghost) error {
		split, err := shlex.Split(args)
		if err != nil {
			return fmt.Errorf("failed parsing gh-ost arguments: %w", err)
		}
		g.extraArgs = split
		return nil
	}
}

// WithTempDir sets the directory where the temporary gh-ost client
// configuration file is written. It defaults to the system temporary directory.
func WithTempDir(dir string) Option {
	return func(g *Ghost) error {
		g.tempDir = dir
		return nil
	}
}

// WithRunner sets the Runner used to start gh-ost.
func WithRunner(runner Runner) Option {
	return func(g *Ghost) error {
		if runner == nil {
			return errors.New("runner is required")
		}
		g.runner = runner
		return nil
	}
}

// DefaultOptions returns the default Ghost executor options.
func DefaultOptions() []Option {
	return []Option{
		WithLogger(slog.Default()),
		WithBinary("gh-ost"),
		WithRunner(ProcessRunner{}),
	}
}
