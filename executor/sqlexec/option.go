package sqlexec

import (
	"errors"
	"log/slog"
	"time"
)

// Option is a function that allows configuring the SQL executor.
type Option func(*SQL) error

// WithLogger sets the logger used by the SQL executor.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQL) error {
		s.logger = logger.With("component", "executor", "executor_type", "sql")
		return nil
	}
}

// WithTimeout limits the time a single statement is allowed to run. A zero
// value disables the limit.
func WithTimeout(timeout time.Duration) Option {
	return func(s *SQL) error {
		if timeout < 0 {
			return errors.New("timeout must not be negative")
		}
		s.timeout = timeout
		return nil
	}
}

// DefaultOptions returns the default SQL executor options.
func DefaultOptions() []Option {
	return []Option{
		WithLogger(slog.Default()),
	}
}
