package ledger

import (
	"fmt"
	"log/slog"
	"time"
)

// Option is a function that allows configuring the Ledger.
type Option func(*Ledger) error

// WithLogger sets the logger used by the Ledger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) error {
		if logger == nil {
			return fmt.Errorf("logger is required")
		}
		l.logger = logger.With("component", "ledger")
		return nil
	}
}

// WithTimeNow sets the function used to retrieve the current time when marking
// records as applied.
func WithTimeNow(timeNowFn func() time.Time) Option {
	return func(l *Ledger) error {
		if timeNowFn == nil {
			return fmt.Errorf("time function is required")
		}
		l.timeNow = timeNowFn
		return nil
	}
}

// DefaultOptions returns the default Ledger options.
func DefaultOptions() []Option {
	return []Option{
		WithLogger(slog.Default()),
		WithTimeNow(time.Now),
	}
}
