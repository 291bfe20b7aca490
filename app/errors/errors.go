// Package errors contains error types and helpers for reporting errors to the
// user.
package errors

import (
	"errors"
	"log/slog"
	"maps"
	"slices"
)

// Log logs an error using the given logger. Metadata of the first
// StructuredError in the error chain is rendered as log fields, while the
// message is taken from the outermost error, so wrapping context isn't lost.
func Log(logger *slog.Logger, err error) {
	var serr *StructuredError
	if !errors.As(err, &serr) {
		logger.Error(err.Error())
		return
	}

	args := make([]any, 0, len(serr.metadata)*2+2)

	cause := serr.metadata["cause"]
	if serr.cause != nil {
		cause = serr.cause
	}
	if cause != nil {
		args = append(args, "cause", cause)
	}

	for _, k := range slices.Sorted(maps.Keys(serr.metadata)) {
		if k != "cause" {
			args = append(args, k, serr.metadata[k])
		}
	}

	logger.Error(err.Error(), args...)
}
