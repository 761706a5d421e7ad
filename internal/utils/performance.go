package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// OperationTimer provides a defer-friendly way to time a backend round-trip.
// The returned func logs at debug, or at warn when the call took longer than slow,
// and returns the elapsed time.
//
// Usage:
//
//	done := utils.OperationTimer("batch", 2*time.Second, log)
//	defer done()
func OperationTimer(operation string, slow time.Duration, log zerolog.Logger) func() time.Duration {
	start := time.Now()

	return func() time.Duration {
		duration := time.Since(start)

		event := log.Debug()
		msg := "Operation completed"
		if slow > 0 && duration > slow {
			event = log.Warn()
			msg = "Slow operation detected"
		}
		event.
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg(msg)

		return duration
	}
}
