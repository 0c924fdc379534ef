// Package events defines the structured transition events the execution
// coordinator publishes. The embedding process decides how to render them;
// the coordinator never formats user-facing text itself.
package events

import (
	"log/slog"
	"time"

	"github.com/vk/bootflow/internal/report"
)

// Event describes one job state transition.
type Event struct {
	JobID string
	From  report.State
	To    report.State
	// Err carries the failure or skip reason for Failed and Skipped
	// transitions, nil otherwise.
	Err error
	At  time.Time
}

// Sink receives coordinator events. Implementations must be safe for
// concurrent use; workers publish from multiple goroutines.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Publish implements Sink.
func (f SinkFunc) Publish(e Event) { f(e) }

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// NewLogSink returns a Sink that renders events through the given slog
// logger. Terminal failure states log at Warn, everything else at Info.
func NewLogSink(logger *slog.Logger) Sink {
	return SinkFunc(func(e Event) {
		attrs := []any{"job", e.JobID, "from", string(e.From), "to", string(e.To)}
		if e.Err != nil {
			attrs = append(attrs, "reason", e.Err.Error())
		}
		switch e.To {
		case report.Failed:
			logger.Warn("Job transitioned.", attrs...)
		case report.Skipped:
			logger.Info("Job skipped.", attrs...)
		default:
			logger.Info("Job transitioned.", attrs...)
		}
	})
}
