package scheduler

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ratco/ratco/internal/event"
	"github.com/ratco/ratco/internal/logging"
	"github.com/ratco/ratco/internal/project"
	"github.com/ratco/ratco/internal/team"
)

// Saver persists a checkpoint. checkpoint.Checkpointer satisfies it.
type Saver interface {
	Save(location string, roster team.Roster, state *project.State) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBus sets the event bus lifecycle events are published on.
func WithBus(bus *event.Bus) Option {
	return func(s *Scheduler) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// WithTracer sets the tracer used for round and turn spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scheduler) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithSettings sets the run settings handed to every turn.
func WithSettings(settings project.Settings) Option {
	return func(s *Scheduler) {
		s.settings = settings
	}
}

// WithRunID tags turns and log entries with the run ID.
func WithRunID(id string) Option {
	return func(s *Scheduler) {
		s.runID = id
	}
}

// WithCheckpoint sets where checkpoints are saved on request and on
// cancellation.
func WithCheckpoint(saver Saver, location string) Option {
	return func(s *Scheduler) {
		s.saver = saver
		s.location = location
	}
}

// WithCheckpointRetry bounds the cancellation save: at most attempts tries
// with exponential backoff starting at initial.
func WithCheckpointRetry(attempts int, initial time.Duration) Option {
	return func(s *Scheduler) {
		if attempts > 0 {
			s.saveAttempts = attempts
		}
		if initial > 0 {
			s.saveBackoff = initial
		}
	}
}

// WithTurnTimeout bounds every turn. Zero disables the timeout.
func WithTurnTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.turnTimeout = d
	}
}
