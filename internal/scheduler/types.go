package scheduler

import (
	"time"

	"github.com/ratco/ratco/internal/project"
)

// MinRoundsWithQA is the round floor applied when the roster contains a
// QA engineer.
const MinRoundsWithQA = 8

// State is the scheduler's lifecycle state.
type State string

const (
	StatePending         State = "pending"
	StateRunning         State = "running"
	StateCompleted       State = "completed"
	StateBudgetHalted    State = "budget_halted"
	StateRoundsExhausted State = "rounds_exhausted"
	// StateCancelled is reached when the caller's context is cancelled
	// between rounds and a checkpoint has been saved.
	StateCancelled State = "cancelled"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true if the scheduler can no longer leave this state.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateBudgetHalted, StateRoundsExhausted, StateCancelled:
		return true
	}
	return false
}

// Result is the report of a finished run.
type Result struct {
	Outcome State
	// Rounds is how many rounds ran in this invocation.
	Rounds int
	// MaxRounds is the effective round bound after the QA floor.
	MaxRounds int
	// State is a snapshot of the final project state.
	State *project.State
	// CheckpointSaved reports whether a checkpoint was written during the
	// run (on request or on cancellation).
	CheckpointSaved bool
	Duration        time.Duration
}

// roundStats counts turn outcomes within a round.
type roundStats struct {
	turns   int
	failed  int
	blocked int
}
