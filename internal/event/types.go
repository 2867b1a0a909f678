// Package event defines the run lifecycle events published by the scheduler
// and orchestrator.
package event

import (
	"log/slog"
	"time"
)

// Event type identifiers. Convention: "category.action".
const (
	TypeRunStarted      = "run.started"
	TypeRunFinished     = "run.finished"
	TypeRoundStarted    = "round.started"
	TypeRoundCompleted  = "round.completed"
	TypeTurnCompleted   = "turn.completed"
	TypeTurnFailed      = "turn.failed"
	TypeTurnBlocked     = "turn.blocked"
	TypeBudgetWarning   = "budget.warning"
	TypeBudgetExceeded  = "budget.exceeded"
	TypeCheckpointSaved = "checkpoint.saved"
)

// Event is the interface that all events must implement.
type Event interface {
	EventType() string
	Timestamp() time.Time
	// LogAttrs returns the event's fields as structured log attributes.
	LogAttrs() []slog.Attr
}

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Run Lifecycle Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted once the roster is fixed and the ledger funded.
type RunStartedEvent struct {
	baseEvent
	RunID      string
	Idea       string
	Roster     string
	MaxRounds  int
	Investment float64
	Recovered  bool
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID, idea, roster string, maxRounds int, investment float64, recovered bool) RunStartedEvent {
	return RunStartedEvent{
		baseEvent:  newBaseEvent(TypeRunStarted),
		RunID:      runID,
		Idea:       idea,
		Roster:     roster,
		MaxRounds:  maxRounds,
		Investment: investment,
		Recovered:  recovered,
	}
}

func (e RunStartedEvent) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("run_id", e.RunID),
		slog.String("roster", e.Roster),
		slog.Int("max_rounds", e.MaxRounds),
		slog.Float64("investment", e.Investment),
		slog.Bool("recovered", e.Recovered),
	}
}

// RunFinishedEvent is emitted when the scheduler reaches a terminal state.
type RunFinishedEvent struct {
	baseEvent
	RunID   string
	Outcome string
	Rounds  int
	Spent   float64
}

// NewRunFinishedEvent creates a RunFinishedEvent.
func NewRunFinishedEvent(runID, outcome string, rounds int, spent float64) RunFinishedEvent {
	return RunFinishedEvent{
		baseEvent: newBaseEvent(TypeRunFinished),
		RunID:     runID,
		Outcome:   outcome,
		Rounds:    rounds,
		Spent:     spent,
	}
}

func (e RunFinishedEvent) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("run_id", e.RunID),
		slog.String("outcome", e.Outcome),
		slog.Int("rounds", e.Rounds),
		slog.Float64("spent", e.Spent),
	}
}

// -----------------------------------------------------------------------------
// Round Events
// -----------------------------------------------------------------------------

// RoundStartedEvent is emitted before the first turn of a round.
type RoundStartedEvent struct {
	baseEvent
	Round     int
	Remaining float64
}

// NewRoundStartedEvent creates a RoundStartedEvent.
func NewRoundStartedEvent(round int, remaining float64) RoundStartedEvent {
	return RoundStartedEvent{
		baseEvent: newBaseEvent(TypeRoundStarted),
		Round:     round,
		Remaining: remaining,
	}
}

func (e RoundStartedEvent) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("round", e.Round),
		slog.Float64("remaining", e.Remaining),
	}
}

// RoundCompletedEvent is emitted after the round counter is incremented.
type RoundCompletedEvent struct {
	baseEvent
	Round     int
	Turns     int
	Failed    int
	Blocked   int
	Spent     float64
	Completed bool
}

// NewRoundCompletedEvent creates a RoundCompletedEvent.
func NewRoundCompletedEvent(round, turns, failed, blocked int, spent float64, completed bool) RoundCompletedEvent {
	return RoundCompletedEvent{
		baseEvent: newBaseEvent(TypeRoundCompleted),
		Round:     round,
		Turns:     turns,
		Failed:    failed,
		Blocked:   blocked,
		Spent:     spent,
		Completed: completed,
	}
}

func (e RoundCompletedEvent) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("round", e.Round),
		slog.Int("turns", e.Turns),
		slog.Int("failed", e.Failed),
		slog.Int("blocked", e.Blocked),
		slog.Float64("spent", e.Spent),
		slog.Bool("completed", e.Completed),
	}
}

// -----------------------------------------------------------------------------
// Turn Events
// -----------------------------------------------------------------------------

// TurnCompletedEvent is emitted when a turn's result has been committed.
type TurnCompletedEvent struct {
	baseEvent
	Round    int
	Role     string
	Cost     float64
	Subtasks int
}

// NewTurnCompletedEvent creates a TurnCompletedEvent.
func NewTurnCompletedEvent(round int, role string, cost float64, subtasks int) TurnCompletedEvent {
	return TurnCompletedEvent{
		baseEvent: newBaseEvent(TypeTurnCompleted),
		Round:     round,
		Role:      role,
		Cost:      cost,
		Subtasks:  subtasks,
	}
}

func (e TurnCompletedEvent) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("round", e.Round),
		slog.String("role", e.Role),
		slog.Float64("cost", e.Cost),
		slog.Int("subtasks", e.Subtasks),
	}
}

// TurnFailedEvent is emitted when a turn errors and its delta is discarded.
type TurnFailedEvent struct {
	baseEvent
	Round int
	Role  string
	Err   error
}

// NewTurnFailedEvent creates a TurnFailedEvent.
func NewTurnFailedEvent(round int, role string, err error) TurnFailedEvent {
	return TurnFailedEvent{
		baseEvent: newBaseEvent(TypeTurnFailed),
		Round:     round,
		Role:      role,
		Err:       err,
	}
}

func (e TurnFailedEvent) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.Int("round", e.Round),
		slog.String("role", e.Role),
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	return attrs
}

// TurnBlockedEvent is emitted when a turn is skipped because an upstream
// role's output is missing.
type TurnBlockedEvent struct {
	baseEvent
	Round   int
	Role    string
	Missing []string
}

// NewTurnBlockedEvent creates a TurnBlockedEvent.
func NewTurnBlockedEvent(round int, role string, missing []string) TurnBlockedEvent {
	return TurnBlockedEvent{
		baseEvent: newBaseEvent(TypeTurnBlocked),
		Round:     round,
		Role:      role,
		Missing:   missing,
	}
}

func (e TurnBlockedEvent) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("round", e.Round),
		slog.String("role", e.Role),
		slog.Any("missing", e.Missing),
	}
}

// -----------------------------------------------------------------------------
// Budget Events
// -----------------------------------------------------------------------------

// BudgetWarningEvent is emitted once when spend crosses the warning ratio.
type BudgetWarningEvent struct {
	baseEvent
	Invested float64
	Spent    float64
}

// NewBudgetWarningEvent creates a BudgetWarningEvent.
func NewBudgetWarningEvent(invested, spent float64) BudgetWarningEvent {
	return BudgetWarningEvent{
		baseEvent: newBaseEvent(TypeBudgetWarning),
		Invested:  invested,
		Spent:     spent,
	}
}

func (e BudgetWarningEvent) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Float64("invested", e.Invested),
		slog.Float64("spent", e.Spent),
	}
}

// BudgetExceededEvent is emitted when a charge is refused or remaining
// budget reaches zero.
type BudgetExceededEvent struct {
	baseEvent
	Round    int
	Role     string
	Invested float64
	Spent    float64
}

// NewBudgetExceededEvent creates a BudgetExceededEvent.
func NewBudgetExceededEvent(round int, role string, invested, spent float64) BudgetExceededEvent {
	return BudgetExceededEvent{
		baseEvent: newBaseEvent(TypeBudgetExceeded),
		Round:     round,
		Role:      role,
		Invested:  invested,
		Spent:     spent,
	}
}

func (e BudgetExceededEvent) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("round", e.Round),
		slog.String("role", e.Role),
		slog.Float64("invested", e.Invested),
		slog.Float64("spent", e.Spent),
	}
}

// -----------------------------------------------------------------------------
// Checkpoint Events
// -----------------------------------------------------------------------------

// CheckpointSavedEvent is emitted after a checkpoint is written.
type CheckpointSavedEvent struct {
	baseEvent
	Location string
	Round    int
	Reason   string // "requested", "cancelled" or "final"
}

// NewCheckpointSavedEvent creates a CheckpointSavedEvent.
func NewCheckpointSavedEvent(location string, round int, reason string) CheckpointSavedEvent {
	return CheckpointSavedEvent{
		baseEvent: newBaseEvent(TypeCheckpointSaved),
		Location:  location,
		Round:     round,
		Reason:    reason,
	}
}

func (e CheckpointSavedEvent) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("location", e.Location),
		slog.Int("round", e.Round),
		slog.String("reason", e.Reason),
	}
}
