// Package scheduler drives a bounded sequence of rounds over a roster,
// giving each role a turn in roster order and committing the results to the
// budget ledger and project state.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ratco/ratco/internal/actor"
	"github.com/ratco/ratco/internal/budget"
	"github.com/ratco/ratco/internal/errors"
	"github.com/ratco/ratco/internal/event"
	"github.com/ratco/ratco/internal/logging"
	"github.com/ratco/ratco/internal/project"
	"github.com/ratco/ratco/internal/role"
	"github.com/ratco/ratco/internal/team"
	"github.com/ratco/ratco/internal/util"
)

const tracerName = "github.com/ratco/ratco/internal/scheduler"

// maxLoggedOutput bounds the actor output preview in turn logs.
const maxLoggedOutput = 160

const (
	defaultSaveAttempts = 3
	defaultSaveBackoff  = 200 * time.Millisecond
)

// Scheduler runs rounds until the project completes, the budget is
// exhausted, the round bound is reached, or the caller cancels.
//
// Rounds run strictly one at a time and turns within a round run in roster
// order. The ledger and project state are only mutated in commit. The ledger
// has its own lock; the state is guarded by mu.
type Scheduler struct {
	roster    team.Roster
	ledger    *budget.Ledger
	state     *project.State
	provider  actor.Provider
	maxRounds int

	settings     project.Settings
	runID        string
	saver        Saver
	location     string
	saveAttempts int
	saveBackoff  time.Duration
	turnTimeout  time.Duration

	bus    *event.Bus
	logger *logging.Logger
	tracer trace.Tracer

	mu                  sync.Mutex
	phase               State
	budgetExceeded      bool
	checkpointRequested bool
	started             atomic.Bool
}

// EffectiveMaxRounds applies the QA floor to a requested round bound.
func EffectiveMaxRounds(roster team.Roster, requested int) int {
	if roster.Contains(role.KindQaEngineer) && requested < MinRoundsWithQA {
		return MinRoundsWithQA
	}
	return requested
}

// New creates a Scheduler. The QA round floor is applied here, once.
func New(roster team.Roster, ledger *budget.Ledger, state *project.State, maxRounds int, provider actor.Provider, opts ...Option) (*Scheduler, error) {
	if roster.IsEmpty() {
		return nil, errors.Wrap(errors.ErrEmptyRoster, "scheduler")
	}
	if ledger == nil {
		return nil, errors.NewValidationError("ledger is required").WithField("ledger")
	}
	if state == nil {
		return nil, errors.NewValidationError("project state is required").WithField("state")
	}
	if provider == nil {
		return nil, errors.NewValidationError("actor provider is required").WithField("provider")
	}
	if maxRounds < 1 {
		return nil, errors.NewValidationError("max rounds must be >= 1").
			WithField("max_rounds").WithValue(maxRounds)
	}

	s := &Scheduler{
		roster:       roster,
		ledger:       ledger,
		state:        state,
		provider:     provider,
		maxRounds:    EffectiveMaxRounds(roster, maxRounds),
		saveAttempts: defaultSaveAttempts,
		saveBackoff:  defaultSaveBackoff,
		bus:          event.NewBus(),
		logger:       logging.NopLogger(),
		tracer:       otel.Tracer(tracerName),
		phase:        StatePending,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MaxRounds returns the effective round bound.
func (s *Scheduler) MaxRounds() int {
	return s.maxRounds
}

// State returns the scheduler's lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Run drives rounds from the state's current round index up to the bound.
//
// Scheduler outcomes (completed, budget halted, rounds exhausted) are
// reported in the Result, never as errors. Cancelling ctx is honored
// between rounds: a checkpoint is saved and the outcome is StateCancelled.
// If that save keeps failing, Run returns an error wrapping
// ErrCheckpointSave. A Scheduler runs once.
func (s *Scheduler) Run(ctx context.Context) (Result, error) {
	if !s.started.CompareAndSwap(false, true) {
		return Result{}, errors.New("scheduler: already started")
	}
	start := time.Now()
	startRound := s.state.RoundIndex
	s.setPhase(StateRunning)

	log := s.logger.WithRun(s.runID)
	log.Info("scheduler started",
		"roster", s.roster.String(),
		"max_rounds", s.maxRounds,
		"round_index", startRound,
		"remaining", s.ledger.Remaining(),
	)

	finish := func(outcome State, saved bool) Result {
		s.setPhase(outcome)
		res := Result{
			Outcome:         outcome,
			Rounds:          s.state.RoundIndex - startRound,
			MaxRounds:       s.maxRounds,
			State:           s.snapshot(),
			CheckpointSaved: saved,
			Duration:        time.Since(start),
		}
		log.Info("scheduler finished",
			"outcome", outcome.String(),
			"rounds", res.Rounds,
			"round_index", s.state.RoundIndex,
			"spent", s.ledger.Spent(),
		)
		return res
	}

	if s.state.Completed {
		return finish(StateCompleted, false), nil
	}

	saved := false
	for s.state.RoundIndex < s.maxRounds {
		if ctx.Err() != nil {
			if err := s.saveWithRetry(ctx, "cancelled"); err != nil {
				log.Error("checkpoint on cancellation failed", "error", err)
				return finish(StateCancelled, false), err
			}
			return finish(StateCancelled, true), nil
		}
		if s.haltForBudget() {
			return finish(StateBudgetHalted, saved), nil
		}

		s.runRound(ctx, s.state.RoundIndex)

		if s.takeCheckpointRequest() {
			if err := s.save("requested"); err != nil {
				log.Warn("requested checkpoint failed", "error", err)
			} else {
				saved = true
			}
		}
		if s.state.Completed {
			return finish(StateCompleted, saved), nil
		}
	}
	return finish(StateRoundsExhausted, saved), nil
}

func (s *Scheduler) haltForBudget() bool {
	s.mu.Lock()
	exceeded := s.budgetExceeded
	s.mu.Unlock()
	return exceeded || s.ledger.Remaining() <= 0
}

// runRound gives every role a turn in roster order and then increments the
// round index. Turns run under a context detached from the caller's
// cancellation so a round is never cut short.
func (s *Scheduler) runRound(ctx context.Context, round int) {
	ctx, span := s.tracer.Start(ctx, "round", trace.WithAttributes(
		attribute.Int("round", round),
		attribute.String("run_id", s.runID),
	))
	defer span.End()
	turnCtx := context.WithoutCancel(ctx)

	log := s.logger.WithRun(s.runID).WithRound(round)
	log.Ctx(ctx).Debug("round started", "remaining", s.ledger.Remaining())
	s.bus.Publish(event.NewRoundStartedEvent(round, s.ledger.Remaining()))

	// unavailable holds kinds whose output must not be consumed this round
	// because their latest turn failed or was blocked. A later role of the
	// same kind that commits clears the mark.
	unavailable := make(map[role.Kind]bool)
	var stats roundStats
	for _, r := range s.roster.Roles() {
		s.runTurn(turnCtx, round, r, unavailable, &stats)
	}

	s.mu.Lock()
	s.state.RoundIndex++
	completed := s.state.Completed
	s.mu.Unlock()

	span.SetAttributes(
		attribute.Int("turns", stats.turns),
		attribute.Int("failed", stats.failed),
		attribute.Int("blocked", stats.blocked),
	)
	log.Ctx(ctx).Info("round completed",
		"turns", stats.turns,
		"failed", stats.failed,
		"blocked", stats.blocked,
		"spent", s.ledger.Spent(),
		"completed", completed,
	)
	s.bus.Publish(event.NewRoundCompletedEvent(round, stats.turns, stats.failed, stats.blocked, s.ledger.Spent(), completed))
}

func (s *Scheduler) runTurn(ctx context.Context, round int, r role.Role, unavailable map[role.Kind]bool, stats *roundStats) {
	kind := r.Kind()
	log := s.logger.WithRun(s.runID).WithRound(round).WithRole(kind.String())

	inputs, missing := s.gatherInputs(r, unavailable)
	if len(missing) > 0 {
		unavailable[kind] = true
		stats.blocked++
		names := make([]string, len(missing))
		for i, m := range missing {
			names[i] = m.String()
		}
		log.Info("turn blocked", "missing", names, "reason", errors.ErrTurnBlocked.Error())
		s.bus.Publish(event.NewTurnBlockedEvent(round, kind.String(), names))
		return
	}

	ctx, span := s.tracer.Start(ctx, "turn", trace.WithAttributes(
		attribute.Int("round", round),
		attribute.String("role", r.String()),
	))
	defer span.End()

	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}

	turn := actor.Turn{
		RunID:    s.runID,
		Round:    round,
		Idea:     s.state.Idea,
		Role:     r,
		Inputs:   inputs,
		Settings: s.settings,
		Subtasks: 1,
	}
	res, err := s.provider.ActorFor(r).Act(ctx, turn)
	if err != nil {
		unavailable[kind] = true
		stats.failed++
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		log.Ctx(ctx).Warn("turn failed", "error", err)
		s.bus.Publish(event.NewTurnFailedEvent(round, kind.String(), err))
		return
	}

	if err := s.commit(kind, res); err != nil {
		unavailable[kind] = true
		stats.failed++
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit refused")
		if errors.Is(err, errors.ErrBudgetExceeded) {
			usage := s.ledger.Usage()
			log.Ctx(ctx).Warn("charge refused, budget exhausted",
				"cost", res.Cost,
				"invested", usage.Invested,
				"spent", usage.Spent,
			)
			s.bus.Publish(event.NewBudgetExceededEvent(round, kind.String(), usage.Invested, usage.Spent))
			return
		}
		log.Ctx(ctx).Warn("turn result rejected", "error", err)
		s.bus.Publish(event.NewTurnFailedEvent(round, kind.String(), err))
		return
	}

	delete(unavailable, kind)
	stats.turns++
	subtasks := max(res.Subtasks, 1)
	span.SetAttributes(attribute.Float64("cost", res.Cost), attribute.Int("subtasks", subtasks))
	log.Ctx(ctx).Debug("turn completed",
		"cost", res.Cost,
		"subtasks", subtasks,
		"completed", res.Completed,
		"output", util.Truncate(util.SingleLine(res.Output), maxLoggedOutput),
	)
	s.bus.Publish(event.NewTurnCompletedEvent(round, kind.String(), res.Cost, subtasks))
}

// gatherInputs collects upstream outputs for r. An upstream kind only counts
// as missing when it is part of the roster.
func (s *Scheduler) gatherInputs(r role.Role, unavailable map[role.Kind]bool) (map[role.Kind]string, []role.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inputs := make(map[role.Kind]string)
	var missing []role.Kind
	for _, dep := range r.DependsOn() {
		if !s.roster.Contains(dep) {
			continue
		}
		out, ok := s.state.Artifact(dep)
		if !ok || unavailable[dep] {
			missing = append(missing, dep)
			continue
		}
		inputs[dep] = out
	}
	return inputs, missing
}

// commit charges the ledger and applies the turn's delta. A refused charge
// discards the delta and raises the budget stop for the next round.
//
// The charge happens before mu is taken: ledger callbacks publish on the bus
// and subscribers may call back into the scheduler. Turns run one at a time,
// so nothing else charges between the charge and the delta.
func (s *Scheduler) commit(kind role.Kind, res actor.Result) error {
	if _, err := s.ledger.Charge(res.Cost); err != nil {
		if errors.Is(err, errors.ErrBudgetExceeded) {
			s.mu.Lock()
			s.budgetExceeded = true
			s.mu.Unlock()
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SetArtifact(kind, res.Output)
	if res.Completed {
		s.state.Completed = true
	}
	if res.RequestCheckpoint {
		s.checkpointRequested = true
	}
	return nil
}

func (s *Scheduler) takeCheckpointRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := s.checkpointRequested
	s.checkpointRequested = false
	return req
}

func (s *Scheduler) save(reason string) error {
	if s.saver == nil {
		return errors.NewCheckpointError("no checkpoint location configured", errors.ErrCheckpointSave)
	}
	snap := s.snapshot()
	if err := s.saver.Save(s.location, s.roster, snap); err != nil {
		return err
	}
	s.logger.WithRun(s.runID).Info("checkpoint saved", "location", s.location, "reason", reason, "round_index", snap.RoundIndex)
	s.bus.Publish(event.NewCheckpointSavedEvent(s.location, snap.RoundIndex, reason))
	return nil
}

// saveWithRetry saves with bounded exponential backoff. Only errors
// classified as retryable are retried. It runs under a context detached from
// ctx's cancellation, since ctx is usually the reason for saving.
func (s *Scheduler) saveWithRetry(ctx context.Context, reason string) error {
	ctx = context.WithoutCancel(ctx)
	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		err := s.save(reason)
		if err != nil && !errors.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			s.logger.WithRun(s.runID).Warn("checkpoint save attempt failed", "attempt", attempt, "error", err)
		}
		return struct{}{}, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.saveBackoff
	if _, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.saveAttempts)),
	); err != nil {
		if errors.Is(err, errors.ErrCheckpointSave) {
			return err
		}
		return errors.NewCheckpointError(fmt.Sprintf("save failed after %d attempts", attempt), errors.Join(errors.ErrCheckpointSave, err)).
			WithLocation(s.location)
	}
	return nil
}

func (s *Scheduler) snapshot() *project.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Scheduler) setPhase(p State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}
