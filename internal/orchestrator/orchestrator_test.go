package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ratco/ratco/internal/checkpoint"
	"github.com/ratco/ratco/internal/config"
	"github.com/ratco/ratco/internal/errors"
	"github.com/ratco/ratco/internal/event"
	"github.com/ratco/ratco/internal/logging"
	"github.com/ratco/ratco/internal/project"
	"github.com/ratco/ratco/internal/role"
	"github.com/ratco/ratco/internal/scheduler"
	"github.com/ratco/ratco/internal/team"
)

const idea = "Create a 2048 game."

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Workspace.Dir = t.TempDir()
	cfg.Checkpoint.BackoffMs = 1
	return cfg
}

func newTestOrchestrator(cfg *config.Config, opts ...Option) *Orchestrator {
	base := []Option{
		WithLogger(logging.NopLogger()),
		WithRunIDFunc(func() string { return "run-test" }),
	}
	return New(cfg, append(base, opts...)...)
}

func baseOptions() Options {
	return Options{
		Idea:                 idea,
		Investment:           3.0,
		MaxRounds:            5,
		CodeReview:           true,
		Implement:            true,
		MaxAutoSummarizeCode: 0,
	}
}

// recorder collects events by type.
type recorder struct {
	mu     sync.Mutex
	events map[string][]event.Event
}

func record(bus *event.Bus) *recorder {
	r := &recorder{events: make(map[string][]event.Event)}
	bus.SubscribeAll(func(e event.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events[e.EventType()] = append(r.events[e.EventType()], e)
	})
	return r
}

func (r *recorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[eventType])
}

func TestRun_CodeReviewExhaustsRounds(t *testing.T) {
	cfg := testConfig(t)
	bus := event.NewBus()
	rec := record(bus)
	o := newTestOrchestrator(cfg, WithBus(bus))

	opts := baseOptions()
	opts.Implement = false
	res, err := o.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Outcome != scheduler.StateRoundsExhausted {
		t.Errorf("Outcome = %v, want %v", res.Outcome, scheduler.StateRoundsExhausted)
	}
	if res.MaxRounds != 5 || res.Rounds != 5 {
		t.Errorf("MaxRounds, Rounds = %d, %d, want 5, 5", res.MaxRounds, res.Rounds)
	}
	if res.State.RoundIndex != 5 || res.State.Completed {
		t.Errorf("State = %+v", res.State)
	}

	if got := res.Roster.Count(role.KindEngineer); got != 2 {
		t.Fatalf("engineers = %d, want requested one plus the pool", got)
	}
	pool := res.Roster.At(res.Roster.Len() - 1)
	if pool.Kind() != role.KindEngineer || !pool.ReviewEnabled() || pool.ParallelCapacity() != team.DefaultPoolCapacity {
		t.Errorf("pool engineer = %v", pool)
	}
	if res.Roster.Contains(role.KindQaEngineer) {
		t.Error("roster should not contain a QA engineer")
	}

	if res.Spent <= 0 || res.Spent > res.Invested {
		t.Errorf("Spent = %v, Invested = %v", res.Spent, res.Invested)
	}
	if res.RunID != "run-test" {
		t.Errorf("RunID = %q", res.RunID)
	}

	if rec.count(event.TypeRunStarted) != 1 || rec.count(event.TypeRunFinished) != 1 {
		t.Errorf("run events = %d started, %d finished", rec.count(event.TypeRunStarted), rec.count(event.TypeRunFinished))
	}
	if rec.count(event.TypeRoundCompleted) != 5 {
		t.Errorf("round.completed = %d, want 5", rec.count(event.TypeRoundCompleted))
	}
}

func TestRun_FinalCheckpointIsRecoverable(t *testing.T) {
	cfg := testConfig(t)
	o := newTestOrchestrator(cfg)

	res, err := o.Run(context.Background(), baseOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.CheckpointPath != cfg.CheckpointLocation() {
		t.Fatalf("CheckpointPath = %q, want %q", res.CheckpointPath, cfg.CheckpointLocation())
	}

	roster, state, err := checkpoint.New().Recover(res.CheckpointPath)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !roster.Equal(res.Roster) {
		t.Errorf("recovered roster = %v, want %v", roster, res.Roster)
	}
	if state.Idea != idea || state.RoundIndex != 5 {
		t.Errorf("recovered state = %+v", state)
	}
}

func TestRun_RunTestsFloorsRounds(t *testing.T) {
	cfg := testConfig(t)
	o := newTestOrchestrator(cfg)

	opts := baseOptions()
	opts.RunTests = true
	opts.MaxRounds = 3
	res, err := o.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Roster.Contains(role.KindQaEngineer) {
		t.Errorf("roster %v has no QA engineer", res.Roster)
	}
	if res.MaxRounds != scheduler.MinRoundsWithQA {
		t.Errorf("MaxRounds = %d, want %d", res.MaxRounds, scheduler.MinRoundsWithQA)
	}
	if res.Outcome != scheduler.StateRoundsExhausted || res.Rounds != 8 {
		t.Errorf("Outcome, Rounds = %v, %d, want rounds_exhausted, 8", res.Outcome, res.Rounds)
	}
}

func TestRun_CompletesWhenLeaderSignals(t *testing.T) {
	cfg := testConfig(t)
	cfg.Actor.CompleteAfterRounds = 2
	o := newTestOrchestrator(cfg)

	res, err := o.Run(context.Background(), baseOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != scheduler.StateCompleted || res.Rounds != 2 {
		t.Errorf("Outcome, Rounds = %v, %d, want completed, 2", res.Outcome, res.Rounds)
	}
	if !res.State.Completed {
		t.Error("State.Completed = false")
	}
}

func TestRun_BudgetHalted(t *testing.T) {
	cfg := testConfig(t)
	o := newTestOrchestrator(cfg)

	// Five unblocked roles at 0.01 each spend the whole investment in the
	// first round.
	opts := baseOptions()
	opts.Investment = 0.05
	opts.CodeReview = false
	opts.Implement = false
	res, err := o.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != scheduler.StateBudgetHalted {
		t.Errorf("Outcome = %v, want budget_halted", res.Outcome)
	}
	if res.Rounds != 1 {
		t.Errorf("Rounds = %d, want 1", res.Rounds)
	}
	if res.Spent != res.Invested {
		t.Errorf("Spent = %v, want %v", res.Spent, res.Invested)
	}
}

func TestRun_PreRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options, *config.Config)
		target error
	}{
		{"missing idea", func(o *Options, _ *config.Config) { o.Idea = "  " }, errors.ErrMissingIdea},
		{"zero investment", func(o *Options, _ *config.Config) { o.Investment = 0 }, errors.ErrInvalidAmount},
		{"negative investment", func(o *Options, _ *config.Config) { o.Investment = -1 }, errors.ErrInvalidAmount},
		{"zero rounds", func(o *Options, _ *config.Config) { o.MaxRounds = 0 }, errors.ErrInvalidInput},
		{"bad summarize cap", func(o *Options, _ *config.Config) { o.MaxAutoSummarizeCode = -2 }, errors.ErrInvalidInput},
		{"incremental without path", func(o *Options, _ *config.Config) { o.Incremental = true }, errors.ErrInvalidInput},
		{"unknown configured role", func(_ *Options, c *config.Config) { c.Team.Roles = []string{"wizard"} }, errors.ErrUnknownRoleKind},
		{"recover path without sentinel", func(o *Options, _ *config.Config) { o.RecoverPath = "/tmp/project" }, errors.ErrInvalidCheckpointPath},
		{"recover path absent", func(o *Options, _ *config.Config) {
			o.RecoverPath = filepath.Join(os.TempDir(), "ratco-missing_team")
		}, errors.ErrInvalidCheckpointPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			opts := baseOptions()
			tt.modify(&opts, cfg)

			bus := event.NewBus()
			rec := record(bus)
			o := New(cfg, WithBus(bus))

			_, err := o.Run(context.Background(), opts)
			if !errors.Is(err, tt.target) {
				t.Fatalf("error = %v, want %v", err, tt.target)
			}
			if !errors.IsPreRun(err) {
				t.Errorf("IsPreRun(%v) = false", err)
			}
			if rec.count(event.TypeRunStarted) != 0 {
				t.Error("no run should start after a pre-run error")
			}
			if _, statErr := os.Stat(cfg.LogDir()); !os.IsNotExist(statErr) {
				t.Errorf("log dir created before validation: %v", statErr)
			}
		})
	}
}

func TestRun_MissingIdeaIsArgumentError(t *testing.T) {
	o := newTestOrchestrator(testConfig(t))
	opts := baseOptions()
	opts.Idea = ""

	_, err := o.Run(context.Background(), opts)
	var argErr *errors.ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("error = %T %v, want *ArgumentError", err, err)
	}
	if argErr.Argument != "IDEA" {
		t.Errorf("Argument = %q", argErr.Argument)
	}
}

func TestRun_RecoverTakesPrecedence(t *testing.T) {
	cfg := testConfig(t)

	saved, err := team.Compose(team.DefaultKinds(), team.Flags{RunTests: true})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	state := project.NewState("Write a CLI snake game")
	state.RoundIndex = 2
	state.SetArtifact(role.KindProductManager, "prd v1")

	location := filepath.Join(t.TempDir(), "prior_team")
	if err := os.Mkdir(location, 0755); err != nil {
		t.Fatal(err)
	}
	if err := checkpoint.New().Save(location, saved, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	o := newTestOrchestrator(cfg)
	opts := baseOptions()
	opts.Idea = "ignored in favour of the checkpoint"
	opts.RecoverPath = location
	opts.MaxRounds = 3

	res, err := o.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Recovered {
		t.Error("Recovered = false")
	}
	if !res.Roster.Equal(saved) {
		t.Errorf("Roster = %v, want recovered %v", res.Roster, saved)
	}
	if res.State.Idea != "Write a CLI snake game" {
		t.Errorf("Idea = %q, want recovered idea", res.State.Idea)
	}
	if res.MaxRounds != scheduler.MinRoundsWithQA {
		t.Errorf("MaxRounds = %d, want QA floor", res.MaxRounds)
	}
	if res.Rounds != scheduler.MinRoundsWithQA-2 || res.State.RoundIndex != scheduler.MinRoundsWithQA {
		t.Errorf("Rounds = %d, RoundIndex = %d", res.Rounds, res.State.RoundIndex)
	}
}

func TestRun_CancelledBeforeFirstRound(t *testing.T) {
	cfg := testConfig(t)
	o := newTestOrchestrator(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.Run(ctx, baseOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != scheduler.StateCancelled || res.Rounds != 0 {
		t.Errorf("Outcome, Rounds = %v, %d", res.Outcome, res.Rounds)
	}
	if res.CheckpointPath != cfg.CheckpointLocation() {
		t.Errorf("CheckpointPath = %q", res.CheckpointPath)
	}
	if _, _, err := checkpoint.New().Recover(res.CheckpointPath); err != nil {
		t.Errorf("cancelled run should be resumable: %v", err)
	}
}

func TestRun_WritesRunLog(t *testing.T) {
	cfg := testConfig(t)
	o := New(cfg, WithRunIDFunc(func() string { return "run-log" }))

	opts := baseOptions()
	opts.MaxRounds = 1
	res, err := o.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := filepath.Join(cfg.LogDir(), "run-log.log")
	if res.LogPath != want {
		t.Fatalf("LogPath = %q, want %q", res.LogPath, want)
	}
	info, err := os.Stat(want)
	if err != nil {
		t.Fatalf("stat log: %v", err)
	}
	if info.Size() == 0 {
		t.Error("run log is empty")
	}
}

func TestRun_TelemetryFileExporter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Enabled = false
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporter = "file"
	o := newTestOrchestrator(cfg)

	opts := baseOptions()
	opts.MaxRounds = 1
	if _, err := o.Run(context.Background(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	info, err := os.Stat(filepath.Join(cfg.LogDir(), "run-test.trace.json"))
	if err != nil {
		t.Fatalf("stat trace file: %v", err)
	}
	if info.Size() == 0 {
		t.Error("trace file is empty after shutdown")
	}
}

// failingStore refuses every save.
type failingStore struct {
	*checkpoint.Checkpointer
	saves int
}

func (f *failingStore) Save(string, team.Roster, *project.State) error {
	f.saves++
	return errors.NewCheckpointError("disk full", errors.ErrCheckpointSave).WithRetryable(true)
}

func TestRun_FinalCheckpointFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	store := &failingStore{Checkpointer: checkpoint.New()}
	o := newTestOrchestrator(cfg, WithStore(store))

	opts := baseOptions()
	opts.MaxRounds = 2
	res, err := o.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.CheckpointPath != "" {
		t.Errorf("CheckpointPath = %q, want empty", res.CheckpointPath)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
}

func TestRun_CancelledSaveFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Checkpoint.Retries = 2
	store := &failingStore{Checkpointer: checkpoint.New()}
	o := newTestOrchestrator(cfg, WithStore(store))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := o.Run(ctx, baseOptions())
	if !errors.Is(err, errors.ErrCheckpointSave) {
		t.Fatalf("error = %v, want ErrCheckpointSave", err)
	}
	if errors.IsPreRun(err) {
		t.Error("save failure is not a pre-run error")
	}
	if res.Outcome != scheduler.StateCancelled {
		t.Errorf("Outcome = %v", res.Outcome)
	}
	if store.saves != 2 {
		t.Errorf("saves = %d, want 2", store.saves)
	}
}
