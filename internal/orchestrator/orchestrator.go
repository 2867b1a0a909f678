// Package orchestrator is the composition root of a ratco run. It resolves
// the launcher options into a roster, a funded ledger and a project state,
// either freshly composed or recovered from a checkpoint, and then drives the
// round scheduler to a terminal outcome.
package orchestrator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ratco/ratco/internal/actor"
	"github.com/ratco/ratco/internal/budget"
	"github.com/ratco/ratco/internal/checkpoint"
	"github.com/ratco/ratco/internal/config"
	"github.com/ratco/ratco/internal/errors"
	"github.com/ratco/ratco/internal/event"
	"github.com/ratco/ratco/internal/logging"
	"github.com/ratco/ratco/internal/project"
	"github.com/ratco/ratco/internal/scheduler"
	"github.com/ratco/ratco/internal/team"
	"github.com/ratco/ratco/internal/telemetry"
	"github.com/ratco/ratco/internal/util"
)

const (
	telemetryShutdownTimeout = 5 * time.Second
	maxLoggedIdea            = 120
)

// Store persists and restores teams. checkpoint.Checkpointer satisfies it.
type Store interface {
	scheduler.Saver
	Recover(location string) (team.Roster, *project.State, error)
}

// Options are the per-run launcher options.
type Options struct {
	Idea       string
	Investment float64
	MaxRounds  int

	CodeReview bool
	RunTests   bool
	Implement  bool

	ProjectName          string
	Incremental          bool
	ProjectPath          string
	ReqaFile             string
	MaxAutoSummarizeCode int

	// RecoverPath, when set, restores the team from a checkpoint instead of
	// composing a fresh one. The recovered idea replaces Idea.
	RecoverPath string
}

// Result is the report of a finished run.
type Result struct {
	RunID   string
	Outcome scheduler.State
	// Rounds is how many rounds ran in this invocation.
	Rounds int
	// MaxRounds is the effective round bound after the QA floor.
	MaxRounds int
	Roster    team.Roster
	State     *project.State
	Recovered bool
	Invested  float64
	Spent     float64
	// CheckpointPath is where the team was last saved, empty if no save
	// succeeded.
	CheckpointPath string
	// LogPath is the run log file, empty when logging to stderr.
	LogPath  string
	Duration time.Duration
}

// Orchestrator wires the run components together. It holds no per-run state
// and may run several times sequentially.
type Orchestrator struct {
	cfg      *config.Config
	provider actor.Provider
	store    Store
	bus      *event.Bus
	logger   *logging.Logger
	version  string
	model    string
	newRunID func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProvider replaces the simulated actors.
func WithProvider(p actor.Provider) Option {
	return func(o *Orchestrator) {
		o.provider = p
	}
}

// WithStore replaces the filesystem checkpointer.
func WithStore(s Store) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithBus sets the event bus lifecycle events are published on.
func WithBus(bus *event.Bus) Option {
	return func(o *Orchestrator) {
		o.bus = bus
	}
}

// WithLogger overrides the per-run log file.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithVersion sets the version reported in telemetry resources.
func WithVersion(v string) Option {
	return func(o *Orchestrator) {
		o.version = v
	}
}

// WithModel names the configured LLM model in simulated actor output.
func WithModel(model string) Option {
	return func(o *Orchestrator) {
		o.model = model
	}
}

// WithRunIDFunc overrides run id generation.
func WithRunIDFunc(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newRunID = fn
	}
}

// New creates an Orchestrator for cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &Orchestrator{
		cfg:      cfg,
		version:  "dev",
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.provider == nil {
		o.provider = actor.PooledProvider(actor.NewSimulatedProvider(actor.Simulated{
			CostPerTurn:         cfg.Actor.CostPerTurn,
			CompleteAfterRounds: cfg.Actor.CompleteAfterRounds,
			Model:               o.model,
		}))
	}
	if o.store == nil {
		o.store = checkpoint.New()
	}
	if o.bus == nil {
		o.bus = event.NewBus()
	}
	return o
}

// Bus returns the event bus runs publish on.
func (o *Orchestrator) Bus() *event.Bus {
	return o.bus
}

// Run executes one run. Pre-run failures (missing idea, invalid settings,
// unknown role, bad checkpoint, non-positive investment) are returned before
// any round starts and match errors.IsPreRun. Scheduler outcomes are
// reported in the Result.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()

	if strings.TrimSpace(opts.Idea) == "" {
		return Result{}, errors.NewArgumentError("IDEA", errors.ErrMissingIdea)
	}
	if opts.MaxRounds < 1 {
		return Result{}, errors.NewValidationError("must be >= 1").
			WithField("n_round").WithValue(opts.MaxRounds)
	}

	settings, err := project.Settings{
		ProjectName:          opts.ProjectName,
		Incremental:          opts.Incremental,
		ProjectPath:          opts.ProjectPath,
		ReqaFile:             opts.ReqaFile,
		MaxAutoSummarizeCode: opts.MaxAutoSummarizeCode,
		Workspace:            o.cfg.Workspace.Dir,
	}.Resolve()
	if err != nil {
		return Result{}, err
	}

	roster, state, recovered, err := o.assemble(opts)
	if err != nil {
		return Result{}, err
	}

	bus := o.bus
	ledger := budget.NewLedger(
		budget.WithWarningRatio(o.cfg.Budget.WarningRatio),
		budget.WithCallbacks(budget.Callbacks{
			OnWarning: func(u budget.Usage) {
				bus.Publish(event.NewBudgetWarningEvent(u.Invested, u.Spent))
			},
		}),
	)
	if err := ledger.Invest(opts.Investment); err != nil {
		return Result{}, err
	}

	runID := o.newRunID()
	res := Result{
		RunID:     runID,
		Roster:    roster,
		Recovered: recovered,
		MaxRounds: scheduler.EffectiveMaxRounds(roster, opts.MaxRounds),
	}

	logger, logPath, err := o.openLogger(runID)
	if err != nil {
		return res, err
	}
	if logger != o.logger {
		defer func() { _ = logger.Close() }()
	}
	res.LogPath = logPath
	log := logger.WithRun(runID)

	shutdown, err := o.initTelemetry(runID)
	if err != nil {
		log.Warn("telemetry disabled", "error", err)
	} else {
		defer func() {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryShutdownTimeout)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Warn("telemetry shutdown failed", "error", err)
			}
		}()
	}

	subID := bus.SubscribeAll(func(e event.Event) {
		log.LogAttrs(ctx, slog.LevelDebug, "event "+e.EventType(), e.LogAttrs()...)
	})
	defer bus.Unsubscribe(subID)

	for _, w := range roster.Warnings() {
		log.Warn("roster policy", "warning", w)
	}

	location := o.cfg.CheckpointLocation()
	sched, err := scheduler.New(roster, ledger, state, opts.MaxRounds, o.provider,
		scheduler.WithLogger(logger),
		scheduler.WithBus(bus),
		scheduler.WithTracer(telemetry.Tracer("github.com/ratco/ratco/internal/scheduler")),
		scheduler.WithSettings(settings),
		scheduler.WithRunID(runID),
		scheduler.WithCheckpoint(o.store, location),
		scheduler.WithCheckpointRetry(o.cfg.Checkpoint.Retries, o.cfg.Checkpoint.Backoff()),
		scheduler.WithTurnTimeout(o.cfg.Scheduler.TurnTimeout()),
	)
	if err != nil {
		return res, err
	}
	res.MaxRounds = sched.MaxRounds()

	log.Info("run started",
		"idea", util.Truncate(util.SingleLine(state.Idea), maxLoggedIdea),
		"roster", roster.String(),
		"max_rounds", res.MaxRounds,
		"investment", opts.Investment,
		"recovered", recovered,
		"project", settings.ProjectName,
	)
	bus.Publish(event.NewRunStartedEvent(runID, state.Idea, roster.String(), res.MaxRounds, opts.Investment, recovered))

	sres, runErr := sched.Run(ctx)
	res.Outcome = sres.Outcome
	res.Rounds = sres.Rounds
	res.State = sres.State
	usage := ledger.Usage()
	res.Invested, res.Spent = usage.Invested, usage.Spent
	if sres.CheckpointSaved {
		res.CheckpointPath = location
	}

	if runErr == nil && sres.Outcome != scheduler.StateCancelled {
		if err := o.store.Save(location, roster, sres.State); err != nil {
			log.Warn("final checkpoint failed", "location", location, "error", err)
		} else {
			res.CheckpointPath = location
			bus.Publish(event.NewCheckpointSavedEvent(location, sres.State.RoundIndex, "final"))
		}
	}

	res.Duration = time.Since(start)
	log.Info("run finished",
		"outcome", res.Outcome.String(),
		"rounds", res.Rounds,
		"spent", res.Spent,
		"checkpoint", res.CheckpointPath,
		"duration", res.Duration,
	)
	bus.Publish(event.NewRunFinishedEvent(runID, res.Outcome.String(), res.Rounds, res.Spent))

	return res, runErr
}

// assemble recovers the team when a recover path is given and composes a
// fresh one otherwise.
func (o *Orchestrator) assemble(opts Options) (team.Roster, *project.State, bool, error) {
	if opts.RecoverPath != "" {
		roster, state, err := o.store.Recover(opts.RecoverPath)
		if err != nil {
			return team.Roster{}, nil, false, err
		}
		return roster, state, true, nil
	}

	kinds := team.DefaultKinds()
	if len(o.cfg.Team.Roles) > 0 {
		parsed, err := team.ParseKinds(o.cfg.Team.Roles)
		if err != nil {
			return team.Roster{}, nil, false, err
		}
		kinds = parsed
	}
	roster, err := team.Compose(kinds, team.Flags{
		Implement:    opts.Implement,
		CodeReview:   opts.CodeReview,
		RunTests:     opts.RunTests,
		PoolCapacity: o.cfg.Team.PoolCapacity,
	})
	if err != nil {
		return team.Roster{}, nil, false, err
	}
	if roster.IsEmpty() {
		return team.Roster{}, nil, false, errors.Wrap(errors.ErrEmptyRoster, "compose")
	}
	return roster, project.NewState(strings.TrimSpace(opts.Idea)), false, nil
}

// openLogger returns the run logger: the injected one, a JSON file under the
// workspace, or stderr at WARN when logging is disabled.
func (o *Orchestrator) openLogger(runID string) (*logging.Logger, string, error) {
	if o.logger != nil {
		return o.logger, "", nil
	}
	if !o.cfg.Logging.Enabled {
		logger, err := logging.NewLogger("", "", logging.LevelWarn)
		return logger, "", err
	}
	dir := o.cfg.LogDir()
	logger, err := logging.NewLogger(dir, runID, o.cfg.Logging.Level)
	if err != nil {
		return nil, "", errors.Wrap(err, "open run log")
	}
	return logger, filepath.Join(dir, runID+".log"), nil
}

func (o *Orchestrator) initTelemetry(runID string) (telemetry.ShutdownFunc, error) {
	tcfg := telemetry.Config{
		Enabled:  o.cfg.Telemetry.Enabled,
		Exporter: o.cfg.Telemetry.Exporter,
	}
	if tcfg.Enabled && strings.EqualFold(tcfg.Exporter, telemetry.ExporterFile) {
		dir := o.cfg.LogDir()
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		tcfg.Path = filepath.Join(dir, runID+".trace.json")
	}
	return telemetry.Init(o.version, tcfg)
}
