// Package config loads ratco's application configuration with viper, the
// launcher's environment defaults, and the LLM provider file written by
// --init-config.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ratco/ratco/internal/actor"
	"github.com/ratco/ratco/internal/team"
)

// Config represents the complete ratco configuration. It is loaded once and
// passed by pointer to the orchestrator; nothing reads viper after Load.
type Config struct {
	Workspace  WorkspaceConfig  `mapstructure:"workspace"`
	Team       TeamConfig       `mapstructure:"team"`
	Actor      ActorConfig      `mapstructure:"actor"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Budget     BudgetConfig     `mapstructure:"budget"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// WorkspaceConfig controls where run artifacts live
type WorkspaceConfig struct {
	// Dir is the root for logs and checkpoints (default: "./workspace")
	Dir string `mapstructure:"dir"`
}

// TeamConfig controls roster composition
type TeamConfig struct {
	// Roles is the requested roster in turn order. Names are matched
	// case-insensitively ("ProductManager", "product_manager").
	Roles []string `mapstructure:"roles"`
	// PoolCapacity is the parallel capacity of the engineer pool (default: 5)
	PoolCapacity int `mapstructure:"pool_capacity"`
}

// ActorConfig controls the built-in simulated actor
type ActorConfig struct {
	// CostPerTurn is charged for every actor call
	CostPerTurn float64 `mapstructure:"cost_per_turn"`
	// CompleteAfterRounds makes the team leader signal completion after that
	// many rounds (0 = never)
	CompleteAfterRounds int `mapstructure:"complete_after_rounds"`
}

// SchedulerConfig controls the round loop
type SchedulerConfig struct {
	// TurnTimeoutSeconds bounds a single role turn (0 = no timeout)
	TurnTimeoutSeconds int `mapstructure:"turn_timeout_seconds"`
}

// CheckpointConfig controls where and how checkpoints are saved
type CheckpointConfig struct {
	// Dir is the checkpoint location; its last element must end with "team".
	// Empty means {workspace}/storage/team.
	Dir string `mapstructure:"dir"`
	// Retries is the number of save attempts on cancellation (default: 3)
	Retries int `mapstructure:"retries"`
	// BackoffMs is the initial delay between save attempts (default: 200)
	BackoffMs int `mapstructure:"backoff_ms"`
}

// BudgetConfig controls budget notifications
type BudgetConfig struct {
	// WarningRatio is the fraction of the investment at which a warning is
	// logged (0 disables)
	WarningRatio float64 `mapstructure:"warning_ratio"`
}

// LoggingConfig controls run logging
type LoggingConfig struct {
	// Enabled writes a JSON log to {workspace}/logs/{run-id}.log; otherwise
	// warnings and errors go to stderr.
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level: debug, info, warn, error
	Level string `mapstructure:"level"`
}

// TelemetryConfig controls OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Exporter is one of "stdout", "file" or "none". The file exporter writes
	// to {workspace}/logs/{run-id}.trace.json.
	Exporter string `mapstructure:"exporter"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Dir: "./workspace",
		},
		Team: TeamConfig{
			Roles:        nil, // nil means team.DefaultKinds
			PoolCapacity: team.DefaultPoolCapacity,
		},
		Actor: ActorConfig{
			CostPerTurn:         actor.DefaultCostPerTurn,
			CompleteAfterRounds: 0,
		},
		Scheduler: SchedulerConfig{
			TurnTimeoutSeconds: 0,
		},
		Checkpoint: CheckpointConfig{
			Dir:       "",
			Retries:   3,
			BackoffMs: 200,
		},
		Budget: BudgetConfig{
			WarningRatio: 0.8,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Exporter: "file",
		},
	}
}

// CheckpointLocation returns the configured checkpoint location or the
// default under the workspace.
func (c *Config) CheckpointLocation() string {
	if c.Checkpoint.Dir != "" {
		return c.Checkpoint.Dir
	}
	return filepath.Join(c.Workspace.Dir, "storage", "team")
}

// LogDir returns the directory run logs are written to.
func (c *Config) LogDir() string {
	return filepath.Join(c.Workspace.Dir, "logs")
}

// TurnTimeout returns the turn timeout as a time.Duration (0 means disabled)
func (c *SchedulerConfig) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSeconds) * time.Second
}

// Backoff returns the initial save retry delay as a time.Duration
func (c *CheckpointConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("workspace.dir", defaults.Workspace.Dir)

	viper.SetDefault("team.roles", defaults.Team.Roles)
	viper.SetDefault("team.pool_capacity", defaults.Team.PoolCapacity)

	viper.SetDefault("actor.cost_per_turn", defaults.Actor.CostPerTurn)
	viper.SetDefault("actor.complete_after_rounds", defaults.Actor.CompleteAfterRounds)

	viper.SetDefault("scheduler.turn_timeout_seconds", defaults.Scheduler.TurnTimeoutSeconds)

	viper.SetDefault("checkpoint.dir", defaults.Checkpoint.Dir)
	viper.SetDefault("checkpoint.retries", defaults.Checkpoint.Retries)
	viper.SetDefault("checkpoint.backoff_ms", defaults.Checkpoint.BackoffMs)

	viper.SetDefault("budget.warning_ratio", defaults.Budget.WarningRatio)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	viper.SetDefault("telemetry.enabled", defaults.Telemetry.Enabled)
	viper.SetDefault("telemetry.exporter", defaults.Telemetry.Exporter)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ratco")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ratco"
	}
	return filepath.Join(home, ".config", "ratco")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
