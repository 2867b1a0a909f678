package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ratco/ratco/internal/checkpoint"
	"github.com/ratco/ratco/internal/role"
	"github.com/ratco/ratco/internal/telemetry"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "team.pool_capacity")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// maxPoolCapacity bounds the engineer pool's concurrency.
const maxPoolCapacity = 64

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidExporters returns the list of valid telemetry exporters
func ValidExporters() []string {
	return []string{telemetry.ExporterStdout, telemetry.ExporterFile, telemetry.ExporterNone}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateWorkspace()...)
	errors = append(errors, c.validateTeam()...)
	errors = append(errors, c.validateActor()...)
	errors = append(errors, c.validateScheduler()...)
	errors = append(errors, c.validateCheckpoint()...)
	errors = append(errors, c.validateBudget()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateTelemetry()...)

	return errors
}

func (c *Config) validateWorkspace() []ValidationError {
	if strings.TrimSpace(c.Workspace.Dir) == "" {
		return []ValidationError{{
			Field:   "workspace.dir",
			Value:   c.Workspace.Dir,
			Message: "must not be empty",
		}}
	}
	return nil
}

func (c *Config) validateTeam() []ValidationError {
	var errors []ValidationError

	for i, name := range c.Team.Roles {
		if _, err := role.ParseKind(name); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("team.roles[%d]", i),
				Value:   name,
				Message: "unknown role kind",
			})
		}
	}

	if c.Team.PoolCapacity < 1 || c.Team.PoolCapacity > maxPoolCapacity {
		errors = append(errors, ValidationError{
			Field:   "team.pool_capacity",
			Value:   c.Team.PoolCapacity,
			Message: fmt.Sprintf("must be between 1 and %d", maxPoolCapacity),
		})
	}

	return errors
}

func (c *Config) validateActor() []ValidationError {
	var errors []ValidationError

	if c.Actor.CostPerTurn < 0 {
		errors = append(errors, ValidationError{
			Field:   "actor.cost_per_turn",
			Value:   c.Actor.CostPerTurn,
			Message: "must be non-negative",
		})
	}
	if c.Actor.CompleteAfterRounds < 0 {
		errors = append(errors, ValidationError{
			Field:   "actor.complete_after_rounds",
			Value:   c.Actor.CompleteAfterRounds,
			Message: "must be non-negative (0 = never)",
		})
	}

	return errors
}

func (c *Config) validateScheduler() []ValidationError {
	if c.Scheduler.TurnTimeoutSeconds < 0 {
		return []ValidationError{{
			Field:   "scheduler.turn_timeout_seconds",
			Value:   c.Scheduler.TurnTimeoutSeconds,
			Message: "must be non-negative (0 = disabled)",
		}}
	}
	return nil
}

func (c *Config) validateCheckpoint() []ValidationError {
	var errors []ValidationError

	if c.Checkpoint.Dir != "" {
		if err := checkpoint.ValidateLocation(c.Checkpoint.Dir); err != nil {
			errors = append(errors, ValidationError{
				Field:   "checkpoint.dir",
				Value:   c.Checkpoint.Dir,
				Message: fmt.Sprintf("last path element must end with %q", checkpoint.SentinelToken),
			})
		}
	}
	if c.Checkpoint.Retries < 1 || c.Checkpoint.Retries > 10 {
		errors = append(errors, ValidationError{
			Field:   "checkpoint.retries",
			Value:   c.Checkpoint.Retries,
			Message: "must be between 1 and 10",
		})
	}
	if c.Checkpoint.BackoffMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "checkpoint.backoff_ms",
			Value:   c.Checkpoint.BackoffMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateBudget() []ValidationError {
	if c.Budget.WarningRatio < 0 || c.Budget.WarningRatio > 1 {
		return []ValidationError{{
			Field:   "budget.warning_ratio",
			Value:   c.Budget.WarningRatio,
			Message: "must be between 0 and 1 (0 = disabled)",
		}}
	}
	return nil
}

func (c *Config) validateLogging() []ValidationError {
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		return []ValidationError{{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		}}
	}
	return nil
}

func (c *Config) validateTelemetry() []ValidationError {
	if !slices.Contains(ValidExporters(), strings.ToLower(c.Telemetry.Exporter)) {
		return []ValidationError{{
			Field:   "telemetry.exporter",
			Value:   c.Telemetry.Exporter,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidExporters(), ", ")),
		}}
	}
	return nil
}
