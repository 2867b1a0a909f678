package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// ArgumentError Tests
// -----------------------------------------------------------------------------

func TestArgumentError(t *testing.T) {
	err := NewArgumentError("IDEA", ErrMissingIdea)

	if !errors.Is(err, ErrMissingIdea) {
		t.Error("errors.Is(err, ErrMissingIdea) = false, want true")
	}
	if !err.IsUserFacing() {
		t.Error("IsUserFacing() = false, want true")
	}
	want := "argument error [argument=IDEA]: missing required argument: missing required idea"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// -----------------------------------------------------------------------------
// RoleError Tests
// -----------------------------------------------------------------------------

func TestRoleError(t *testing.T) {
	err := NewRoleError("wizard")

	if !errors.Is(err, ErrUnknownRoleKind) {
		t.Error("errors.Is(err, ErrUnknownRoleKind) = false, want true")
	}
	if !strings.Contains(err.Error(), `kind="wizard"`) {
		t.Errorf("Error() = %q, want kind in message", err.Error())
	}

	var roleErr *RoleError
	wrapped := fmt.Errorf("compose: %w", err)
	if !errors.As(wrapped, &roleErr) {
		t.Fatal("errors.As should find RoleError through wrapping")
	}
	if roleErr.Kind != "wizard" {
		t.Errorf("Kind = %q, want %q", roleErr.Kind, "wizard")
	}
}

// -----------------------------------------------------------------------------
// CheckpointError Tests
// -----------------------------------------------------------------------------

func TestCheckpointError(t *testing.T) {
	tests := []struct {
		name     string
		err      *CheckpointError
		sentinel error
		want     string
	}{
		{
			name:     "invalid path with location",
			err:      NewCheckpointError("location does not exist", ErrInvalidCheckpointPath).WithLocation("/tmp/missing_team"),
			sentinel: ErrInvalidCheckpointPath,
			want:     "checkpoint error [location=/tmp/missing_team]: location does not exist: invalid checkpoint path",
		},
		{
			name:     "corrupt without location",
			err:      NewCheckpointError("bad json", ErrCorruptCheckpoint),
			sentinel: ErrCorruptCheckpoint,
			want:     "checkpoint error: bad json: corrupt checkpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(err, %v) = false, want true", tt.sentinel)
			}
		})
	}
}

func TestCheckpointError_JoinedCause(t *testing.T) {
	ioErr := errors.New("permission denied")
	err := NewCheckpointError("write failed", Join(ErrCheckpointSave, ioErr)).WithRetryable(true)

	if !errors.Is(err, ErrCheckpointSave) {
		t.Error("joined cause should match ErrCheckpointSave")
	}
	if !errors.Is(err, ioErr) {
		t.Error("joined cause should match the underlying I/O error")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false, want true")
	}
}

// -----------------------------------------------------------------------------
// BudgetError Tests
// -----------------------------------------------------------------------------

func TestBudgetError(t *testing.T) {
	err := NewBudgetError("charge would overdraw", ErrBudgetExceeded).WithAmounts(0.01, 5, 5)

	if !errors.Is(err, ErrBudgetExceeded) {
		t.Error("errors.Is(err, ErrBudgetExceeded) = false, want true")
	}
	if err.Amount != 0.01 || err.Invested != 5 || err.Spent != 5 {
		t.Errorf("amounts = (%v, %v, %v), want (0.01, 5, 5)", err.Amount, err.Invested, err.Spent)
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityWarning)
	}
	if !strings.Contains(err.Error(), "amount=0.0100") {
		t.Errorf("Error() = %q, want formatted amount", err.Error())
	}
}

// -----------------------------------------------------------------------------
// ValidationError Tests
// -----------------------------------------------------------------------------

func TestValidationError(t *testing.T) {
	err := NewValidationError("must be >= -1").WithField("max_auto_summarize_code").WithValue(-3)

	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	want := "validation error [field=max_auto_summarize_code, value=-3]: must be >= -1"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	cause := errors.New("parse failure")
	withCause := NewValidationError("bad value").WithCause(cause)
	if !errors.Is(withCause, cause) {
		t.Error("ValidationError should unwrap to its cause")
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestClassification_PlainErrors(t *testing.T) {
	plain := errors.New("boom")

	if IsRetryable(plain) {
		t.Error("plain errors should not be retryable")
	}
	if IsUserFacing(plain) {
		t.Error("plain errors should not be user facing")
	}
	if IsUserFacing(nil) {
		t.Error("nil is not user facing")
	}
	if !IsUserFacing(Wrap(NewValidationError("bad"), "load")) {
		t.Error("wrapped validation errors should stay user facing")
	}
}

func TestIsPreRun(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"missing idea", NewArgumentError("IDEA", ErrMissingIdea), true},
		{"unknown role", NewRoleError("wizard"), true},
		{"invalid amount", NewBudgetError("investment must be positive", ErrInvalidAmount), true},
		{"invalid checkpoint", NewCheckpointError("absent", ErrInvalidCheckpointPath), true},
		{"corrupt checkpoint", Wrap(NewCheckpointError("bad", ErrCorruptCheckpoint), "recover"), true},
		{"budget exceeded", NewBudgetError("overdraw", ErrBudgetExceeded), false},
		{"save failure", NewCheckpointError("write", ErrCheckpointSave), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPreRun(tt.err); got != tt.want {
				t.Errorf("IsPreRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	err := Wrapf(ErrCorruptCheckpoint, "recover %s", "/tmp/x_team")
	if err.Error() != "recover /tmp/x_team: corrupt checkpoint" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !errors.Is(err, ErrCorruptCheckpoint) {
		t.Error("Wrapf should preserve the chain")
	}
}
