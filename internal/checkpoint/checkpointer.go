package checkpoint

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ratco/ratco/internal/errors"
	"github.com/ratco/ratco/internal/project"
	"github.com/ratco/ratco/internal/team"
)

const (
	// SentinelToken must end the last path element of every checkpoint
	// location.
	SentinelToken = "team"

	fileName = "checkpoint.json"
)

// Checkpointer saves and recovers team checkpoints. Saves from the same
// process are serialized by a mutex. Across processes a save holds an
// exclusive file lock inside the location and a recovery a shared one.
type Checkpointer struct {
	mu     sync.Mutex
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Checkpointer.
type Option func(*Checkpointer)

// WithClock overrides the time source used for SavedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Checkpointer) {
		c.now = now
	}
}

// WithLogger sets the logger used for save and recover diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checkpointer) {
		c.logger = logger
	}
}

// New creates a Checkpointer.
func New(opts ...Option) *Checkpointer {
	c := &Checkpointer{
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateLocation checks that location names a checkpoint directory. It does
// not touch the filesystem.
func ValidateLocation(location string) error {
	if location == "" {
		return errors.NewCheckpointError("location is empty", errors.ErrInvalidCheckpointPath)
	}
	base := filepath.Base(filepath.Clean(location))
	if !strings.HasSuffix(base, SentinelToken) {
		return errors.NewCheckpointError(
			fmt.Sprintf("last path element %q does not end with %q", base, SentinelToken),
			errors.ErrInvalidCheckpointPath,
		).WithLocation(location)
	}
	return nil
}

// Save writes roster and state to location, creating the directory if
// needed. A failed save leaves any previous checkpoint intact.
func (c *Checkpointer) Save(location string, roster team.Roster, state *project.State) error {
	if err := ValidateLocation(location); err != nil {
		return err
	}
	if roster.IsEmpty() {
		return errors.NewCheckpointError("roster is empty", errors.ErrCheckpointSave).
			WithLocation(location)
	}
	if state == nil {
		return errors.NewCheckpointError("state is nil", errors.ErrCheckpointSave).WithLocation(location)
	}

	data, err := json.MarshalIndent(newDescriptor(roster, state, c.now()), "", "  ")
	if err != nil {
		return saveError(location, "marshal checkpoint", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(location, 0755); err != nil {
		return saveError(location, "create location", err)
	}

	fl := newFileLock(location)
	if err := fl.lock(); err != nil {
		return saveError(location, "acquire lock", err)
	}
	defer func() { _ = fl.unlock() }()

	if err := atomicWriteFile(filepath.Join(location, fileName), data); err != nil {
		return saveError(location, "write checkpoint", err)
	}

	c.logger.Debug("checkpoint saved",
		"location", location,
		"round_index", state.RoundIndex,
		"roles", roster.Len(),
	)
	return nil
}

// Recover reads the checkpoint at location and rebuilds the roster and state.
//
// A location that fails the name check, does not exist, or is not a
// directory yields ErrInvalidCheckpointPath. A valid directory whose content
// is missing or cannot be decoded yields ErrCorruptCheckpoint.
func (c *Checkpointer) Recover(location string) (team.Roster, *project.State, error) {
	if err := ValidateLocation(location); err != nil {
		return team.Roster{}, nil, err
	}

	info, err := os.Stat(location)
	if err != nil {
		msg := "location is not accessible"
		if errors.Is(err, fs.ErrNotExist) {
			msg = "location does not exist"
		}
		return team.Roster{}, nil, errors.NewCheckpointError(msg, errors.Join(errors.ErrInvalidCheckpointPath, err)).
			WithLocation(location)
	}
	if !info.IsDir() {
		return team.Roster{}, nil, errors.NewCheckpointError("location is not a directory", errors.ErrInvalidCheckpointPath).
			WithLocation(location)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fl := newFileLock(location)
	if err := fl.rlock(); err != nil {
		return team.Roster{}, nil, errors.NewCheckpointError("acquire read lock", errors.Join(errors.ErrInvalidCheckpointPath, err)).
			WithLocation(location)
	}
	defer func() { _ = fl.unlock() }()

	data, err := os.ReadFile(filepath.Join(location, fileName))
	if err != nil {
		msg := "read checkpoint"
		if errors.Is(err, fs.ErrNotExist) {
			msg = "location holds no checkpoint"
		}
		return team.Roster{}, nil, errors.NewCheckpointError(msg, errors.Join(errors.ErrCorruptCheckpoint, err)).
			WithLocation(location)
	}

	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return team.Roster{}, nil, errors.NewCheckpointError("parse checkpoint", errors.Join(errors.ErrCorruptCheckpoint, err)).
			WithLocation(location)
	}

	roster, state, err := d.decode()
	if err != nil {
		return team.Roster{}, nil, errors.NewCheckpointError("decode checkpoint", err).WithLocation(location)
	}

	c.logger.Info("checkpoint recovered",
		"location", location,
		"round_index", state.RoundIndex,
		"completed", state.Completed,
		"roster", roster.String(),
		"saved_at", d.SavedAt,
	)
	return roster, state, nil
}

func saveError(location, msg string, err error) error {
	return errors.NewCheckpointError(msg, errors.Join(errors.ErrCheckpointSave, err)).
		WithLocation(location).
		WithRetryable(true)
}

// atomicWriteFile writes data to path via a temp file in the same directory
// followed by a rename.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}
