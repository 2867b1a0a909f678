package project

import (
	"path/filepath"
	"strings"

	"github.com/ratco/ratco/internal/errors"
)

// UnlimitedSummaries disables the auto-summarize cap.
const UnlimitedSummaries = -1

// Settings are the per-run options passed by value to every component that
// needs them. They are resolved once and never modified.
type Settings struct {
	ProjectName string
	// Incremental reworks an existing project at ProjectPath.
	Incremental bool
	ProjectPath string
	// ReqaFile is the source file the QA role focuses on.
	ReqaFile string
	// MaxAutoSummarizeCode caps automatic code summaries; -1 is unlimited.
	MaxAutoSummarizeCode int
	Workspace            string
}

// Resolve applies the launcher defaults: a project path switches on
// incremental mode and names the project after the path's last element.
func (s Settings) Resolve() (Settings, error) {
	if s.MaxAutoSummarizeCode < UnlimitedSummaries {
		return s, errors.NewValidationError("must be >= -1").
			WithField("max_auto_summarize_code").WithValue(s.MaxAutoSummarizeCode)
	}
	if s.ProjectPath != "" {
		s.Incremental = true
		if s.ProjectName == "" {
			s.ProjectName = filepath.Base(filepath.Clean(s.ProjectPath))
		}
	}
	if s.Incremental && s.ProjectPath == "" {
		return s, errors.NewValidationError("incremental mode requires a project path").
			WithField("project_path")
	}
	s.ProjectName = strings.TrimSpace(s.ProjectName)
	return s, nil
}

// SummariesAllowed reports whether another automatic summary may run after
// done summaries.
func (s Settings) SummariesAllowed(done int) bool {
	return s.MaxAutoSummarizeCode == UnlimitedSummaries || done < s.MaxAutoSummarizeCode
}
