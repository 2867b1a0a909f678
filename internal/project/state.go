// Package project holds the mutable state of a run and the immutable settings
// it was started with.
package project

import (
	"maps"

	"github.com/ratco/ratco/internal/role"
)

// State is the progress of a project across rounds. Only the scheduler
// mutates it, on behalf of role turn results.
type State struct {
	Idea       string
	RoundIndex int
	Completed  bool
	// Artifacts holds the latest output per role kind.
	Artifacts map[role.Kind]string
}

// NewState returns the initial state for an idea.
func NewState(idea string) *State {
	return &State{
		Idea:      idea,
		Artifacts: make(map[role.Kind]string),
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := *s
	c.Artifacts = maps.Clone(s.Artifacts)
	if c.Artifacts == nil {
		c.Artifacts = make(map[role.Kind]string)
	}
	return &c
}

// Artifact returns the latest output recorded for a kind.
func (s *State) Artifact(kind role.Kind) (string, bool) {
	out, ok := s.Artifacts[kind]
	return out, ok
}

// SetArtifact records a kind's latest output.
func (s *State) SetArtifact(kind role.Kind, output string) {
	if s.Artifacts == nil {
		s.Artifacts = make(map[role.Kind]string)
	}
	s.Artifacts[kind] = output
}
