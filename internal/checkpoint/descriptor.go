package checkpoint

import (
	"time"

	"github.com/ratco/ratco/internal/errors"
	"github.com/ratco/ratco/internal/project"
	"github.com/ratco/ratco/internal/role"
	"github.com/ratco/ratco/internal/team"
)

const (
	// DescriptorKind tags every checkpoint document.
	DescriptorKind = "ratco.team-checkpoint"
	// FormatVersion is the newest descriptor version this build reads and
	// the one it writes.
	FormatVersion = 1
)

// descriptor is the serializable checkpoint document.
type descriptor struct {
	Kind    string       `json:"kind"`
	Version int          `json:"version"`
	SavedAt time.Time    `json:"saved_at"`
	Roster  []roleRecord `json:"roster"`
	State   stateRecord  `json:"state"`
}

type roleRecord struct {
	Kind             string   `json:"kind"`
	Tags             []string `json:"tags"`
	ParallelCapacity int      `json:"parallel_capacity"`
	ReviewEnabled    bool     `json:"review_enabled"`
}

type stateRecord struct {
	Idea       string            `json:"idea"`
	RoundIndex int               `json:"round_index"`
	Completed  bool              `json:"completed"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
}

func newDescriptor(roster team.Roster, state *project.State, savedAt time.Time) descriptor {
	d := descriptor{
		Kind:    DescriptorKind,
		Version: FormatVersion,
		SavedAt: savedAt.UTC(),
		Roster:  make([]roleRecord, 0, roster.Len()),
		State: stateRecord{
			Idea:       state.Idea,
			RoundIndex: state.RoundIndex,
			Completed:  state.Completed,
		},
	}
	for _, r := range roster.Roles() {
		tags := r.Tags()
		rec := roleRecord{
			Kind:             string(r.Kind()),
			Tags:             make([]string, len(tags)),
			ParallelCapacity: r.ParallelCapacity(),
			ReviewEnabled:    r.ReviewEnabled(),
		}
		for i, t := range tags {
			rec.Tags[i] = string(t)
		}
		d.Roster = append(d.Roster, rec)
	}
	if len(state.Artifacts) > 0 {
		d.State.Artifacts = make(map[string]string, len(state.Artifacts))
		for k, v := range state.Artifacts {
			d.State.Artifacts[string(k)] = v
		}
	}
	return d
}

// decode validates the descriptor and rebuilds the live objects. Every
// failure wraps ErrCorruptCheckpoint.
func (d descriptor) decode() (team.Roster, *project.State, error) {
	if d.Kind != DescriptorKind {
		return team.Roster{}, nil, corrupt("unexpected descriptor kind %q", d.Kind)
	}
	if d.Version < 1 || d.Version > FormatVersion {
		return team.Roster{}, nil, corrupt("unsupported descriptor version %d", d.Version)
	}
	if len(d.Roster) == 0 {
		return team.Roster{}, nil, corrupt("roster is empty")
	}
	if d.State.Idea == "" {
		return team.Roster{}, nil, corrupt("state has no idea")
	}
	if d.State.RoundIndex < 0 {
		return team.Roster{}, nil, corrupt("negative round index %d", d.State.RoundIndex)
	}

	roles := make([]role.Role, 0, len(d.Roster))
	for i, rec := range d.Roster {
		kind := role.Kind(rec.Kind)
		tags := make([]role.Tag, len(rec.Tags))
		for j, t := range rec.Tags {
			tags[j] = role.Tag(t)
		}
		r, err := role.New(kind,
			role.WithTags(tags...),
			role.WithParallelCapacity(rec.ParallelCapacity),
			role.WithReview(rec.ReviewEnabled),
		)
		if err != nil {
			return team.Roster{}, nil, errors.Join(corrupt("roster entry %d", i), err)
		}
		roles = append(roles, r)
	}

	state := project.NewState(d.State.Idea)
	state.RoundIndex = d.State.RoundIndex
	state.Completed = d.State.Completed
	for k, v := range d.State.Artifacts {
		kind := role.Kind(k)
		if !kind.IsValid() {
			return team.Roster{}, nil, corrupt("artifact for unknown role kind %q", k)
		}
		state.SetArtifact(kind, v)
	}
	return team.NewRoster(roles...), state, nil
}

func corrupt(format string, args ...any) error {
	return errors.Wrapf(errors.ErrCorruptCheckpoint, format, args...)
}
