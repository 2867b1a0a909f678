// Package role is the static catalog of role kinds that can be hired into a
// team, together with the immutable Role value handed to the scheduler.
//
// Kind is a closed set: every kind is listed in the catalog below, and any
// other value is rejected with errors.ErrUnknownRoleKind. A Role is built once
// during composition and never mutated afterwards; its accessors return copies.
package role

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ratco/ratco/internal/errors"
)

// Kind identifies what a role does in the team.
type Kind string

const (
	KindTeamLeader     Kind = "team_leader"
	KindProductManager Kind = "product_manager"
	KindArchitect      Kind = "architect"
	KindProjectManager Kind = "project_manager"
	KindEngineer       Kind = "engineer"
	KindSeniorEngineer Kind = "senior_engineer"
	KindQaEngineer     Kind = "qa_engineer"
	KindSearcher       Kind = "searcher"
	KindDataAnalyst    Kind = "data_analyst"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if this is a registered kind.
func (k Kind) IsValid() bool {
	_, ok := catalog[k]
	return ok
}

// Tag is a capability marker attached to a role.
type Tag string

const (
	TagLeads            Tag = "leads"
	TagPlans            Tag = "plans"
	TagDesigns          Tag = "designs"
	TagWritesCode       Tag = "writes-code"
	TagCanReview        Tag = "can-review"
	TagParallelCapacity Tag = "parallel-capacity"
	TagRunsTests        Tag = "runs-tests"
	TagResearches       Tag = "researches"
	TagAnalyzes         Tag = "analyzes"
)

// Capabilities are the defaults a kind is hired with.
type Capabilities struct {
	Tags             []Tag
	ParallelCapacity int
	ReviewEnabled    bool
	// DependsOn lists kinds whose output this kind consumes. The dependency
	// only applies when the upstream kind is part of the roster.
	DependsOn []Kind
}

// catalog order is the order returned by Kinds.
var catalogOrder = []Kind{
	KindTeamLeader,
	KindProductManager,
	KindArchitect,
	KindProjectManager,
	KindEngineer,
	KindSeniorEngineer,
	KindQaEngineer,
	KindSearcher,
	KindDataAnalyst,
}

var catalog = map[Kind]Capabilities{
	KindTeamLeader:     {Tags: []Tag{TagLeads, TagCanReview}, ParallelCapacity: 1},
	KindProductManager: {Tags: []Tag{TagPlans}, ParallelCapacity: 1},
	KindArchitect:      {Tags: []Tag{TagDesigns}, ParallelCapacity: 1, DependsOn: []Kind{KindProductManager}},
	KindProjectManager: {Tags: []Tag{TagPlans}, ParallelCapacity: 1, DependsOn: []Kind{KindArchitect}},
	KindEngineer:       {Tags: []Tag{TagWritesCode}, ParallelCapacity: 1, DependsOn: []Kind{KindProjectManager}},
	KindSeniorEngineer: {Tags: []Tag{TagWritesCode, TagCanReview}, ParallelCapacity: 1},
	KindQaEngineer:     {Tags: []Tag{TagRunsTests}, ParallelCapacity: 1, DependsOn: []Kind{KindEngineer}},
	KindSearcher:       {Tags: []Tag{TagResearches}, ParallelCapacity: 1},
	KindDataAnalyst:    {Tags: []Tag{TagAnalyzes, TagWritesCode}, ParallelCapacity: 1},
}

// Kinds returns every registered kind in catalog order.
func Kinds() []Kind {
	return slices.Clone(catalogOrder)
}

// DefaultCapabilities returns the capabilities a kind is hired with by default.
func DefaultCapabilities(kind Kind) (Capabilities, error) {
	c, ok := catalog[kind]
	if !ok {
		return Capabilities{}, errors.NewRoleError(string(kind))
	}
	return Capabilities{
		Tags:             slices.Clone(c.Tags),
		ParallelCapacity: c.ParallelCapacity,
		ReviewEnabled:    c.ReviewEnabled,
		DependsOn:        slices.Clone(c.DependsOn),
	}, nil
}

// ParseKind resolves a user-supplied name to a Kind. Matching ignores case and
// treats '-', '_' and spaces as the same separator, and also accepts the
// CamelCase spelling ("QaEngineer").
func ParseKind(name string) (Kind, error) {
	if k := Kind(normalize(name)); k.IsValid() {
		return k, nil
	}
	return "", errors.NewRoleError(name)
}

func normalize(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '-' || r == ' ' || r == '_':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 && name[i-1] >= 'a' && name[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Role is one hired actor: a kind plus the capability flags it was hired
// with. The zero value is not a valid role; use New.
type Role struct {
	kind             Kind
	tags             []Tag
	parallelCapacity int
	reviewEnabled    bool
}

// Option adjusts a role's capabilities at hiring time.
type Option func(*Role)

// WithParallelCapacity sets how many concurrent sub-tasks the role may run.
// It also adds TagParallelCapacity when n > 1.
func WithParallelCapacity(n int) Option {
	return func(r *Role) {
		r.parallelCapacity = n
	}
}

// WithReview enables or disables the review pass.
func WithReview(enabled bool) Option {
	return func(r *Role) {
		r.reviewEnabled = enabled
	}
}

// WithTags replaces the default tag set.
func WithTags(tags ...Tag) Option {
	return func(r *Role) {
		r.tags = slices.Clone(tags)
	}
}

// New hires a role of the given kind starting from the kind's default
// capabilities.
func New(kind Kind, opts ...Option) (Role, error) {
	caps, err := DefaultCapabilities(kind)
	if err != nil {
		return Role{}, err
	}
	r := Role{
		kind:             kind,
		tags:             caps.Tags,
		parallelCapacity: caps.ParallelCapacity,
		reviewEnabled:    caps.ReviewEnabled,
	}
	for _, opt := range opts {
		opt(&r)
	}
	if r.parallelCapacity < 1 {
		return Role{}, errors.NewValidationError("parallel capacity must be >= 1").
			WithField("parallel_capacity").WithValue(r.parallelCapacity)
	}
	if r.parallelCapacity > 1 && !slices.Contains(r.tags, TagParallelCapacity) {
		r.tags = append(r.tags, TagParallelCapacity)
	}
	if r.reviewEnabled && !slices.Contains(r.tags, TagCanReview) {
		r.tags = append(r.tags, TagCanReview)
	}
	slices.Sort(r.tags)
	r.tags = slices.Compact(r.tags)
	return r, nil
}

// Kind returns the role's kind.
func (r Role) Kind() Kind { return r.kind }

// Tags returns a sorted copy of the role's capability tags.
func (r Role) Tags() []Tag { return slices.Clone(r.tags) }

// HasTag reports whether the role carries the tag.
func (r Role) HasTag(t Tag) bool { return slices.Contains(r.tags, t) }

// ParallelCapacity returns the number of concurrent sub-tasks per turn.
func (r Role) ParallelCapacity() int { return r.parallelCapacity }

// ReviewEnabled reports whether each sub-task gets a review pass.
func (r Role) ReviewEnabled() bool { return r.reviewEnabled }

// DependsOn returns the kinds whose output this role consumes.
func (r Role) DependsOn() []Kind {
	return slices.Clone(catalog[r.kind].DependsOn)
}

// Equal reports whether two roles have the same kind and capability flags.
func (r Role) Equal(o Role) bool {
	return r.kind == o.kind &&
		r.parallelCapacity == o.parallelCapacity &&
		r.reviewEnabled == o.reviewEnabled &&
		slices.Equal(r.tags, o.tags)
}

// String returns a short description such as "engineer(x5,review)".
func (r Role) String() string {
	s := string(r.kind)
	var flags []string
	if r.parallelCapacity > 1 {
		flags = append(flags, fmt.Sprintf("x%d", r.parallelCapacity))
	}
	if r.reviewEnabled {
		flags = append(flags, "review")
	}
	if len(flags) > 0 {
		s += "(" + strings.Join(flags, ",") + ")"
	}
	return s
}
