package team

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ratco/ratco/internal/role"
)

// Roster is the ordered sequence of roles for a run. Order defines turn
// priority within a round.
type Roster struct {
	roles []role.Role
}

// NewRoster wraps roles in a roster, preserving order.
func NewRoster(roles ...role.Role) Roster {
	return Roster{roles: slices.Clone(roles)}
}

// Roles returns a copy of the roles in turn order.
func (r Roster) Roles() []role.Role {
	return slices.Clone(r.roles)
}

// Len returns the number of roles.
func (r Roster) Len() int {
	return len(r.roles)
}

// IsEmpty reports whether the roster has no roles.
func (r Roster) IsEmpty() bool {
	return len(r.roles) == 0
}

// At returns the role at position i.
func (r Roster) At(i int) role.Role {
	return r.roles[i]
}

// Contains reports whether any role of the kind is present.
func (r Roster) Contains(kind role.Kind) bool {
	return r.Count(kind) > 0
}

// Count returns how many roles of the kind are present.
func (r Roster) Count(kind role.Kind) int {
	n := 0
	for _, ro := range r.roles {
		if ro.Kind() == kind {
			n++
		}
	}
	return n
}

// Kinds returns the kind of each role in turn order.
func (r Roster) Kinds() []role.Kind {
	out := make([]role.Kind, len(r.roles))
	for i, ro := range r.roles {
		out[i] = ro.Kind()
	}
	return out
}

// Equal reports whether both rosters hold equal roles in the same order.
func (r Roster) Equal(o Roster) bool {
	return slices.EqualFunc(r.roles, o.roles, func(a, b role.Role) bool {
		return a.Equal(b)
	})
}

// Warnings lists policy violations that do not prevent a run.
func (r Roster) Warnings() []string {
	var out []string
	if n := r.Count(role.KindTeamLeader); n > 1 {
		out = append(out, fmt.Sprintf("roster has %d team leaders, expected at most one", n))
	}
	return out
}

// String renders the roster as "a, b, c(x5,review)".
func (r Roster) String() string {
	parts := make([]string, len(r.roles))
	for i, ro := range r.roles {
		parts[i] = ro.String()
	}
	return strings.Join(parts, ", ")
}
