package team

import (
	"github.com/ratco/ratco/internal/role"
)

// DefaultPoolCapacity is the parallel capacity of the engineer pool added by
// the implement and code-review flags.
const DefaultPoolCapacity = 5

// Flags are the run flags that drive roster augmentation.
type Flags struct {
	Implement  bool
	CodeReview bool
	RunTests   bool
	// PoolCapacity overrides DefaultPoolCapacity when > 0.
	PoolCapacity int
}

// DefaultKinds is the roster requested when the configuration names none.
func DefaultKinds() []role.Kind {
	return []role.Kind{
		role.KindTeamLeader,
		role.KindProductManager,
		role.KindArchitect,
		role.KindSeniorEngineer,
		role.KindEngineer,
		role.KindProjectManager,
	}
}

// Compose builds a roster from the requested kinds and run flags. It performs
// no I/O and fails only on an unknown kind.
func Compose(kinds []role.Kind, flags Flags) (Roster, error) {
	roles := make([]role.Role, 0, len(kinds)+2)
	for _, k := range kinds {
		r, err := role.New(k)
		if err != nil {
			return Roster{}, err
		}
		roles = append(roles, r)
	}

	if flags.Implement || flags.CodeReview {
		capacity := flags.PoolCapacity
		if capacity <= 0 {
			capacity = DefaultPoolCapacity
		}
		pool, err := role.New(role.KindEngineer,
			role.WithParallelCapacity(capacity),
			role.WithReview(flags.CodeReview),
		)
		if err != nil {
			return Roster{}, err
		}
		roles = append(roles, pool)
	}

	if flags.RunTests {
		qa, err := role.New(role.KindQaEngineer)
		if err != nil {
			return Roster{}, err
		}
		roles = append(roles, qa)
	}

	return Roster{roles: roles}, nil
}

// ParseKinds resolves configuration names into kinds, failing on the first
// unknown name.
func ParseKinds(names []string) ([]role.Kind, error) {
	kinds := make([]role.Kind, 0, len(names))
	for _, n := range names {
		k, err := role.ParseKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
