// Package actor defines the contract between the scheduler and the roles it
// gives turns to.
//
// An actor never touches the budget ledger or the project state. It returns
// a Result describing its delta; the scheduler decides whether to commit it.
package actor

import (
	"context"

	"github.com/ratco/ratco/internal/project"
	"github.com/ratco/ratco/internal/role"
)

// Turn is the input handed to an actor for one role's turn in a round.
type Turn struct {
	RunID string
	Round int
	Idea  string
	Role  role.Role
	// Inputs holds the latest output of each kind the role depends on.
	Inputs   map[role.Kind]string
	Settings project.Settings

	// Subtask is the sub-task index when the turn is split by a Pool, and
	// Subtasks the total. A whole turn has Subtask 0 and Subtasks 1.
	Subtask  int
	Subtasks int
	// Review marks the review pass of a sub-task.
	Review bool
}

// Result is an actor's proposed delta.
type Result struct {
	Cost   float64
	Output string
	// Completed signals terminal success of the project.
	Completed bool
	// RequestCheckpoint asks for a checkpoint after the round commits.
	RequestCheckpoint bool
	// Subtasks is how many sub-task results were merged into this one.
	Subtasks int
}

// Actor performs a turn.
type Actor interface {
	Act(ctx context.Context, turn Turn) (Result, error)
}

// Func adapts a function to the Actor interface.
type Func func(ctx context.Context, turn Turn) (Result, error)

// Act calls f(ctx, turn).
func (f Func) Act(ctx context.Context, turn Turn) (Result, error) {
	return f(ctx, turn)
}

// Provider binds roles to actors.
type Provider interface {
	ActorFor(r role.Role) Actor
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(r role.Role) Actor

// ActorFor calls f(r).
func (f ProviderFunc) ActorFor(r role.Role) Actor {
	return f(r)
}

// PooledProvider wraps every actor of a role with parallel capacity above one
// in a Pool.
func PooledProvider(base Provider) Provider {
	return ProviderFunc(func(r role.Role) Actor {
		a := base.ActorFor(r)
		if r.ParallelCapacity() > 1 {
			return NewPool(a)
		}
		return a
	})
}
