package actor

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ratco/ratco/internal/role"
)

// DefaultCostPerTurn is what the simulated actor charges per call.
const DefaultCostPerTurn = 0.01

// Simulated is a deterministic stand-in for a language-model backed role. It
// produces a short summary of what the role would deliver and charges a flat
// cost per call.
type Simulated struct {
	// CostPerTurn is charged for every call, review passes included.
	CostPerTurn float64
	// CompleteAfterRounds makes a leading role signal completion once that
	// many rounds have run. Zero never completes.
	CompleteAfterRounds int
	// Model names the configured LLM in outputs.
	Model string
}

// NewSimulatedProvider binds every role to the same simulated actor.
func NewSimulatedProvider(sim Simulated) Provider {
	return ProviderFunc(func(role.Role) Actor { return sim })
}

// Act produces the role's simulated output.
func (s Simulated) Act(ctx context.Context, turn Turn) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{
		Cost:   s.CostPerTurn,
		Output: s.describe(turn),
	}
	if turn.Role.HasTag(role.TagLeads) && !turn.Review &&
		s.CompleteAfterRounds > 0 && turn.Round+1 >= s.CompleteAfterRounds {
		res.Completed = true
	}
	return res, nil
}

func (s Simulated) describe(turn Turn) string {
	var b strings.Builder
	kind := turn.Role.Kind()
	fmt.Fprintf(&b, "[%s r%d", kind, turn.Round)
	if turn.Subtasks > 1 {
		fmt.Fprintf(&b, " %d/%d", turn.Subtask+1, turn.Subtasks)
	}
	if s.Model != "" {
		fmt.Fprintf(&b, " %s", s.Model)
	}
	b.WriteString("] ")

	if turn.Review {
		b.WriteString("reviewed changes")
		return b.String()
	}

	switch kind {
	case role.KindTeamLeader:
		fmt.Fprintf(&b, "coordinated team on %q", turn.Idea)
	case role.KindProductManager:
		fmt.Fprintf(&b, "wrote requirements for %q", turn.Idea)
	case role.KindArchitect:
		b.WriteString("designed system from requirements")
	case role.KindProjectManager:
		b.WriteString("broke design into tasks")
	case role.KindEngineer, role.KindSeniorEngineer:
		b.WriteString("implemented tasks")
		if name := turn.Settings.ProjectName; name != "" {
			fmt.Fprintf(&b, " in %s", name)
		}
		if turn.Settings.Incremental {
			b.WriteString(" (incremental)")
		}
		// one summary per round the role has written code in
		if turn.Settings.SummariesAllowed(turn.Round) {
			b.WriteString(", summarized code")
		}
	case role.KindQaEngineer:
		b.WriteString("ran tests")
		if turn.Settings.ReqaFile != "" {
			fmt.Fprintf(&b, " on %s", turn.Settings.ReqaFile)
		}
	case role.KindSearcher:
		fmt.Fprintf(&b, "researched %q", turn.Idea)
	case role.KindDataAnalyst:
		b.WriteString("analyzed data")
	default:
		b.WriteString("took a turn")
	}

	if len(turn.Inputs) > 0 {
		kinds := make([]string, 0, len(turn.Inputs))
		for k := range turn.Inputs {
			kinds = append(kinds, string(k))
		}
		slices.Sort(kinds)
		fmt.Fprintf(&b, " using %s", strings.Join(kinds, ","))
	}
	return b.String()
}
