package actor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ratco/ratco/internal/project"
	"github.com/ratco/ratco/internal/role"
)

func mustRole(t *testing.T, kind role.Kind, opts ...role.Option) role.Role {
	t.Helper()
	r, err := role.New(kind, opts...)
	if err != nil {
		t.Fatalf("role.New(%s): %v", kind, err)
	}
	return r
}

func TestSimulated_ChargesAndDescribes(t *testing.T) {
	sim := Simulated{CostPerTurn: 0.1, Model: "gpt-4-turbo"}
	turn := Turn{
		Round:    2,
		Idea:     "snake game",
		Role:     mustRole(t, role.KindEngineer),
		Inputs:   map[role.Kind]string{role.KindProjectManager: "tasks"},
		Settings: project.Settings{ProjectName: "snake"},
	}

	res, err := sim.Act(context.Background(), turn)
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if res.Cost != 0.1 {
		t.Errorf("Cost = %v, want 0.1", res.Cost)
	}
	for _, want := range []string{"engineer r2", "gpt-4-turbo", "in snake", "using project_manager"} {
		if !strings.Contains(res.Output, want) {
			t.Errorf("Output = %q, missing %q", res.Output, want)
		}
	}
	if res.Completed {
		t.Error("engineer must not signal completion")
	}
}

func TestSimulated_SummaryCap(t *testing.T) {
	tests := []struct {
		name  string
		max   int
		kind  role.Kind
		round int
		want  bool
	}{
		{"disabled", 0, role.KindEngineer, 0, false},
		{"within cap", 2, role.KindEngineer, 1, true},
		{"cap reached", 2, role.KindEngineer, 2, false},
		{"unlimited", project.UnlimitedSummaries, role.KindSeniorEngineer, 50, true},
		{"not a coding role", project.UnlimitedSummaries, role.KindArchitect, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Simulated{}.Act(context.Background(), Turn{
				Round:    tt.round,
				Role:     mustRole(t, tt.kind),
				Settings: project.Settings{MaxAutoSummarizeCode: tt.max},
			})
			if err != nil {
				t.Fatalf("Act: %v", err)
			}
			if got := strings.Contains(res.Output, "summarized code"); got != tt.want {
				t.Errorf("Output = %q, summarized = %v, want %v", res.Output, got, tt.want)
			}
		})
	}
}

func TestSimulated_LeaderCompletion(t *testing.T) {
	tests := []struct {
		name          string
		completeAfter int
		round         int
		kind          role.Kind
		want          bool
	}{
		{"never", 0, 10, role.KindTeamLeader, false},
		{"before threshold", 3, 1, role.KindTeamLeader, false},
		{"at threshold", 3, 2, role.KindTeamLeader, true},
		{"non leader", 1, 5, role.KindArchitect, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := Simulated{CompleteAfterRounds: tt.completeAfter}
			res, err := sim.Act(context.Background(), Turn{Round: tt.round, Role: mustRole(t, tt.kind)})
			if err != nil {
				t.Fatalf("Act: %v", err)
			}
			if res.Completed != tt.want {
				t.Errorf("Completed = %v, want %v", res.Completed, tt.want)
			}
		})
	}
}

func TestSimulated_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Simulated{}).Act(ctx, Turn{Role: mustRole(t, role.KindArchitect)}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestPool_SingleCapacityPassesThrough(t *testing.T) {
	var calls atomic.Int32
	p := NewPool(Func(func(ctx context.Context, turn Turn) (Result, error) {
		calls.Add(1)
		return Result{Cost: 1, Output: "one"}, nil
	}))

	res, err := p.Act(context.Background(), Turn{Role: mustRole(t, role.KindEngineer)})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if calls.Load() != 1 || res.Subtasks != 1 || res.Output != "one" {
		t.Errorf("calls = %d, result = %+v", calls.Load(), res)
	}
}

func TestPool_MergesInIndexOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	p := NewPool(Func(func(ctx context.Context, turn Turn) (Result, error) {
		mu.Lock()
		seen = append(seen, turn.Subtask)
		mu.Unlock()
		if turn.Subtasks != 5 {
			t.Errorf("Subtasks = %d, want 5", turn.Subtasks)
		}
		return Result{Cost: 0.5, Output: string(rune('a' + turn.Subtask))}, nil
	}))

	res, err := p.Act(context.Background(), Turn{
		Role: mustRole(t, role.KindEngineer, role.WithParallelCapacity(5)),
	})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if res.Output != "a\nb\nc\nd\ne" {
		t.Errorf("Output = %q, want sub-task order", res.Output)
	}
	if res.Cost != 2.5 {
		t.Errorf("Cost = %v, want 2.5", res.Cost)
	}
	if res.Subtasks != 5 || len(seen) != 5 {
		t.Errorf("Subtasks = %d, calls = %d", res.Subtasks, len(seen))
	}
}

func TestPool_ReviewPass(t *testing.T) {
	var reviews atomic.Int32
	p := NewPool(Func(func(ctx context.Context, turn Turn) (Result, error) {
		if turn.Review {
			reviews.Add(1)
			if turn.Inputs[role.KindEngineer] != "work" {
				t.Errorf("review input = %q, want sub-task output", turn.Inputs[role.KindEngineer])
			}
			return Result{Cost: 0.1, Output: "lgtm"}, nil
		}
		return Result{Cost: 1, Output: "work"}, nil
	}))

	res, err := p.Act(context.Background(), Turn{
		Role: mustRole(t, role.KindEngineer, role.WithParallelCapacity(3), role.WithReview(true)),
	})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if reviews.Load() != 3 {
		t.Errorf("reviews = %d, want 3", reviews.Load())
	}
	if res.Cost < 3.29 || res.Cost > 3.31 {
		t.Errorf("Cost = %v, want 3.3", res.Cost)
	}
	if strings.Count(res.Output, "lgtm") != 3 {
		t.Errorf("Output = %q, want a review per sub-task", res.Output)
	}
}

func TestPool_SubtaskFailureFailsTurn(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool(Func(func(ctx context.Context, turn Turn) (Result, error) {
		if turn.Subtask == 2 {
			return Result{}, boom
		}
		return Result{Cost: 1, Output: "ok"}, nil
	}))

	res, err := p.Act(context.Background(), Turn{
		Role: mustRole(t, role.KindEngineer, role.WithParallelCapacity(4)),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if res.Cost != 0 || res.Output != "" {
		t.Errorf("failed turn must carry no delta, got %+v", res)
	}
}

func TestPooledProvider(t *testing.T) {
	base := NewSimulatedProvider(Simulated{CostPerTurn: 0.05})
	provider := PooledProvider(base)

	if _, ok := provider.ActorFor(mustRole(t, role.KindEngineer, role.WithParallelCapacity(5))).(*Pool); !ok {
		t.Error("pooled role should be bound to a Pool")
	}
	if _, ok := provider.ActorFor(mustRole(t, role.KindArchitect)).(Simulated); !ok {
		t.Error("single-capacity role should be bound to the base actor")
	}
}
