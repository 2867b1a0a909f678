package actor

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/ratco/ratco/internal/role"
)

// Pool splits a turn into one sub-task per unit of the role's parallel
// capacity and runs them concurrently, at most capacity at a time. When the
// role has review enabled each sub-task is followed by a review pass on the
// same goroutine.
//
// Results are merged in sub-task index order. If any sub-task or review
// fails, the whole turn fails and no partial result is returned.
type Pool struct {
	actor Actor
}

// NewPool wraps an actor.
func NewPool(a Actor) *Pool {
	return &Pool{actor: a}
}

// Act runs the sub-tasks and merges their results.
func (p *Pool) Act(ctx context.Context, turn Turn) (Result, error) {
	n := turn.Role.ParallelCapacity()
	if n <= 1 {
		turn.Subtasks = 1
		res, err := p.actor.Act(ctx, turn)
		if err == nil && res.Subtasks == 0 {
			res.Subtasks = 1
		}
		return res, err
	}

	results := make([]Result, n)
	review := turn.Role.ReviewEnabled()

	cp := pool.New().WithMaxGoroutines(n).WithContext(ctx).WithCancelOnError()
	for i := 0; i < n; i++ {
		cp.Go(func(ctx context.Context) error {
			sub := turn
			sub.Subtask = i
			sub.Subtasks = n
			res, err := p.actor.Act(ctx, sub)
			if err != nil {
				return fmt.Errorf("sub-task %d: %w", i, err)
			}
			if review {
				rv := sub
				rv.Review = true
				rv.Inputs = withOutput(sub.Inputs, turn.Role.Kind(), res.Output)
				rres, err := p.actor.Act(ctx, rv)
				if err != nil {
					return fmt.Errorf("review of sub-task %d: %w", i, err)
				}
				res = mergeReview(res, rres)
			}
			results[i] = res
			return nil
		})
	}
	if err := cp.Wait(); err != nil {
		return Result{}, err
	}
	return merge(results), nil
}

// withOutput returns a copy of inputs with the sub-task's own output added
// for the reviewer.
func withOutput(inputs map[role.Kind]string, kind role.Kind, output string) map[role.Kind]string {
	out := maps.Clone(inputs)
	if out == nil {
		out = make(map[role.Kind]string, 1)
	}
	out[kind] = output
	return out
}

func merge(results []Result) Result {
	var out Result
	outputs := make([]string, 0, len(results))
	for _, r := range results {
		out.Cost += r.Cost
		out.Completed = out.Completed || r.Completed
		out.RequestCheckpoint = out.RequestCheckpoint || r.RequestCheckpoint
		if r.Output != "" {
			outputs = append(outputs, r.Output)
		}
	}
	out.Output = strings.Join(outputs, "\n")
	out.Subtasks = len(results)
	return out
}

func mergeReview(work, review Result) Result {
	work.Cost += review.Cost
	if review.Output != "" {
		work.Output += "\n" + review.Output
	}
	work.RequestCheckpoint = work.RequestCheckpoint || review.RequestCheckpoint
	return work
}
