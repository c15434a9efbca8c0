package pipeline

import (
	"context"
	"fmt"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/ports"
)

// Planner evaluates every step's precondition without running effects.
// It backs both the plan command and provisioning dry runs.
type Planner struct {
	guard  *Guard
	logger ports.Logger
}

// NewPlanner creates a new Planner.
func NewPlanner(logger ports.Logger) *Planner {
	return &Planner{
		guard:  NewGuard(logger),
		logger: logger,
	}
}

// Plan checks each step in topological order and records what a real
// run would do. Check failures surface as StatusUnknown entries rather
// than aborting the plan.
func (p *Planner) Plan(ctx context.Context, graph *step.Graph) (*Plan, error) {
	sorted, err := graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("failed to sort steps: %w", err)
	}

	plan := NewPlan()
	runCtx := step.NewRunContext(ports.ContextWithLogger(ctx, p.logger)).WithDryRun(true)

	for _, s := range sorted {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		status := p.guard.Evaluate(runCtx, s)

		var diff step.Diff
		if status.NeedsAction() {
			diff, err = s.Plan(runCtx)
			if err != nil {
				return nil, fmt.Errorf("failed to plan step %q: %w", s.ID().String(), err)
			}
		}

		plan.Add(NewPlanEntry(s, status, diff))
	}

	return plan, nil
}
