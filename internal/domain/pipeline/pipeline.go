package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
)

// Pipeline runs a step graph to completion against a live target.
type Pipeline struct {
	guard           *Guard
	logger          ports.Logger
	continueOnFatal bool
}

// NewPipeline creates a new Pipeline.
func NewPipeline(logger ports.Logger) *Pipeline {
	return &Pipeline{
		guard:  NewGuard(logger),
		logger: logger,
	}
}

// WithContinueOnFatal returns a copy that records a fatal step's
// failure and keeps going instead of stopping the run. Dependents of
// the failed step are still blocked, and the run still finalizes as a
// fatal failure.
func (p *Pipeline) WithContinueOnFatal(enabled bool) *Pipeline {
	clone := *p
	clone.continueOnFatal = enabled
	return &clone
}

// Run executes every step in dependency order and returns the report.
//
// Ordering problems (cycles, missing dependencies) fail here, before
// any effect runs. After that the report is always returned, whatever
// happened: a fatal step failure stops the run and later steps never
// appear; a best-effort failure is recorded and the run continues with
// that step's dependents blocked. Cancellation is honored between
// steps, never in the middle of one.
func (p *Pipeline) Run(ctx context.Context, graph *step.Graph, t *target.Descriptor) (*Report, error) {
	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("dependency ordering: %w", err)
	}
	sorted, err := graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("dependency ordering: %w", err)
	}

	report := NewReport(t.Profile(), t.Kind())
	runCtx := step.NewRunContext(ports.ContextWithLogger(ctx, p.logger))
	unrunnable := make(map[string]bool)

	p.logger.Info(ctx, "starting run",
		ports.F("run_id", report.RunID()),
		ports.F("profile", t.Profile()),
		ports.F("steps", len(sorted)),
	)

	for _, s := range sorted {
		select {
		case <-ctx.Done():
			report.Finalize()
			return report, ctx.Err()
		default:
		}

		result := p.runStep(runCtx, s, unrunnable)
		report.Append(result)

		if result.Failed() || result.Blocked() {
			unrunnable[s.ID().String()] = true
		}
		if result.Failed() && s.Criticality().IsFatal() {
			if p.continueOnFatal {
				p.logger.Error(ctx, "fatal step failed, continuing in best-effort mode",
					ports.F("step", s.ID().String()),
					ports.F("error", result.Error().Error()),
				)
				continue
			}
			p.logger.Error(ctx, "fatal step failed, stopping run",
				ports.F("step", s.ID().String()),
				ports.F("error", result.Error().Error()),
			)
			break
		}
	}

	report.Finalize()
	return report, nil
}

// runStep executes one step through the guard.
func (p *Pipeline) runStep(ctx step.RunContext, s step.Step, unrunnable map[string]bool) StepResult {
	id := s.ID()

	// A step whose dependency failed or was itself blocked cannot
	// assume the host state its effect needs.
	for _, dep := range s.DependsOn() {
		if unrunnable[dep.String()] {
			p.logger.Warn(ctx.Context(), "step blocked by failed dependency",
				ports.F("step", id.String()),
				ports.F("dependency", dep.String()),
			)
			return NewStepResult(id, ResultBlocked, nil).
				WithCriticality(s.Criticality())
		}
	}

	pre := p.guard.Evaluate(ctx, s)
	if !pre.NeedsAction() {
		p.logger.Debug(ctx.Context(), "precondition satisfied, skipping",
			ports.F("step", id.String()),
		)
		return NewStepResult(id, ResultSkipped, nil).
			WithPreState(pre).
			WithCriticality(s.Criticality())
	}

	start := time.Now()
	err := s.Apply(ctx)
	duration := time.Since(start)

	if err != nil {
		return NewStepResult(id, ResultFailed, step.NewApplyFailedError(id.String(), err)).
			WithPreState(pre).
			WithCriticality(s.Criticality()).
			WithDuration(duration)
	}

	p.logger.Info(ctx.Context(), "step applied",
		ports.F("step", id.String()),
		ports.F("duration", duration.String()),
		ports.F("pre_state", pre.String()),
	)
	return NewStepResult(id, ResultApplied, nil).
		WithPreState(pre).
		WithCriticality(s.Criticality()).
		WithDuration(duration)
}
