package pipeline

import (
	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/ports"
)

// Guard evaluates a step's precondition against the live host.
//
// A failing check never stops provisioning: the step is treated as
// needing apply with an unknown pre-state and the check error is
// logged. Skipping a needed effect because a probe broke would leave
// the host half-provisioned; re-running an idempotent effect is safe.
type Guard struct {
	logger ports.Logger
}

// NewGuard creates a Guard that logs check failures through logger.
func NewGuard(logger ports.Logger) *Guard {
	return &Guard{logger: logger}
}

// Evaluate runs the step's precondition check and returns the observed
// state. The check runs at call time, immediately before the caller
// acts on the answer, so earlier effects in the same run are visible.
func (g *Guard) Evaluate(ctx step.RunContext, s step.Step) step.Status {
	status, err := s.Check(ctx)
	if err != nil {
		g.logger.Warn(ctx.Context(), "precondition check failed, applying anyway",
			ports.F("step", s.ID().String()),
			ports.F("error", err.Error()),
		)
		return step.StatusUnknown
	}
	return status
}
