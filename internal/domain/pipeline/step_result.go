// Package pipeline executes compiled step graphs against a live host.
//
// Execution is strictly sequential in dependency order. Every effect is
// gated by a live precondition check immediately before it runs, so a
// step observes the host as earlier steps left it, not as it looked
// when the run started.
package pipeline

import (
	"time"

	"github.com/cryonith/groundwork/internal/domain/step"
)

// ResultStatus is the terminal state of one step in a run.
type ResultStatus string

const (
	// ResultApplied means the effect ran and returned no error.
	ResultApplied ResultStatus = "applied"
	// ResultSkipped means the precondition already held; no effect ran.
	ResultSkipped ResultStatus = "skipped"
	// ResultFailed means the effect ran and returned an error.
	ResultFailed ResultStatus = "failed"
	// ResultBlocked means a dependency failed or was blocked, so the
	// effect was never attempted.
	ResultBlocked ResultStatus = "blocked"
)

// String returns the status as a string.
func (s ResultStatus) String() string {
	return string(s)
}

// StepResult captures the outcome of one step in a run.
type StepResult struct {
	stepID      step.StepID
	status      ResultStatus
	preState    step.Status
	criticality step.Criticality
	err         error
	duration    time.Duration
	diff        step.Diff
}

// NewStepResult creates a new StepResult.
func NewStepResult(stepID step.StepID, status ResultStatus, err error) StepResult {
	return StepResult{
		stepID: stepID,
		status: status,
		err:    err,
	}
}

// StepID returns the ID of the step.
func (r StepResult) StepID() step.StepID {
	return r.stepID
}

// Status returns the terminal state of the step.
func (r StepResult) Status() ResultStatus {
	return r.status
}

// PreState returns what the precondition check observed before the
// pipeline acted. StatusUnknown means the check itself failed and the
// effect ran without a confirmed observation.
func (r StepResult) PreState() step.Status {
	return r.preState
}

// Criticality returns the criticality of the step that produced this result.
func (r StepResult) Criticality() step.Criticality {
	return r.criticality
}

// Error returns the failure, or nil.
func (r StepResult) Error() error {
	return r.err
}

// Duration returns how long the effect ran.
func (r StepResult) Duration() time.Duration {
	return r.duration
}

// Diff returns the change the step planned, if any was recorded.
func (r StepResult) Diff() step.Diff {
	return r.diff
}

// Success returns true if the step applied or was already satisfied.
func (r StepResult) Success() bool {
	return r.status == ResultApplied || r.status == ResultSkipped
}

// Failed returns true if the effect ran and failed.
func (r StepResult) Failed() bool {
	return r.status == ResultFailed
}

// Blocked returns true if the effect never ran because of an upstream failure.
func (r StepResult) Blocked() bool {
	return r.status == ResultBlocked
}

// PreStateUnknown returns true when the precondition check failed and
// the pipeline proceeded without a confirmed observation. These results
// deserve a closer look even when the apply succeeded.
func (r StepResult) PreStateUnknown() bool {
	return r.preState == step.StatusUnknown
}

// WithPreState returns a new StepResult with the observed pre-state set.
func (r StepResult) WithPreState(s step.Status) StepResult {
	r.preState = s
	return r
}

// WithCriticality returns a new StepResult with criticality set.
func (r StepResult) WithCriticality(c step.Criticality) StepResult {
	r.criticality = c
	return r
}

// WithDuration returns a new StepResult with duration set.
func (r StepResult) WithDuration(d time.Duration) StepResult {
	r.duration = d
	return r
}

// WithDiff returns a new StepResult with diff set.
func (r StepResult) WithDiff(d step.Diff) StepResult {
	r.diff = d
	return r
}
