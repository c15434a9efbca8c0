// Package step defines the unit of provisioning work and the dependency
// graph it is assembled into. A step knows how to check whether the host
// already satisfies its goal, describe the change it would make, and
// apply that change. Steps never assume another step's effect except
// through declared dependencies.
package step

// Step is an idempotent unit of provisioning. Check inspects live host
// state; Apply converges it. Applying a step whose Check reports
// StatusSatisfied must be unnecessary, and applying twice must leave the
// host in the same state as applying once.
type Step interface {
	// ID returns the unique identifier for this step.
	ID() StepID

	// DependsOn returns the IDs of steps that must complete before this one.
	DependsOn() []StepID

	// Criticality reports whether a failure of this step aborts the run
	// or is recorded while the run continues.
	Criticality() Criticality

	// Check determines the current status of this step from live state.
	// Returns StatusSatisfied if no action is needed, StatusNeedsApply if
	// changes are required.
	Check(ctx RunContext) (Status, error)

	// Plan returns the diff describing what changes this step would make.
	Plan(ctx RunContext) (Diff, error)

	// Apply executes the step's changes.
	Apply(ctx RunContext) error

	// Explain returns human-readable context for this step.
	Explain(ctx ExplainContext) Explanation
}
