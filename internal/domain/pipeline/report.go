package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/cryonith/groundwork/internal/domain/target"
)

// Outcome is the overall verdict of a run.
type Outcome string

const (
	// OutcomeSuccess means every step applied or was already satisfied.
	OutcomeSuccess Outcome = "success"
	// OutcomePartialFailure means only best-effort steps failed.
	OutcomePartialFailure Outcome = "partial-failure"
	// OutcomeFatalFailure means a fatal step failed.
	OutcomeFatalFailure Outcome = "fatal-failure"
)

// String returns the outcome as a string.
func (o Outcome) String() string {
	return string(o)
}

// ExitCode maps the outcome to the process exit code.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSuccess:
		return 0
	case OutcomePartialFailure:
		return 2
	default:
		return 1
	}
}

// ReportSummary provides aggregate counts over a report.
type ReportSummary struct {
	Total   int
	Applied int
	Skipped int
	Failed  int
	Blocked int
	Unknown int // acted without a confirmed pre-state
}

// Report is the ordered record of one run. It accumulates results as
// the pipeline executes and is finalized exactly once at the end.
type Report struct {
	runID     string
	profile   string
	kind      target.Kind
	startedAt time.Time
	duration  time.Duration
	results   []StepResult
	outcome   Outcome
}

// NewReport creates an empty report for a run against the given target.
func NewReport(profile string, kind target.Kind) *Report {
	return &Report{
		runID:     uuid.NewString(),
		profile:   profile,
		kind:      kind,
		startedAt: time.Now(),
		results:   make([]StepResult, 0),
	}
}

// Append records the next step result in execution order.
func (r *Report) Append(result StepResult) {
	r.results = append(r.results, result)
}

// Finalize computes the run duration and overall outcome. A fatal step
// failure outweighs any number of best-effort ones.
func (r *Report) Finalize() {
	r.duration = time.Since(r.startedAt)

	r.outcome = OutcomeSuccess
	for _, result := range r.results {
		if !result.Failed() {
			continue
		}
		if result.Criticality().IsFatal() {
			r.outcome = OutcomeFatalFailure
			return
		}
		r.outcome = OutcomePartialFailure
	}
}

// RunID returns the unique identifier of this run.
func (r *Report) RunID() string {
	return r.runID
}

// Profile returns the provisioning profile the run executed.
func (r *Report) Profile() string {
	return r.profile
}

// TargetKind returns the kind of target the run executed against.
func (r *Report) TargetKind() target.Kind {
	return r.kind
}

// StartedAt returns when the run began.
func (r *Report) StartedAt() time.Time {
	return r.startedAt
}

// Duration returns the total run time. Zero until finalized.
func (r *Report) Duration() time.Duration {
	return r.duration
}

// Outcome returns the overall verdict. Empty until finalized.
func (r *Report) Outcome() Outcome {
	return r.outcome
}

// Results returns the step results in execution order.
func (r *Report) Results() []StepResult {
	results := make([]StepResult, len(r.results))
	copy(results, r.results)
	return results
}

// Len returns the number of recorded results.
func (r *Report) Len() int {
	return len(r.results)
}

// Summary returns aggregate counts.
func (r *Report) Summary() ReportSummary {
	summary := ReportSummary{Total: len(r.results)}
	for _, result := range r.results {
		switch result.Status() {
		case ResultApplied:
			summary.Applied++
		case ResultSkipped:
			summary.Skipped++
		case ResultFailed:
			summary.Failed++
		case ResultBlocked:
			summary.Blocked++
		}
		if result.PreStateUnknown() && result.Status() != ResultBlocked {
			summary.Unknown++
		}
	}
	return summary
}
