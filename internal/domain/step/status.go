package step

// Status is the result of checking a step's precondition against live
// host state.
type Status string

const (
	// StatusSatisfied indicates the step's desired state is already met.
	StatusSatisfied Status = "satisfied"
	// StatusNeedsApply indicates the step needs to be applied.
	StatusNeedsApply Status = "needs-apply"
	// StatusUnknown indicates the check itself failed. The engine fails
	// open: the step still runs, and the result records that the
	// pre-state was not confirmed.
	StatusUnknown Status = "unknown"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// NeedsAction returns true if the step's effect should run.
func (s Status) NeedsAction() bool {
	switch s {
	case StatusNeedsApply, StatusUnknown:
		return true
	case StatusSatisfied:
		return false
	}
	return false
}

// Confirmed returns true if the check actually observed host state,
// as opposed to failing and defaulting to action.
func (s Status) Confirmed() bool {
	return s == StatusSatisfied || s == StatusNeedsApply
}
