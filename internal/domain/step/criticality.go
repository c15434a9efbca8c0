package step

// Criticality classifies how a step's failure affects the rest of the
// run. The zero value is Fatal: a step must opt in to being skippable.
type Criticality int

const (
	// Fatal steps abort the run on failure. Nothing after them executes.
	Fatal Criticality = iota
	// BestEffort steps record their failure and let the run continue.
	// Steps that depend on a failed best-effort step are blocked, not run.
	BestEffort
)

// String returns the string representation of the criticality.
func (c Criticality) String() string {
	switch c {
	case Fatal:
		return "fatal"
	case BestEffort:
		return "best-effort"
	default:
		return "unknown"
	}
}

// IsFatal returns true if a failure of this step should abort the run.
func (c Criticality) IsFatal() bool {
	return c == Fatal
}
