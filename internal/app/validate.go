package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cryonith/groundwork/internal/domain/step"
)

// ValidationResult contains the results of validating a profile's
// step graph without touching the host.
type ValidationResult struct {
	Errors   []string
	Warnings []string
	Info     []string
}

// Valid returns true when validation found no errors.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Validate builds the profile's step graph and runs the
// construction-time checks: provider compilation, duplicate step IDs,
// missing dependencies, and cycles. Nothing on the host is read or
// written beyond resolving the target descriptor.
func (g *Groundwork) Validate(ctx context.Context, profile, targetPath string) (*ValidationResult, error) {
	result := &ValidationResult{}

	t, err := g.LoadTarget(profile, targetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load target: %w", err)
	}

	result.Info = append(result.Info, fmt.Sprintf("Profile: %s (kind %s)", t.Profile(), t.Kind()))
	if targetPath != "" {
		result.Info = append(result.Info, fmt.Sprintf("Target file: %s", targetPath))
	}

	graph, err := g.Compile(ctx, t)
	if err != nil {
		var stepErr *step.StepError
		if errors.As(err, &stepErr) {
			result.Errors = append(result.Errors, stepErr.Format())
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
		return result, nil
	}

	steps := graph.Steps()
	result.Info = append(result.Info, fmt.Sprintf("Compiled %d steps", len(steps)))
	if len(steps) == 0 {
		result.Warnings = append(result.Warnings, "No steps compiled; the target descriptor selects nothing for this profile")
	}

	g.validateGraph(graph, result)

	return result, nil
}

// validateGraph re-runs the ordering checks against the compiled
// graph and records the criticality split.
func (g *Groundwork) validateGraph(graph *step.Graph, result *ValidationResult) {
	steps := graph.Steps()

	seen := make(map[string]bool)
	for _, s := range steps {
		id := s.ID().String()
		if seen[id] {
			result.Errors = append(result.Errors, fmt.Sprintf("Duplicate step ID: %s", id))
		}
		seen[id] = true
	}

	for _, s := range steps {
		for _, dep := range s.DependsOn() {
			if _, exists := graph.Get(dep); !exists {
				result.Errors = append(result.Errors, fmt.Sprintf("Step %s depends on missing step: %s", s.ID(), dep))
			}
		}
	}

	if _, err := graph.TopologicalSort(); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Dependency ordering failed: %v", err))
	}

	fatal := 0
	for _, s := range steps {
		if s.Criticality().IsFatal() {
			fatal++
		}
	}
	result.Info = append(result.Info, fmt.Sprintf("%d fatal, %d best-effort", fatal, len(steps)-fatal))
}
