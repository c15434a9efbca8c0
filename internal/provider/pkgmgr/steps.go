package pkgmgr

import (
	"fmt"
	"strings"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/ports"
	"github.com/cryonith/groundwork/internal/validation"
)

// InstallStep ensures a set of apt packages is installed.
type InstallStep struct {
	packages []string
	id       step.StepID
	runner   ports.CommandRunner
}

// NewInstallStep creates a new InstallStep covering all packages.
func NewInstallStep(packages []string, runner ports.CommandRunner) *InstallStep {
	return &InstallStep{
		packages: packages,
		id:       step.MustNewStepID(StepIDInstall),
		runner:   runner,
	}
}

// ID returns the step identifier.
func (s *InstallStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *InstallStep) DependsOn() []step.StepID {
	return nil
}

// Criticality returns how a failure affects the run. Nearly every other
// step needs these packages, so a failure here is fatal.
func (s *InstallStep) Criticality() step.Criticality {
	return step.Fatal
}

// missing queries dpkg for the subset of packages not yet installed.
// dpkg-query exits nonzero when any requested name is unknown but still
// prints the rest, so the output is parsed regardless of exit code.
func (s *InstallStep) missing(ctx step.RunContext) ([]string, error) {
	args := []string{"-W", "-f=${Package}\t${db:Status-Status}\n"}
	args = append(args, s.packages...)

	result, err := s.runner.Run(ctx.Context(), "dpkg-query", args...)
	if err != nil {
		return nil, err
	}

	installed := make(map[string]bool)
	for _, line := range strings.Split(result.Stdout, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) == 2 && fields[1] == "installed" {
			installed[fields[0]] = true
		}
	}

	var missing []string
	for _, pkg := range s.packages {
		if !installed[pkg] {
			missing = append(missing, pkg)
		}
	}
	return missing, nil
}

// Check determines if every package is already installed.
func (s *InstallStep) Check(ctx step.RunContext) (step.Status, error) {
	missing, err := s.missing(ctx)
	if err != nil {
		return step.StatusUnknown, err
	}
	if len(missing) == 0 {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *InstallStep) Plan(ctx step.RunContext) (step.Diff, error) {
	missing, err := s.missing(ctx)
	if err != nil {
		// The state query failed; show the worst case.
		missing = s.packages
	}
	if len(missing) == 0 {
		return step.NewDiff(step.DiffTypeNone, "packages", strings.Join(s.packages, " "), "", ""), nil
	}
	return step.NewDiff(step.DiffTypeAdd, "packages", strings.Join(missing, " "), "", "installed"), nil
}

// Apply installs the missing subset of packages. The subset is computed
// again here rather than carried over from Check, so the effect acts on
// the host as it is now.
func (s *InstallStep) Apply(ctx step.RunContext) error {
	// Validate package names before execution to prevent command injection
	for _, pkg := range s.packages {
		if err := validation.ValidatePackageName(pkg); err != nil {
			return fmt.Errorf("invalid package name: %w", err)
		}
	}

	missing, err := s.missing(ctx)
	if err != nil {
		return fmt.Errorf("failed to query installed packages: %w", err)
	}
	if len(missing) == 0 {
		return nil
	}

	update, err := s.runner.Run(ctx.Context(), "sudo", "apt-get", "update")
	if err != nil {
		return err
	}
	if !update.Success() {
		return fmt.Errorf("apt-get update failed: %s", update.Stderr)
	}

	args := append([]string{"apt-get", "install", "-y"}, missing...)
	result, err := s.runner.Run(ctx.Context(), "sudo", args...)
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("apt-get install %s failed: %s", strings.Join(missing, " "), result.Stderr)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *InstallStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Install apt packages",
		fmt.Sprintf("Ensures %s are installed, installing only the ones currently missing.", strings.Join(s.packages, ", ")),
	)
}

// Ensure InstallStep implements step.Step.
var _ step.Step = (*InstallStep)(nil)
