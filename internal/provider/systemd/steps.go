package systemd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/ports"
	"github.com/cryonith/groundwork/internal/validation"
)

// unitDir is where rendered units are installed.
const unitDir = "/etc/systemd/system"

// UnitStep keeps one service's unit file current and the service
// enabled and running.
type UnitStep struct {
	service  string
	unitPath string
	content  []byte
	id       step.StepID
	runner   ports.CommandRunner
	fs       ports.FileSystem
}

// NewUnitStep creates a unit step for a service.
func NewUnitStep(service string, content []byte, runner ports.CommandRunner, fs ports.FileSystem) *UnitStep {
	return &UnitStep{
		service:  service,
		unitPath: unitDir + "/" + service + ".service",
		content:  content,
		id:       step.MustNewStepID(StepIDUnit(service)),
		runner:   runner,
		fs:       fs,
	}
}

// ID returns the step identifier.
func (s *UnitStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *UnitStep) DependsOn() []step.StepID {
	return unitDeps()
}

// Criticality returns how a failure affects the run. The deployment is
// only successful if its services run.
func (s *UnitStep) Criticality() step.Criticality {
	return step.Fatal
}

func (s *UnitStep) contentHash() string {
	sum := sha256.Sum256(s.content)
	return hex.EncodeToString(sum[:])
}

// unitState queries systemd for the enable and active state. Both
// systemctl queries signal their answer through the exit code, so a
// nonzero exit here is state, not failure.
func (s *UnitStep) unitState(ctx step.RunContext) (enabled, active bool, err error) {
	enabledRes, err := s.runner.Run(ctx.Context(), "systemctl", "is-enabled", s.service)
	if err != nil {
		return false, false, err
	}
	activeRes, err := s.runner.Run(ctx.Context(), "systemctl", "is-active", s.service)
	if err != nil {
		return false, false, err
	}
	return enabledRes.Success(), activeRes.Success(), nil
}

// Check is satisfied only when the installed unit matches the rendered
// content and the service is both enabled and active.
func (s *UnitStep) Check(ctx step.RunContext) (step.Status, error) {
	if !s.fs.Exists(s.unitPath) {
		return step.StatusNeedsApply, nil
	}

	hash, err := s.fs.FileHash(s.unitPath)
	if err != nil {
		return step.StatusUnknown, err
	}
	if hash != s.contentHash() {
		return step.StatusNeedsApply, nil
	}

	enabled, active, err := s.unitState(ctx)
	if err != nil {
		return step.StatusUnknown, err
	}
	if !enabled || !active {
		return step.StatusNeedsApply, nil
	}
	return step.StatusSatisfied, nil
}

// Plan returns the diff for this step.
func (s *UnitStep) Plan(ctx step.RunContext) (step.Diff, error) {
	if !s.fs.Exists(s.unitPath) {
		return step.NewDiff(step.DiffTypeAdd, "unit", s.service, "", "enabled, active"), nil
	}

	hash, err := s.fs.FileHash(s.unitPath)
	if err != nil || hash != s.contentHash() {
		return step.NewDiff(step.DiffTypeModify, "unit", s.service, "content drift", "rendered unit"), nil
	}

	enabled, active, err := s.unitState(ctx)
	if err != nil {
		// The state query failed; show the worst case.
		return step.NewDiff(step.DiffTypeModify, "unit", s.service, "state unknown", "enabled, active"), nil
	}
	if enabled && active {
		return step.NewDiff(step.DiffTypeNone, "unit", s.service, "", ""), nil
	}
	return step.NewDiff(step.DiffTypeModify, "unit", s.service, describeState(enabled, active), "enabled, active"), nil
}

// Apply installs the unit and converges the service: write, reload the
// daemon, enable, restart. Restart rather than start so a service
// running with a stale unit picks up the new one.
func (s *UnitStep) Apply(ctx step.RunContext) error {
	if err := validation.ValidateServiceName(s.service); err != nil {
		return fmt.Errorf("invalid service name: %w", err)
	}

	if err := s.fs.WriteFileAtomic(s.unitPath, s.content, 0o644); err != nil {
		return fmt.Errorf("failed to write unit file: %w", err)
	}

	for _, args := range [][]string{
		{"systemctl", "daemon-reload"},
		{"systemctl", "enable", s.service},
		{"systemctl", "restart", s.service},
	} {
		result, err := s.runner.Run(ctx.Context(), "sudo", args...)
		if err != nil {
			return err
		}
		if !result.Success() {
			return fmt.Errorf("%s failed: %s", args[0]+" "+args[1], result.Stderr)
		}
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *UnitStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Run "+s.service+" under systemd",
		fmt.Sprintf("Installs %s and keeps the %s service enabled and running.", s.unitPath, s.service),
	)
}

func describeState(enabled, active bool) string {
	switch {
	case !enabled && !active:
		return "disabled, stopped"
	case !enabled:
		return "disabled"
	default:
		return "stopped"
	}
}

// Ensure UnitStep implements step.Step.
var _ step.Step = (*UnitStep)(nil)
