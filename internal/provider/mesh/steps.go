package mesh

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
	"github.com/cryonith/groundwork/internal/validation"
)

const backendRunning = "Running"

// tailnetStatus is the slice of `tailscale status --json` output the
// join step cares about.
type tailnetStatus struct {
	BackendState string `json:"BackendState"`
	Self         struct {
		HostName string `json:"HostName"`
	} `json:"Self"`
}

// InstallStep installs the tailscale client via the vendor script.
type InstallStep struct {
	id     step.StepID
	runner ports.CommandRunner
}

// NewInstallStep creates a step that installs tailscale.
func NewInstallStep(runner ports.CommandRunner) *InstallStep {
	return &InstallStep{
		id:     step.MustNewStepID(StepIDInstall),
		runner: runner,
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

// Criticality returns how failures of this step are treated.
func (s *InstallStep) Criticality() step.Criticality {
	return step.BestEffort
}

// Check verifies whether the tailscale binary is present.
func (s *InstallStep) Check(ctx step.RunContext) (step.Status, error) {
	result, err := s.runner.Run(ctx.Context(), "tailscale", "version")
	if err != nil {
		return step.StatusNeedsApply, nil //nolint:nilerr // intentional: command failure = needs apply
	}

	if result.Success() {
		return step.StatusSatisfied, nil
	}

	return step.StatusNeedsApply, nil
}

// Plan describes what Apply would do.
func (s *InstallStep) Plan(ctx step.RunContext) (step.Diff, error) {
	status, err := s.Check(ctx)
	if err != nil || status == step.StatusNeedsApply {
		return step.NewDiff(step.DiffTypeAdd, "package", "tailscale", "", "vendor install script"), nil
	}

	return step.NewDiff(step.DiffTypeNone, "package", "tailscale", "", ""), nil
}

// Apply installs tailscale using the official install script.
func (s *InstallStep) Apply(ctx step.RunContext) error {
	result, err := s.runner.Run(ctx.Context(), "sh", "-c", "curl -fsSL https://tailscale.com/install.sh | sh")
	if err != nil {
		return fmt.Errorf("failed to run tailscale installer: %w", err)
	}

	if !result.Success() {
		return fmt.Errorf("tailscale install failed: %s", result.Stderr)
	}

	return nil
}

// Explain provides a human-readable explanation.
func (s *InstallStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Install tailscale",
		"Downloads and runs the official tailscale install script.",
	)
}

// JoinStep brings the node up on the tailnet under its assigned name.
//
// Convergence is a single `tailscale up` carrying the full desired flag
// set. The node is never downed first: an already-joined host keeps its
// connections while a changed hostname or route set is reconciled.
type JoinStep struct {
	id     step.StepID
	mesh   target.Mesh
	runner ports.CommandRunner
}

// NewJoinStep creates a step that joins the tailnet.
func NewJoinStep(mesh target.Mesh, runner ports.CommandRunner) *JoinStep {
	return &JoinStep{
		id:     step.MustNewStepID(StepIDJoin),
		mesh:   mesh,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *JoinStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *JoinStep) DependsOn() []step.StepID {
	return []step.StepID{step.MustNewStepID(StepIDInstall)}
}

// Criticality returns how failures of this step are treated.
func (s *JoinStep) Criticality() step.Criticality {
	return step.BestEffort
}

// status queries the daemon. A nil status with a nil error means the
// node is not on a tailnet: the daemon reports "stopped" and "logged
// out" through a nonzero exit, and both are cured by Apply.
func (s *JoinStep) status(ctx step.RunContext) (*tailnetStatus, error) {
	result, err := s.runner.Run(ctx.Context(), "tailscale", "status", "--json")
	if err != nil {
		return nil, err
	}

	if !result.Success() {
		return nil, nil
	}

	var st tailnetStatus
	if err := json.Unmarshal([]byte(result.Stdout), &st); err != nil {
		return nil, fmt.Errorf("failed to parse tailscale status: %w", err)
	}

	return &st, nil
}

// Check verifies the node is connected under its assigned name.
func (s *JoinStep) Check(ctx step.RunContext) (step.Status, error) {
	st, err := s.status(ctx)
	if err != nil {
		return step.StatusUnknown, err
	}

	if st == nil {
		return step.StatusNeedsApply, nil
	}

	if st.BackendState == backendRunning && st.Self.HostName == s.mesh.NodeName {
		return step.StatusSatisfied, nil
	}

	return step.StatusNeedsApply, nil
}

// Plan describes what Apply would do.
func (s *JoinStep) Plan(ctx step.RunContext) (step.Diff, error) {
	st, err := s.status(ctx)
	if err != nil {
		// The state query failed; show the worst case.
		return step.NewDiff(step.DiffTypeAdd, "tailnet", s.mesh.NodeName, "", "joined"), nil
	}

	if st == nil {
		return step.NewDiff(step.DiffTypeAdd, "tailnet", s.mesh.NodeName, "", "joined"), nil
	}

	if st.BackendState == backendRunning && st.Self.HostName == s.mesh.NodeName {
		return step.NewDiff(step.DiffTypeNone, "tailnet", s.mesh.NodeName, "", ""), nil
	}

	return step.NewDiff(step.DiffTypeModify, "tailnet", s.mesh.NodeName, describeStatus(st), "joined as "+s.mesh.NodeName), nil
}

// Apply runs one reconciling `tailscale up` with the desired settings.
func (s *JoinStep) Apply(ctx step.RunContext) error {
	if err := validation.ValidateHostname(s.mesh.NodeName); err != nil {
		return fmt.Errorf("invalid node name: %w", err)
	}

	args := []string{"tailscale", "up", "--hostname", s.mesh.NodeName}
	if !s.mesh.AuthKey.IsZero() {
		args = append(args, "--authkey", s.mesh.AuthKey.Reveal())
	}
	if len(s.mesh.Routes) > 0 {
		args = append(args, "--advertise-routes", strings.Join(s.mesh.Routes, ","))
	}

	result, err := s.runner.Run(ctx.Context(), "sudo", args...)
	if err != nil {
		return fmt.Errorf("failed to run tailscale up: %w", err)
	}

	if !result.Success() {
		return fmt.Errorf("tailscale up failed: %s", result.Stderr)
	}

	return nil
}

// Explain provides a human-readable explanation.
func (s *JoinStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Join tailnet as "+s.mesh.NodeName,
		"Brings the node up on the mesh network with its assigned hostname, auth key and advertised routes.",
	)
}

func describeStatus(st *tailnetStatus) string {
	if st.BackendState != backendRunning {
		return strings.ToLower(st.BackendState)
	}

	return "joined as " + st.Self.HostName
}

// Ensure steps implement step.Step.
var (
	_ step.Step = (*InstallStep)(nil)
	_ step.Step = (*JoinStep)(nil)
)
