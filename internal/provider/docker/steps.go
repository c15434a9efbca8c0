package docker

import (
	"fmt"
	"strings"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/ports"
	"github.com/cryonith/groundwork/internal/provider/configfile"
	"github.com/cryonith/groundwork/internal/validation"
)

// DaemonStep ensures the docker daemon is enabled, running, and usable
// by the provisioning user.
type DaemonStep struct {
	user   string
	id     step.StepID
	runner ports.CommandRunner
}

// NewDaemonStep creates a new DaemonStep.
func NewDaemonStep(user string, runner ports.CommandRunner) *DaemonStep {
	return &DaemonStep{
		user:   user,
		id:     step.MustNewStepID(StepIDDaemon),
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *DaemonStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies. apt installs the engine and
// the compose plugin.
func (s *DaemonStep) DependsOn() []step.StepID {
	return daemonDeps()
}

// Criticality returns how a failure affects the run. Every container
// step needs a reachable daemon.
func (s *DaemonStep) Criticality() step.Criticality {
	return step.Fatal
}

// Check determines if the daemon answers. docker info only succeeds
// when the daemon runs and the caller may use the socket, which is
// exactly the state Apply establishes.
func (s *DaemonStep) Check(ctx step.RunContext) (step.Status, error) {
	result, err := s.runner.Run(ctx.Context(), "docker", "info")
	if err != nil {
		// Command not found means the engine needs to be set up.
		return step.StatusNeedsApply, nil //nolint:nilerr // intentional: command failure = needs apply
	}
	if result.Success() {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *DaemonStep) Plan(ctx step.RunContext) (step.Diff, error) {
	result, err := s.runner.Run(ctx.Context(), "docker", "info")
	if err == nil && result.Success() {
		return step.NewDiff(step.DiffTypeNone, "daemon", "docker", "", ""), nil
	}
	return step.NewDiff(step.DiffTypeModify, "daemon", "docker", "unreachable", "enabled, running"), nil
}

// Apply enables and starts the daemon, then grants the provisioning
// user socket access. Start rather than restart so running containers
// stay up on reruns.
func (s *DaemonStep) Apply(ctx step.RunContext) error {
	if err := validation.ValidateUsername(s.user); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	for _, args := range [][]string{
		{"systemctl", "enable", "docker"},
		{"systemctl", "start", "docker"},
		{"usermod", "-aG", "docker", s.user},
	} {
		result, err := s.runner.Run(ctx.Context(), "sudo", args...)
		if err != nil {
			return err
		}
		if !result.Success() {
			return fmt.Errorf("%s failed: %s", strings.Join(args, " "), result.Stderr)
		}
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *DaemonStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Start docker daemon",
		fmt.Sprintf("Enables and starts the docker engine and lets %s use it without sudo.", s.user),
	)
}

// NetworkStep ensures a named bridge network exists. The compose file
// references it as external, so it must exist before compose runs.
type NetworkStep struct {
	network string
	id      step.StepID
	runner  ports.CommandRunner
}

// NewNetworkStep creates a new NetworkStep.
func NewNetworkStep(network string, runner ports.CommandRunner) *NetworkStep {
	return &NetworkStep{
		network: network,
		id:      step.MustNewStepID(StepIDNetwork(network)),
		runner:  runner,
	}
}

// ID returns the step identifier.
func (s *NetworkStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *NetworkStep) DependsOn() []step.StepID {
	return []step.StepID{step.MustNewStepID(StepIDDaemon)}
}

// Criticality returns how a failure affects the run.
func (s *NetworkStep) Criticality() step.Criticality {
	return step.Fatal
}

// Check determines if the network exists. Inspect answers through its
// exit code: zero for present, nonzero for absent.
func (s *NetworkStep) Check(ctx step.RunContext) (step.Status, error) {
	result, err := s.runner.Run(ctx.Context(), "docker", "network", "inspect", s.network)
	if err != nil {
		return step.StatusUnknown, err
	}
	if result.Success() {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *NetworkStep) Plan(ctx step.RunContext) (step.Diff, error) {
	result, err := s.runner.Run(ctx.Context(), "docker", "network", "inspect", s.network)
	if err == nil && result.Success() {
		return step.NewDiff(step.DiffTypeNone, "network", s.network, "", ""), nil
	}
	return step.NewDiff(step.DiffTypeAdd, "network", s.network, "", "bridge"), nil
}

// Apply creates the bridge network. A create that loses a race to
// another run reports "already exists", which is the state this step
// wants, so that error is absorbed.
func (s *NetworkStep) Apply(ctx step.RunContext) error {
	if err := validation.ValidateNetworkName(s.network); err != nil {
		return fmt.Errorf("invalid network name: %w", err)
	}

	result, err := s.runner.Run(ctx.Context(), "docker", "network", "create", "--driver", "bridge", s.network)
	if err != nil {
		return err
	}
	if !result.Success() && !strings.Contains(result.Stderr, "already exists") {
		return fmt.Errorf("docker network create failed: %s", result.Stderr)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *NetworkStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Create docker network",
		fmt.Sprintf("Creates the %s bridge network the compose services attach to.", s.network),
	)
}

// ComposeStack describes the compose deployment a ComposeStep converges.
type ComposeStack struct {
	File     string
	Project  string
	Network  string
	Services []string
}

// ComposeStep ensures every service in the stack is running.
type ComposeStep struct {
	stack  ComposeStack
	id     step.StepID
	runner ports.CommandRunner
}

// NewComposeStep creates a new ComposeStep.
func NewComposeStep(stack ComposeStack, runner ports.CommandRunner) *ComposeStep {
	return &ComposeStep{
		stack:  stack,
		id:     step.MustNewStepID(StepIDComposeUp),
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *ComposeStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies: a reachable daemon, the
// external network, and the rendered compose and env files.
func (s *ComposeStep) DependsOn() []step.StepID {
	return []step.StepID{
		step.MustNewStepID(StepIDDaemon),
		step.MustNewStepID(StepIDNetwork(s.stack.Network)),
		step.MustNewStepID(configfile.StepIDComposeFile),
		step.MustNewStepID(configfile.StepIDEnvFile),
	}
}

// Criticality returns how a failure affects the run. The stack is the
// deployment.
func (s *ComposeStep) Criticality() step.Criticality {
	return step.Fatal
}

// running queries compose for the services currently up.
func (s *ComposeStep) running(ctx step.RunContext) (map[string]bool, error) {
	result, err := s.runner.Run(ctx.Context(),
		"docker", "compose", "-f", s.stack.File, "-p", s.stack.Project,
		"ps", "--services", "--filter", "status=running")
	if err != nil {
		return nil, err
	}

	up := make(map[string]bool)
	if !result.Success() {
		// No stack yet reports failure on some compose versions;
		// treat it as nothing running.
		return up, nil
	}
	for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
		if line != "" {
			up[line] = true
		}
	}
	return up, nil
}

// missing returns the expected services that are not running.
func (s *ComposeStep) missing(ctx step.RunContext) ([]string, error) {
	up, err := s.running(ctx)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, svc := range s.stack.Services {
		if !up[svc] {
			missing = append(missing, svc)
		}
	}
	return missing, nil
}

// Check determines if every expected service is running.
func (s *ComposeStep) Check(ctx step.RunContext) (step.Status, error) {
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
func (s *ComposeStep) Plan(ctx step.RunContext) (step.Diff, error) {
	missing, err := s.missing(ctx)
	if err != nil {
		// The state query failed; show the worst case.
		missing = s.stack.Services
	}
	if len(missing) == 0 {
		return step.NewDiff(step.DiffTypeNone, "compose", s.stack.Project, "", ""), nil
	}
	return step.NewDiff(step.DiffTypeAdd, "compose", strings.Join(missing, " "), "", "running"), nil
}

// Apply brings the stack up detached. compose up is itself convergent:
// it starts what is stopped, recreates what changed, and leaves the
// rest alone.
func (s *ComposeStep) Apply(ctx step.RunContext) error {
	if err := validation.ValidateProjectName(s.stack.Project); err != nil {
		return fmt.Errorf("invalid project name: %w", err)
	}
	if err := validation.ValidatePath(s.stack.File); err != nil {
		return fmt.Errorf("invalid compose file path: %w", err)
	}

	result, err := s.runner.Run(ctx.Context(),
		"docker", "compose", "-f", s.stack.File, "-p", s.stack.Project, "up", "-d")
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("docker compose up failed: %s", result.Stderr)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *ComposeStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Run compose stack",
		fmt.Sprintf("Brings up the %s services (%s) from %s.",
			s.stack.Project, strings.Join(s.stack.Services, ", "), s.stack.File),
	)
}

// Ensure all steps implement step.Step.
var (
	_ step.Step = (*DaemonStep)(nil)
	_ step.Step = (*NetworkStep)(nil)
	_ step.Step = (*ComposeStep)(nil)
)
