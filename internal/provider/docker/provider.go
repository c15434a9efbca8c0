// Package docker provides the container runtime provider.
//
// The backend host runs its services under docker compose on a
// dedicated bridge network. Three steps converge it: the daemon must be
// running and reachable, the named network must exist before compose
// references it as external, and the compose stack must have every
// service up.
package docker

import (
	"path/filepath"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
	"github.com/cryonith/groundwork/internal/provider/configfile"
	"github.com/cryonith/groundwork/internal/provider/pkgmgr"
	"github.com/cryonith/groundwork/internal/templates"
)

// Step IDs exported for cross-provider dependencies.
const (
	StepIDDaemon    = "docker:daemon:active"
	StepIDComposeUp = "docker:compose:up"
)

// StepIDNetwork returns the step ID for a named network.
func StepIDNetwork(name string) string {
	return "docker:network:" + name
}

// Provider compiles container runtime steps for docker hosts.
type Provider struct {
	runner ports.CommandRunner
}

// NewProvider creates a new docker provider.
func NewProvider(runner ports.CommandRunner) *Provider {
	return &Provider{runner: runner}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "docker"
}

// Compile generates the daemon, network, and compose steps. Targets
// without a docker network configured get nothing; the pi serves its
// agent straight from systemd.
func (p *Provider) Compile(t *target.Descriptor) ([]step.Step, error) {
	backend := t.Backend()
	if backend.DockerNetwork == "" {
		return nil, nil
	}

	composeFile := filepath.Join(t.InstallRoot(), configfile.ComposeFileName)

	return []step.Step{
		NewDaemonStep(t.User(), p.runner),
		NewNetworkStep(backend.DockerNetwork, p.runner),
		NewComposeStep(ComposeStack{
			File:     composeFile,
			Project:  backend.ComposeProject,
			Network:  backend.DockerNetwork,
			Services: templates.ComposeServices(),
		}, p.runner),
	}, nil
}

// Ensure Provider implements step.Provider.
var _ step.Provider = (*Provider)(nil)

func daemonDeps() []step.StepID {
	return []step.StepID{step.MustNewStepID(pkgmgr.StepIDInstall)}
}
