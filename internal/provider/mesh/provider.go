// Package mesh provides the tailnet membership provider.
//
// Hosts reach each other over tailscale. Convergence is one reconciling
// `tailscale up` with the full desired flag set; the node is never
// taken down first, so an already-joined host stays reachable while its
// settings are corrected.
package mesh

import (
	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
)

// Step IDs exported for cross-provider dependencies.
const (
	StepIDInstall = "mesh:install:tailscale"
	StepIDJoin    = "mesh:join:tailnet"
)

// Provider compiles tailnet steps for host targets.
type Provider struct {
	runner ports.CommandRunner
}

// NewProvider creates a new mesh provider.
func NewProvider(runner ports.CommandRunner) *Provider {
	return &Provider{runner: runner}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mesh"
}

// Compile generates the install and join steps. Both are best effort:
// the platform serves locally without the tailnet, which is for
// operator access and host-to-host traffic.
func (p *Provider) Compile(t *target.Descriptor) ([]step.Step, error) {
	if !t.Kind().IsHost() || t.Mesh().NodeName == "" {
		return nil, nil
	}

	return []step.Step{
		NewInstallStep(p.runner),
		NewJoinStep(t.Mesh(), p.runner),
	}, nil
}

// Ensure Provider implements step.Provider.
var _ step.Provider = (*Provider)(nil)
