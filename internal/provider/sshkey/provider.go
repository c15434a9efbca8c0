// Package sshkey provides the deploy key provider.
//
// Hosts pull releases over git+ssh with a dedicated deploy key rather
// than a personal one. The key lives in the provisioning user's
// ~/.ssh; the public half is what gets registered with the forge. An
// existing private key is never overwritten, since it may already be
// registered upstream.
package sshkey

import (
	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
)

// StepIDDeployKey is exported for cross-provider dependencies.
const StepIDDeployKey = "ssh:ensure:deploy-key"

// DefaultKeyPath is where the deploy key lives on the host.
const DefaultKeyPath = "~/.ssh/groundwork_deploy"

// Provider compiles the deploy key step for host targets.
type Provider struct {
	fs ports.FileSystem
}

// NewProvider creates a new sshkey provider.
func NewProvider(fs ports.FileSystem) *Provider {
	return &Provider{fs: fs}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "sshkey"
}

// Compile generates the deploy key step. The key is commented with the
// provisioning identity so it is recognizable in the forge's key list.
// Only the pi pulls releases over git; the backend host pulls images.
func (p *Provider) Compile(t *target.Descriptor) ([]step.Step, error) {
	if t.Kind() != target.KindPi {
		return nil, nil
	}

	comment := t.User() + "@" + t.Hostname()

	return []step.Step{
		NewDeployKeyStep(comment, ports.ExpandPath(DefaultKeyPath), p.fs),
	}, nil
}

// Ensure Provider implements step.Provider.
var _ step.Provider = (*Provider)(nil)
