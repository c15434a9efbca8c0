// Package pkgmgr compiles the target's package list into apt steps.
package pkgmgr

import (
	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
)

// StepIDInstall is the well-known ID of the package installation step.
// Other providers depend on it when their resources need packages first.
const StepIDInstall = "packages:install:apt"

// Provider compiles package requirements into executable steps.
type Provider struct {
	runner ports.CommandRunner
}

// NewProvider creates a new package Provider.
func NewProvider(runner ports.CommandRunner) *Provider {
	return &Provider{runner: runner}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "packages"
}

// Compile transforms the target's package list into executable steps.
// The whole list becomes one step: the effect computes the missing
// subset at apply time and installs only that.
func (p *Provider) Compile(t *target.Descriptor) ([]step.Step, error) {
	packages := t.Packages()
	if len(packages) == 0 {
		return nil, nil
	}

	return []step.Step{NewInstallStep(packages, p.runner)}, nil
}

// Ensure Provider implements step.Provider.
var _ step.Provider = (*Provider)(nil)
