// Package dirtree provides the directory layout provider.
//
// The trading platform keeps everything under one install root with
// fixed config, logs, and data subdirectories, all owned by the
// provisioning user. Config file steps write into this tree, so they
// depend on StepIDTree.
package dirtree

import (
	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
)

// StepIDTree identifies the install tree step. Steps that write files
// under the install root depend on it.
const StepIDTree = "dirs:ensure:tree"

// Provider compiles directory steps for host targets.
type Provider struct {
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewProvider creates a new directory provider.
func NewProvider(runner ports.CommandRunner, fs ports.FileSystem) *Provider {
	return &Provider{
		runner: runner,
		fs:     fs,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "dirs"
}

// Compile generates the install tree step for the target.
func (p *Provider) Compile(t *target.Descriptor) ([]step.Step, error) {
	if t.InstallRoot() == "" {
		return nil, nil
	}

	return []step.Step{
		NewTreeStep(t.InstallRoot(), t.User(), p.runner, p.fs),
	}, nil
}

// Ensure Provider implements step.Provider.
var _ step.Provider = (*Provider)(nil)
