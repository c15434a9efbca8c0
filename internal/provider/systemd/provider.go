// Package systemd provides the service unit provider.
//
// Each managed service gets one step that owns the whole unit
// lifecycle: the unit file content, the enable state, and the running
// state. A service counts as converged only when all three hold, so a
// unit someone stopped by hand is drift and gets restarted.
package systemd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
	"github.com/cryonith/groundwork/internal/provider/configfile"
	"github.com/cryonith/groundwork/internal/provider/pkgmgr"
	"github.com/cryonith/groundwork/internal/templates"
)

// StepIDUnit returns the step ID for a service's unit step.
func StepIDUnit(service string) string {
	return "systemd:unit:" + service
}

// Provider compiles unit steps for host targets that run services
// directly under systemd.
type Provider struct {
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewProvider creates a new systemd provider.
func NewProvider(runner ports.CommandRunner, fs ports.FileSystem) *Provider {
	return &Provider{
		runner: runner,
		fs:     fs,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "systemd"
}

// Compile generates one unit step per managed service, in sorted order
// so the graph is deterministic. Only the pi runs services directly
// under systemd; the backend host runs its services under compose.
func (p *Provider) Compile(t *target.Descriptor) ([]step.Step, error) {
	if t.Kind() != target.KindPi || len(t.Services()) == 0 {
		return nil, nil
	}

	steps := make([]step.Step, 0, len(t.Services()))
	for _, name := range t.ServiceNames() {
		content, err := UnitContent(t, name)
		if err != nil {
			return nil, fmt.Errorf("failed to render unit for %s: %w", name, err)
		}
		steps = append(steps, NewUnitStep(name, content, p.runner, p.fs))
	}
	return steps, nil
}

// UnitContent renders the service's unit file. The service process is
// the platform's agent module run from the venv in the install root;
// the module name is the last dash-separated token of the service name,
// so cryonith-agent runs python -m agent. Ports and credentials reach
// the process through the env file, not the command line.
func UnitContent(t *target.Descriptor, service string) ([]byte, error) {
	tokens := strings.Split(service, "-")
	module := tokens[len(tokens)-1]

	python := filepath.Join(t.InstallRoot(), "venv", "bin", "python")

	unit, err := templates.GenerateSystemdUnit(templates.SystemdUnitData{
		Description:      "Cryonith " + module,
		User:             t.User(),
		WorkingDirectory: t.InstallRoot(),
		EnvironmentFile:  filepath.Join(t.InstallRoot(), configfile.EnvFileName),
		ExecStart:        python + " -m " + module,
	})
	if err != nil {
		return nil, err
	}
	return []byte(unit), nil
}

// Ensure Provider implements step.Provider.
var _ step.Provider = (*Provider)(nil)

// unitDeps are the steps every unit needs first: the interpreter comes
// from apt and the env file must exist before the service starts.
func unitDeps() []step.StepID {
	return []step.StepID{
		step.MustNewStepID(pkgmgr.StepIDInstall),
		step.MustNewStepID(configfile.StepIDEnvFile),
	}
}
