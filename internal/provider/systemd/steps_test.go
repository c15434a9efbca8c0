package systemd_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/ports"
	"github.com/cryonith/groundwork/internal/provider/systemd"
	"github.com/cryonith/groundwork/internal/testutil/mocks"
)

const unitPath = "/etc/systemd/system/cryonith-agent.service"

var unitContent = []byte("[Unit]\nDescription=Cryonith agent\n")

func addConvergedState(runner *mocks.CommandRunner) {
	runner.AddResult("systemctl", []string{"is-enabled", "cryonith-agent"}, ports.CommandResult{ExitCode: 0, Stdout: "enabled\n"})
	runner.AddResult("systemctl", []string{"is-active", "cryonith-agent"}, ports.CommandResult{ExitCode: 0, Stdout: "active\n"})
}

func TestUnitStep_ID(t *testing.T) {
	t.Parallel()

	s := systemd.NewUnitStep("cryonith-agent", unitContent, mocks.NewCommandRunner(), mocks.NewFileSystem())

	assert.Equal(t, "systemd:unit:cryonith-agent", s.ID().String())
}

func TestUnitStep_Criticality(t *testing.T) {
	t.Parallel()

	s := systemd.NewUnitStep("cryonith-agent", unitContent, mocks.NewCommandRunner(), mocks.NewFileSystem())

	assert.Equal(t, step.Fatal, s.Criticality())
}

func TestUnitStep_DependsOn(t *testing.T) {
	t.Parallel()

	s := systemd.NewUnitStep("cryonith-agent", unitContent, mocks.NewCommandRunner(), mocks.NewFileSystem())

	deps := make([]string, 0)
	for _, dep := range s.DependsOn() {
		deps = append(deps, dep.String())
	}
	assert.Contains(t, deps, "packages:install:apt")
	assert.Contains(t, deps, "config:render:env-file")
}

func TestUnitStep_Check_UnitFileMissing(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	s := systemd.NewUnitStep("cryonith-agent", unitContent, runner, mocks.NewFileSystem())

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)
	assert.Empty(t, runner.Calls(), "service state is not queried while the unit file is missing")
}

func TestUnitStep_Check_ContentDrift(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	fs := mocks.NewFileSystem()
	fs.SetFileContent(unitPath, []byte("[Unit]\nDescription=old unit\n"))

	s := systemd.NewUnitStep("cryonith-agent", unitContent, runner, fs)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)
}

func TestUnitStep_Check_ServiceStopped(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("systemctl", []string{"is-enabled", "cryonith-agent"}, ports.CommandResult{ExitCode: 0, Stdout: "enabled\n"})
	runner.AddResult("systemctl", []string{"is-active", "cryonith-agent"}, ports.CommandResult{ExitCode: 3, Stdout: "inactive\n"})
	fs := mocks.NewFileSystem()
	fs.SetFileContent(unitPath, unitContent)

	s := systemd.NewUnitStep("cryonith-agent", unitContent, runner, fs)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)
}

func TestUnitStep_Check_Converged(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	addConvergedState(runner)
	fs := mocks.NewFileSystem()
	fs.SetFileContent(unitPath, unitContent)

	s := systemd.NewUnitStep("cryonith-agent", unitContent, runner, fs)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.StatusSatisfied, status)
}

func TestUnitStep_Check_QueryError(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddError("systemctl", []string{"is-enabled", "cryonith-agent"}, errors.New("dbus unavailable"))
	fs := mocks.NewFileSystem()
	fs.SetFileContent(unitPath, unitContent)

	s := systemd.NewUnitStep("cryonith-agent", unitContent, runner, fs)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.Error(t, err)
	assert.Equal(t, step.StatusUnknown, status)
}

func TestUnitStep_Plan_NewUnit(t *testing.T) {
	t.Parallel()

	s := systemd.NewUnitStep("cryonith-agent", unitContent, mocks.NewCommandRunner(), mocks.NewFileSystem())

	diff, err := s.Plan(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.DiffTypeAdd, diff.Type())
	assert.Equal(t, "cryonith-agent", diff.Name())
}

func TestUnitStep_Plan_Stopped(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("systemctl", []string{"is-enabled", "cryonith-agent"}, ports.CommandResult{ExitCode: 0, Stdout: "enabled\n"})
	runner.AddResult("systemctl", []string{"is-active", "cryonith-agent"}, ports.CommandResult{ExitCode: 3, Stdout: "inactive\n"})
	fs := mocks.NewFileSystem()
	fs.SetFileContent(unitPath, unitContent)

	s := systemd.NewUnitStep("cryonith-agent", unitContent, runner, fs)

	diff, err := s.Plan(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.DiffTypeModify, diff.Type())
	assert.Equal(t, "stopped", diff.OldValue())
	assert.Equal(t, "enabled, active", diff.NewValue())
}

func TestUnitStep_Plan_Converged(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	addConvergedState(runner)
	fs := mocks.NewFileSystem()
	fs.SetFileContent(unitPath, unitContent)

	s := systemd.NewUnitStep("cryonith-agent", unitContent, runner, fs)

	diff, err := s.Plan(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.DiffTypeNone, diff.Type())
}

func TestUnitStep_Apply_InstallsAndConverges(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("sudo", []string{"systemctl", "daemon-reload"}, ports.CommandResult{ExitCode: 0})
	runner.AddResult("sudo", []string{"systemctl", "enable", "cryonith-agent"}, ports.CommandResult{ExitCode: 0})
	runner.AddResult("sudo", []string{"systemctl", "restart", "cryonith-agent"}, ports.CommandResult{ExitCode: 0})
	fs := mocks.NewFileSystem()

	s := systemd.NewUnitStep("cryonith-agent", unitContent, runner, fs)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, 1, fs.AtomicWriteCount(unitPath))
	assert.Equal(t, 1, runner.CallCount("sudo", "systemctl", "daemon-reload"))
	assert.Equal(t, 1, runner.CallCount("sudo", "systemctl", "enable", "cryonith-agent"))
	assert.Equal(t, 1, runner.CallCount("sudo", "systemctl", "restart", "cryonith-agent"))
}

func TestUnitStep_Apply_RestartFails(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("sudo", []string{"systemctl", "daemon-reload"}, ports.CommandResult{ExitCode: 0})
	runner.AddResult("sudo", []string{"systemctl", "enable", "cryonith-agent"}, ports.CommandResult{ExitCode: 0})
	runner.AddResult("sudo", []string{"systemctl", "restart", "cryonith-agent"}, ports.CommandResult{
		ExitCode: 1,
		Stderr:   "Job for cryonith-agent.service failed",
	})
	fs := mocks.NewFileSystem()

	s := systemd.NewUnitStep("cryonith-agent", unitContent, runner, fs)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cryonith-agent.service failed")
}

func TestUnitStep_Apply_RejectsInvalidServiceName(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	fs := mocks.NewFileSystem()

	// Slashes survive step ID validation but are not a legal unit name.
	s := systemd.NewUnitStep("agent/evil", unitContent, runner, fs)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.Error(t, err)
	assert.Empty(t, runner.Calls())
}
