// Package app wires adapters, providers, and the pipeline into the
// groundwork commands.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cryonith/groundwork/internal/adapters/command"
	"github.com/cryonith/groundwork/internal/adapters/filesystem"
	"github.com/cryonith/groundwork/internal/domain/pipeline"
	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
	"github.com/cryonith/groundwork/internal/provider/cloud"
	"github.com/cryonith/groundwork/internal/provider/configfile"
	"github.com/cryonith/groundwork/internal/provider/database"
	"github.com/cryonith/groundwork/internal/provider/dirtree"
	"github.com/cryonith/groundwork/internal/provider/docker"
	"github.com/cryonith/groundwork/internal/provider/mesh"
	"github.com/cryonith/groundwork/internal/provider/pkgmgr"
	"github.com/cryonith/groundwork/internal/provider/sshkey"
	"github.com/cryonith/groundwork/internal/provider/systemd"
)

// Groundwork is the main application orchestrator. It owns the host
// adapters and assembles the provider set for a target, leaving
// command handling (flags, confirmation, exit codes) to the caller.
type Groundwork struct {
	loader          *target.Loader
	runner          ports.CommandRunner
	fs              ports.FileSystem
	logger          ports.Logger
	out             io.Writer
	styles          printStyles
	continueOnFatal bool
}

// New creates a Groundwork wired to the real host adapters. Output
// meant for the operator goes to out; diagnostics go through logger.
func New(out io.Writer, logger ports.Logger) *Groundwork {
	return &Groundwork{
		loader: target.NewLoader(),
		runner: command.NewRealRunner(),
		fs:     filesystem.NewRealFileSystem(),
		logger: logger,
		out:    out,
		styles: newPrintStyles(out),
	}
}

// WithAdapters replaces the host adapters. Tests use this to run
// against mocks instead of the live host.
func (g *Groundwork) WithAdapters(runner ports.CommandRunner, fs ports.FileSystem) *Groundwork {
	g.runner = runner
	g.fs = fs
	return g
}

// WithCommandTimeout bounds each shell invocation. Zero keeps the
// default.
func (g *Groundwork) WithCommandTimeout(timeout time.Duration) *Groundwork {
	if timeout > 0 {
		g.runner = command.NewRealRunnerWithTimeout(timeout)
	}
	return g
}

// WithContinueOnFatal makes provisioning record fatal failures and
// keep going instead of stopping the run.
func (g *Groundwork) WithContinueOnFatal(enabled bool) *Groundwork {
	g.continueOnFatal = enabled
	return g
}

// LoadTarget resolves the descriptor for a profile, layering
// environment overrides and the optional target file onto the profile
// defaults.
func (g *Groundwork) LoadTarget(profile, targetPath string) (*target.Descriptor, error) {
	return g.loader.Load(profile, targetPath)
}

// Compile assembles the provider set for the target and compiles it
// into a validated step graph. Ordering problems (duplicate IDs,
// missing dependencies, cycles) surface here, before any effect runs.
func (g *Groundwork) Compile(ctx context.Context, t *target.Descriptor) (*step.Graph, error) {
	comp := step.NewCompiler()
	comp.RegisterProvider(pkgmgr.NewProvider(g.runner))
	comp.RegisterProvider(dirtree.NewProvider(g.runner, g.fs))
	comp.RegisterProvider(sshkey.NewProvider(g.fs))
	comp.RegisterProvider(configfile.NewProvider(g.runner, g.fs))
	comp.RegisterProvider(systemd.NewProvider(g.runner, g.fs))
	comp.RegisterProvider(docker.NewProvider(g.runner))
	comp.RegisterProvider(database.NewProvider(database.OpenPgx))
	comp.RegisterProvider(mesh.NewProvider(g.runner))

	// AWS clients are only built when the target declares account
	// resources; a host profile must provision without credentials.
	if declaresCloudResources(t.Cloud()) {
		clients, err := cloud.NewClients(ctx, t.Cloud())
		if err != nil {
			return nil, fmt.Errorf("failed to configure aws clients: %w", err)
		}
		comp.RegisterProvider(cloud.NewProvider(clients, g.fs))
	}

	return comp.Compile(t)
}

// Plan evaluates every precondition in the graph without running any
// effect and returns what a provisioning run would change.
func (g *Groundwork) Plan(ctx context.Context, graph *step.Graph) (*pipeline.Plan, error) {
	return pipeline.NewPlanner(g.logger).Plan(ctx, graph)
}

// Provision executes the graph against the live host and returns the
// report. The report is returned for every run that got past graph
// validation, whatever the outcome.
func (g *Groundwork) Provision(ctx context.Context, graph *step.Graph, t *target.Descriptor) (*pipeline.Report, error) {
	pipe := pipeline.NewPipeline(g.logger).WithContinueOnFatal(g.continueOnFatal)
	return pipe.Run(ctx, graph, t)
}

// declaresCloudResources reports whether the target asks for any
// account-level AWS resource.
func declaresCloudResources(c target.Cloud) bool {
	return len(c.Tables) > 0 || c.DataBucket != "" || c.ExecutionRole != "" || c.SecurityGroup != ""
}
