// Package configfile provides the rendered configuration provider.
//
// Artifacts are rendered once at compile time from the target
// descriptor, then reconciled against the host by content hash: a step
// is satisfied when the on-disk file hashes to the rendered bytes, and
// its effect replaces the file atomically so an interrupted run never
// leaves a truncated config behind.
package configfile

import (
	"fmt"
	"path/filepath"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
	"github.com/cryonith/groundwork/internal/provider/dirtree"
	"github.com/cryonith/groundwork/internal/provider/pkgmgr"
	"github.com/cryonith/groundwork/internal/templates"
	"github.com/cryonith/groundwork/internal/validation"
)

// Step IDs exported for cross-provider dependencies.
const (
	StepIDNginxSite    = "config:render:nginx-site"
	StepIDNginxDefault = "config:remove:nginx-default"
	StepIDEnvFile      = "config:render:env-file"
	StepIDComposeFile  = "config:render:compose-file"
)

// nginxSitePath is where the site is written. Writing straight into
// sites-enabled skips the sites-available symlink dance; the content
// hash makes the write idempotent either way.
const nginxSitePath = "/etc/nginx/sites-enabled/cryonith"

// nginxDefaultPath is the distribution default site that would shadow
// unmatched hosts on port 80.
const nginxDefaultPath = "/etc/nginx/sites-enabled/default"

// EnvFileName is the env file rendered into the install root. The
// compose file references it by this name.
const EnvFileName = ".env.production"

// ComposeFileName is the compose file rendered into the install root.
const ComposeFileName = "docker-compose.yml"

// Provider compiles rendered config steps for host targets.
type Provider struct {
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewProvider creates a new config file provider.
func NewProvider(runner ports.CommandRunner, fs ports.FileSystem) *Provider {
	return &Provider{
		runner: runner,
		fs:     fs,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "config"
}

// Compile renders the artifacts the target kind needs and wraps each in
// a reconciling step. Rendering happens here, not at apply time, so a
// template problem surfaces before anything touches the host.
func (p *Provider) Compile(t *target.Descriptor) ([]step.Step, error) {
	switch t.Kind() {
	case target.KindPi:
		return p.compileNginx(t)
	case target.KindEC2:
		return p.compileBackend(t)
	default:
		return nil, nil
	}
}

// RenderNginxSite renders the reverse-proxy site for the target. The
// site listens on port 80 and proxies the API paths to the backend
// port on loopback.
func RenderNginxSite(t *target.Descriptor) (string, error) {
	return templates.GenerateNginxSite(templates.NginxSiteData{
		ServerName:  t.Backend().Domain,
		ListenPort:  80,
		BackendPort: t.Backend().Port,
	})
}

// RenderComposeFile renders the compose stack for the target.
func RenderComposeFile(t *target.Descriptor) (string, error) {
	backend := t.Backend()
	return templates.GenerateComposeFile(templates.ComposeFileData{
		Image:   backend.ComposeProject + "/backend:latest",
		APIPort: backend.Port,
		Network: backend.DockerNetwork,
		EnvFile: EnvFileName,
	})
}

// RenderEnvFile renders the production env file for the target. This
// is the one place secret material leaves the Secret type; the file
// step writes the result mode 0600. A newline inside a value would
// inject extra variables into the file, so every value is checked
// first. Errors name the variable, never the value.
func RenderEnvFile(t *target.Descriptor) (string, error) {
	backend := t.Backend()

	values := []struct {
		name  string
		value string
	}{
		{"DATABASE_URL", backend.DatabaseURL.Reveal()},
		{"REDIS_URL", backend.RedisURL.Reveal()},
		{"JWT_SECRET", backend.JWTSecret.Reveal()},
		{"AWS_REGION", t.Cloud().Region},
	}
	for _, v := range values {
		if err := validation.ValidateEnvValue(v.value); err != nil {
			return "", fmt.Errorf("%s: %w", v.name, err)
		}
	}

	return templates.GenerateEnvFile(templates.EnvFileData{
		DatabaseURL: backend.DatabaseURL.Reveal(),
		RedisURL:    backend.RedisURL.Reveal(),
		JWTSecret:   backend.JWTSecret.Reveal(),
		APIPort:     backend.Port,
		Environment: "production",
		AWSRegion:   t.Cloud().Region,
		LogLevel:    "info",
	})
}

// compileNginx produces the reverse-proxy site and env file for the pi
// host. The nginx steps depend on the package step because apt installs
// nginx and lays down the default site this removes; the agent's unit
// reads the env file, which lands in the install tree.
func (p *Provider) compileNginx(t *target.Descriptor) ([]step.Step, error) {
	site, err := RenderNginxSite(t)
	if err != nil {
		return nil, fmt.Errorf("failed to render nginx site: %w", err)
	}

	envStep, err := p.envFileStep(t)
	if err != nil {
		return nil, err
	}

	deps := []string{pkgmgr.StepIDInstall}

	return []step.Step{
		NewRenderedFileStep(RenderedFile{
			ID:        StepIDNginxSite,
			Path:      nginxSitePath,
			Content:   []byte(site),
			Mode:      0o644,
			Reload:    "nginx",
			DependsOn: deps,
		}, p.runner, p.fs),
		NewRemoveFileStep(StepIDNginxDefault, nginxDefaultPath, "nginx", deps, p.runner, p.fs),
		envStep,
	}, nil
}

// compileBackend produces the env file and compose file for the docker
// host. Both land in the install tree, so both depend on it.
func (p *Provider) compileBackend(t *target.Descriptor) ([]step.Step, error) {
	envStep, err := p.envFileStep(t)
	if err != nil {
		return nil, err
	}

	compose, err := RenderComposeFile(t)
	if err != nil {
		return nil, fmt.Errorf("failed to render compose file: %w", err)
	}

	return []step.Step{
		envStep,
		NewRenderedFileStep(RenderedFile{
			ID:        StepIDComposeFile,
			Path:      filepath.Join(t.InstallRoot(), ComposeFileName),
			Content:   []byte(compose),
			Mode:      0o644,
			DependsOn: []string{dirtree.StepIDTree},
		}, p.runner, p.fs),
	}, nil
}

// envFileStep renders the production env file into the install tree.
func (p *Provider) envFileStep(t *target.Descriptor) (step.Step, error) {
	env, err := RenderEnvFile(t)
	if err != nil {
		return nil, fmt.Errorf("failed to render env file: %w", err)
	}

	return NewRenderedFileStep(RenderedFile{
		ID:        StepIDEnvFile,
		Path:      filepath.Join(t.InstallRoot(), EnvFileName),
		Content:   []byte(env),
		Mode:      0o600,
		DependsOn: []string{dirtree.StepIDTree},
	}, p.runner, p.fs), nil
}

// Ensure Provider implements step.Provider.
var _ step.Provider = (*Provider)(nil)
