package app

import (
	"fmt"
	"strings"

	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/provider/configfile"
	"github.com/cryonith/groundwork/internal/provider/systemd"
)

// Artifact names accepted by Render.
const (
	ArtifactNginx   = "nginx"
	ArtifactSystemd = "systemd"
	ArtifactCompose = "compose"
	ArtifactEnv     = "env"
)

// Artifacts returns the renderable artifact names in display order.
func Artifacts() []string {
	return []string{ArtifactNginx, ArtifactSystemd, ArtifactCompose, ArtifactEnv}
}

// DefaultRenderProfile returns the profile an artifact belongs to when
// the caller does not name one. The nginx site and systemd unit ship
// on the pi; the compose stack and env file ship on the backend host.
func DefaultRenderProfile(artifact string) string {
	switch artifact {
	case ArtifactCompose, ArtifactEnv:
		return target.ProfileBackend
	default:
		return target.ProfilePi
	}
}

// Render produces one generated artifact for the target, exactly as a
// provisioning run would write it to disk. The env artifact contains
// revealed secret values; it renders what the file on the host holds.
func (g *Groundwork) Render(artifact string, t *target.Descriptor) (string, error) {
	switch artifact {
	case ArtifactNginx:
		return configfile.RenderNginxSite(t)
	case ArtifactSystemd:
		names := t.ServiceNames()
		if len(names) == 0 {
			return "", fmt.Errorf("target %s manages no services", t.Profile())
		}
		unit, err := systemd.UnitContent(t, names[0])
		if err != nil {
			return "", err
		}
		return string(unit), nil
	case ArtifactCompose:
		return configfile.RenderComposeFile(t)
	case ArtifactEnv:
		return configfile.RenderEnvFile(t)
	default:
		return "", fmt.Errorf("unknown artifact %q, expected one of: %s", artifact, strings.Join(Artifacts(), ", "))
	}
}
