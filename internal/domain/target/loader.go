package target

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvTargetFile names a target file when --target is not given.
const EnvTargetFile = "GW_TARGET"

// Loader assembles Descriptors from profile defaults, the environment,
// and optional target files.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load builds the Descriptor for a profile. Precedence, lowest first:
// profile defaults, environment variables, then the target file at
// path (or $GW_TARGET when path is empty).
func (l *Loader) Load(profile, path string) (*Descriptor, error) {
	spec, err := profileSpec(profile)
	if err != nil {
		return nil, err
	}

	if err := applyEnvironment(&spec); err != nil {
		return nil, err
	}

	if path == "" {
		path = os.Getenv(EnvTargetFile)
	}
	if path != "" {
		overlay, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		merge(&spec, overlay)
	}

	return New(profile, spec)
}

// LoadFile parses a Spec from a target file. The format is chosen by
// extension: .yaml/.yml or .toml.
func (l *Loader) LoadFile(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Spec{}, NewTargetNotFoundError(path)
		}
		return Spec{}, err
	}

	var spec Spec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return Spec{}, NewTargetParseError(path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &spec); err != nil {
			return Spec{}, NewTargetParseError(path, err)
		}
	default:
		return Spec{}, NewTargetParseError(path, nil).WithSuggestion("Rename the file to end in .yaml, .yml, or .toml.")
	}

	return spec, nil
}

// applyEnvironment overlays the documented environment variables onto
// a spec. Empty variables are ignored so an empty export cannot erase
// a profile default.
func applyEnvironment(spec *Spec) error {
	errs := NewErrorList()

	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setSecret := func(name string, dst *Secret) {
		if v := os.Getenv(name); v != "" {
			*dst = NewSecret(v)
		}
	}

	setString("GW_KIND", &spec.Kind)
	setString("GW_HOSTNAME", &spec.Hostname)
	setString("GW_USER", &spec.User)
	setString("PI_USER", &spec.User)
	setString("GW_INSTALL_ROOT", &spec.InstallRoot)
	setString("INSTALL_DIR", &spec.InstallRoot)

	setString("TAILSCALE_HOSTNAME", &spec.Mesh.NodeName)
	setSecret("TAILSCALE_AUTH_KEY", &spec.Mesh.AuthKey)

	setString("AWS_REGION", &spec.Cloud.Region)
	setString("AWS_PROFILE", &spec.Cloud.Profile)
	setString("AWS_ACCESS_KEY_ID", &spec.Cloud.AccessKeyID)
	setSecret("AWS_SECRET_ACCESS_KEY", &spec.Cloud.SecretAccessKey)
	setString("STACK_NAME", &spec.Cloud.StackName)

	setString("GW_DOMAIN", &spec.Backend.Domain)
	setSecret("DATABASE_URL", &spec.Backend.DatabaseURL)
	setSecret("REDIS_URL", &spec.Backend.RedisURL)
	setSecret("JWT_SECRET", &spec.Backend.JWTSecret)

	if v := os.Getenv("GW_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs.AddField("GW_API_PORT", "not a number: "+v, "Set GW_API_PORT to a port between 1 and 65535.")
		} else {
			spec.Backend.Port = port
		}
	}

	return errs.AsError()
}
