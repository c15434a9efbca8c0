// Package testutil provides shared helpers for groundwork tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// targetEnvVars is every environment variable the target loader reads.
var targetEnvVars = []string{
	"GW_KIND", "GW_HOSTNAME", "GW_USER", "GW_INSTALL_ROOT",
	"GW_DOMAIN", "GW_API_PORT", "GW_TARGET",
	"PI_USER", "INSTALL_DIR",
	"TAILSCALE_HOSTNAME", "TAILSCALE_AUTH_KEY",
	"AWS_REGION", "AWS_PROFILE", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
	"STACK_NAME", "DATABASE_URL", "REDIS_URL", "JWT_SECRET",
}

// ClearTargetEnv blanks every environment variable the target loader
// consults, so tests exercise profile defaults instead of whatever the
// developer's shell happens to export. It relies on t.Setenv, which means
// callers must not also call t.Parallel.
func ClearTargetEnv(t *testing.T) {
	t.Helper()

	for _, name := range targetEnvVars {
		t.Setenv(name, "")
	}
}

// WriteTargetFile writes a target descriptor into a fresh temp directory
// and returns its path. The name's extension selects the loader's parser.
func WriteTargetFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "failed to write target file: %s", name)

	return path
}
