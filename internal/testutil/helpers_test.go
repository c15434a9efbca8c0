package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearTargetEnv_BlanksLoaderVariables(t *testing.T) {
	t.Setenv("GW_HOSTNAME", "leaked-host")
	t.Setenv("DATABASE_URL", "postgres://leak@db.internal/leak")

	ClearTargetEnv(t)

	assert.Empty(t, os.Getenv("GW_HOSTNAME"))
	assert.Empty(t, os.Getenv("DATABASE_URL"))
}

func TestWriteTargetFile(t *testing.T) {
	t.Parallel()

	path := WriteTargetFile(t, "pi.yaml", "hostname: bench-pi\n")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hostname: bench-pi\n", string(content))
}

func TestWriteTargetFile_FreshDirectoryPerCall(t *testing.T) {
	t.Parallel()

	a := WriteTargetFile(t, "target.toml", "hostname = \"a\"\n")
	b := WriteTargetFile(t, "target.toml", "hostname = \"b\"\n")

	assert.NotEqual(t, a, b)
}
