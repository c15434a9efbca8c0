package sshkey_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/provider/sshkey"
	"github.com/cryonith/groundwork/internal/testutil/mocks"
)

const (
	deployKeyPath = "/home/pi/.ssh/groundwork_deploy"
	deployPubPath = deployKeyPath + ".pub"
	keyComment    = "pi@cryonith-pi.local"
)

// testKeyPEM generates a real private key to seed the mock filesystem.
func testKeyPEM(t *testing.T) []byte {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	return pem.EncodeToMemory(block)
}

func TestDeployKeyStep_ID(t *testing.T) {
	t.Parallel()

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, mocks.NewFileSystem())

	assert.Equal(t, "ssh:ensure:deploy-key", s.ID().String())
}

func TestDeployKeyStep_NoDependencies(t *testing.T) {
	t.Parallel()

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, mocks.NewFileSystem())

	assert.Empty(t, s.DependsOn())
}

func TestDeployKeyStep_IsBestEffort(t *testing.T) {
	t.Parallel()

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, mocks.NewFileSystem())

	assert.Equal(t, step.BestEffort, s.Criticality())
}

func TestDeployKeyStep_Check_NoKey(t *testing.T) {
	t.Parallel()

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, mocks.NewFileSystem())

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)
}

func TestDeployKeyStep_Check_PublicHalfMissing(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.SetFileContent(deployKeyPath, testKeyPEM(t))

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, fs)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)
}

func TestDeployKeyStep_Check_BothHalvesPresent(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.SetFileContent(deployKeyPath, testKeyPEM(t))
	fs.AddFile(deployPubPath, "ssh-ed25519 AAAA pi@cryonith-pi.local\n")

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, fs)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.StatusSatisfied, status)
}

func TestDeployKeyStep_Check_IgnoresKeyContent(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.AddFile(deployKeyPath, "not a key at all")
	fs.AddFile(deployPubPath, "not a public key either")

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, fs)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.StatusSatisfied, status)
}

func TestDeployKeyStep_Plan_NoKey(t *testing.T) {
	t.Parallel()

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, mocks.NewFileSystem())

	diff, err := s.Plan(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.DiffTypeAdd, diff.Type())
	assert.Equal(t, "sshkey", diff.Resource())
	assert.Equal(t, deployKeyPath, diff.Name())
	assert.Equal(t, "generated", diff.NewValue())
}

func TestDeployKeyStep_Plan_PublicHalfMissing(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.SetFileContent(deployKeyPath, testKeyPEM(t))

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, fs)

	diff, err := s.Plan(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.DiffTypeAdd, diff.Type())
	assert.Equal(t, deployPubPath, diff.Name())
	assert.Equal(t, "derived from private key", diff.NewValue())
}

func TestDeployKeyStep_Plan_UpToDate(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.SetFileContent(deployKeyPath, testKeyPEM(t))
	fs.AddFile(deployPubPath, "ssh-ed25519 AAAA pi@cryonith-pi.local\n")

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, fs)

	diff, err := s.Plan(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.DiffTypeNone, diff.Type())
}

func TestDeployKeyStep_Apply_GeneratesKeyPair(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, fs)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.True(t, fs.IsDir("/home/pi/.ssh"))
	assert.Equal(t, 0o600, int(fs.Mode(deployKeyPath)))
	assert.Equal(t, 0o644, int(fs.Mode(deployPubPath)))

	privatePEM, err := fs.ReadFile(deployKeyPath)
	require.NoError(t, err)
	_, err = ssh.ParsePrivateKey(privatePEM)
	require.NoError(t, err)

	public, err := fs.ReadFile(deployPubPath)
	require.NoError(t, err)
	line := string(public)
	assert.True(t, strings.HasPrefix(line, "ssh-ed25519 "), "got %q", line)
	assert.True(t, strings.HasSuffix(line, " "+keyComment+"\n"), "got %q", line)
}

func TestDeployKeyStep_Apply_KeepsExistingPrivateKey(t *testing.T) {
	t.Parallel()

	seeded := testKeyPEM(t)
	fs := mocks.NewFileSystem()
	fs.SetFileContent(deployKeyPath, seeded)

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, fs)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.NoError(t, err)

	kept, err := fs.ReadFile(deployKeyPath)
	require.NoError(t, err)
	assert.Equal(t, seeded, kept)

	public, err := fs.ReadFile(deployPubPath)
	require.NoError(t, err)

	signer, err := ssh.ParsePrivateKey(seeded)
	require.NoError(t, err)
	assert.Equal(t, ssh.MarshalAuthorizedKey(signer.PublicKey()), public)
}

func TestDeployKeyStep_Apply_UnreadableExistingKey(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.AddFile(deployKeyPath, "not a key")

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, fs)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "move it aside")
	assert.False(t, fs.Exists(deployPubPath))
}

func TestDeployKeyStep_Apply_WriteFails(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.FailWrites(errors.New("disk full"))

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, fs)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.Error(t, err)
}

func TestDeployKeyStep_Explain(t *testing.T) {
	t.Parallel()

	s := sshkey.NewDeployKeyStep(keyComment, deployKeyPath, mocks.NewFileSystem())

	explanation := s.Explain(step.NewExplainContext())

	assert.Contains(t, explanation.Summary(), "deploy key")
	assert.Contains(t, explanation.Detail(), deployKeyPath)
}
