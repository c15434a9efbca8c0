package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
)

func TestRootCommand_UseLine(t *testing.T) {
	assert.Equal(t, "groundwork", rootCmd.Use)
}

func TestRootCommand_Short(t *testing.T) {
	assert.Equal(t, "An idempotent provisioner for Cryonith trading hosts", rootCmd.Short)
}

func TestRootCommand_HasPersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	t.Run("target flag exists", func(t *testing.T) {
		flag := flags.Lookup("target")
		require.NotNil(t, flag)
		assert.Empty(t, flag.DefValue)
		assert.Equal(t, "t", flag.Shorthand)
	})

	t.Run("verbose flag exists", func(t *testing.T) {
		flag := flags.Lookup("verbose")
		require.NotNil(t, flag)
		assert.Equal(t, "false", flag.DefValue)
		assert.Equal(t, "v", flag.Shorthand)
	})

	t.Run("log-json flag exists", func(t *testing.T) {
		flag := flags.Lookup("log-json")
		require.NotNil(t, flag)
		assert.Equal(t, "false", flag.DefValue)
	})

	t.Run("yes flag exists", func(t *testing.T) {
		flag := flags.Lookup("yes")
		require.NotNil(t, flag)
		assert.Equal(t, "false", flag.DefValue)
		assert.Equal(t, "y", flag.Shorthand)
	})
}

func TestRootCommand_HasAllSubcommands(t *testing.T) {
	subcommands := rootCmd.Commands()
	names := make([]string, len(subcommands))
	for i, cmd := range subcommands {
		names[i] = cmd.Name()
	}

	expected := []string{
		"provision",
		"plan",
		"render",
		"validate",
		"version",
	}

	for _, exp := range expected {
		assert.Contains(t, names, exp, "root command should have %s subcommand", exp)
	}
}

func TestProvisionCommand_UseAndShort(t *testing.T) {
	assert.Equal(t, "provision <profile>", provisionCmd.Use)
	assert.Equal(t, "Converge this host onto a provisioning profile", provisionCmd.Short)
}

func TestProvisionCommand_ValidArgs(t *testing.T) {
	assert.ElementsMatch(t, []string{"pi", "aws", "backend"}, provisionCmd.ValidArgs)
}

func TestProvisionCommand_HasFlags(t *testing.T) {
	flags := provisionCmd.Flags()

	t.Run("dry-run flag exists", func(t *testing.T) {
		flag := flags.Lookup("dry-run")
		require.NotNil(t, flag)
		assert.Equal(t, "false", flag.DefValue)
	})

	t.Run("best-effort flag exists", func(t *testing.T) {
		flag := flags.Lookup("best-effort")
		require.NotNil(t, flag)
		assert.Equal(t, "false", flag.DefValue)
	})

	t.Run("timeout flag exists", func(t *testing.T) {
		flag := flags.Lookup("timeout")
		require.NotNil(t, flag)
		assert.Equal(t, "0s", flag.DefValue)
	})
}

func TestPlanCommand_UseAndShort(t *testing.T) {
	assert.Equal(t, "plan <profile>", planCmd.Use)
	assert.Equal(t, "Show what changes provisioning would make", planCmd.Short)
}

func TestRenderCommand_UseAndShort(t *testing.T) {
	assert.Equal(t, "render <artifact>", renderCmd.Use)
	assert.Equal(t, "Print a generated configuration artifact", renderCmd.Short)
}

func TestRenderCommand_ValidArgs(t *testing.T) {
	assert.ElementsMatch(t, []string{"nginx", "systemd", "compose", "env"}, renderCmd.ValidArgs)
}

func TestRenderCommand_HasProfileFlag(t *testing.T) {
	flag := renderCmd.Flags().Lookup("profile")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}

func TestValidateCommand_UseAndShort(t *testing.T) {
	assert.Equal(t, "validate <profile>", validateCmd.Use)
	assert.Equal(t, "Validate a profile's step graph without touching the host", validateCmd.Short)
}

func TestValidateCommand_HasJSONFlag(t *testing.T) {
	flag := validateCmd.Flags().Lookup("json")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestVersionCommand_UseAndShort(t *testing.T) {
	assert.Equal(t, "version", versionCmd.Use)
	assert.Equal(t, "Show version information", versionCmd.Short)
}

func TestVersionCommand_Output(t *testing.T) {
	originalVersion := version
	originalCommit := commit
	originalDate := date

	version = "1.0.0"
	commit = "abc123"
	date = "2026-01-01"

	defer func() {
		version = originalVersion
		commit = originalCommit
		date = originalDate
	}()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)

	rootCmd.SetArgs([]string{"version"})
	err := rootCmd.Execute()
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "groundwork 1.0.0")
	assert.Contains(t, output, "commit: abc123")
	assert.Contains(t, output, "built:  2026-01-01")

	rootCmd.SetArgs([]string{})
}

func TestAllCommands_HelpWorks(t *testing.T) {
	commands := []string{
		"--help",
		"provision --help",
		"plan --help",
		"render --help",
		"validate --help",
		"version --help",
	}

	for _, cmdArgs := range commands {
		t.Run(cmdArgs, func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetErr(&out)

			args := []string{}
			for _, arg := range bytes.Fields([]byte(cmdArgs)) {
				args = append(args, string(arg))
			}
			rootCmd.SetArgs(args)
			err := rootCmd.Execute()
			assert.NoError(t, err)
			assert.NotEmpty(t, out.String())

			rootCmd.SetArgs([]string{})
		})
	}
}

func TestProvisionCommand_RejectsUnknownProfile(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"provision", "datacenter"})

	err := rootCmd.Execute()
	require.Error(t, err)

	rootCmd.SetArgs([]string{})
}

func TestFormatError_PlainError(t *testing.T) {
	err := errors.New("something broke")
	assert.Equal(t, "something broke", formatError(err))
}

func TestFormatError_UserError(t *testing.T) {
	reset := setVerbose(t, false)
	defer reset()

	err := target.NewProfileUnknownError("datacenter", target.Profiles())

	msg := formatError(err)
	assert.Contains(t, msg, `unknown provisioning profile "datacenter"`)
	assert.Contains(t, msg, "Suggestion: Available profiles: aws, backend, pi")
	assert.NotContains(t, msg, "Technical details")
}

func TestFormatError_UserError_Verbose(t *testing.T) {
	reset := setVerbose(t, true)
	defer reset()

	underlying := errors.New("yaml: line 3: mapping values are not allowed")
	err := target.NewTargetParseError("bad.yaml", underlying)

	msg := formatError(err)
	assert.Contains(t, msg, "failed to parse target file")
	assert.Contains(t, msg, "Technical details")
	assert.Contains(t, msg, "mapping values are not allowed")
}

func TestFormatError_StepError(t *testing.T) {
	reset := setVerbose(t, false)
	defer reset()

	err := step.NewProviderFailedError("database", errors.New("backend database url names no database"))

	msg := formatError(err)
	assert.Contains(t, msg, "provider failed to compile steps")
	assert.Contains(t, msg, "(provider database)")
	assert.Contains(t, msg, "Suggestion:")
	assert.NotContains(t, msg, "names no database")
}

func TestPrintErrorTo(t *testing.T) {
	var out bytes.Buffer
	printErrorTo(&out, errors.New("boom"))
	assert.Equal(t, "Error: boom\n", out.String())
}

func TestProfileCompletion(t *testing.T) {
	comps, directive := profileCompletion(nil, nil, "")
	assert.Len(t, comps, 3)
	assert.Equal(t, "pi\tRaspberry Pi edge node", comps[0])
	assert.NotZero(t, directive)

	comps, _ = profileCompletion(nil, []string{"pi"}, "")
	assert.Empty(t, comps)
}

func setVerbose(t *testing.T, v bool) func() {
	t.Helper()
	prev := verbose
	verbose = v
	return func() {
		verbose = prev
	}
}
