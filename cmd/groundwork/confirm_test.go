package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryonith/groundwork/internal/domain/pipeline"
)

func TestConfirmApply_YesFlagSkipsPrompt(t *testing.T) {
	reset := setYesFlag(t, true)
	defer reset()

	summary := pipeline.PlanSummary{Total: 3, NeedsApply: 2, Satisfied: 1}
	assert.True(t, confirmApply("pi", summary))
}

func TestConfirmApply_NonInteractiveProceeds(t *testing.T) {
	reset := setYesFlag(t, false)
	defer reset()

	// A pipe is not a terminal, so this is the cloud-init/CI path.
	originalStdin := os.Stdin
	defer func() { os.Stdin = originalStdin }()
	reader, writer, err := os.Pipe()
	require.NoError(t, err)
	defer reader.Close()
	_ = writer.Close()
	os.Stdin = reader

	summary := pipeline.PlanSummary{Total: 1, NeedsApply: 1}
	assert.True(t, confirmApply("backend", summary))
}

func TestIsInteractiveTTY_PipeIsNot(t *testing.T) {
	originalStdin := os.Stdin
	defer func() { os.Stdin = originalStdin }()
	reader, writer, err := os.Pipe()
	require.NoError(t, err)
	defer reader.Close()
	_ = writer.Close()
	os.Stdin = reader

	assert.False(t, isInteractiveTTY())
}

func setYesFlag(t *testing.T, v bool) func() {
	t.Helper()
	prev := yesFlag
	yesFlag = v
	return func() {
		yesFlag = prev
	}
}
