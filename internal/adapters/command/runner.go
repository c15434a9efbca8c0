// Package command provides the command execution adapter.
package command

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cryonith/groundwork/internal/ports"
)

// DefaultTimeout bounds a single command invocation when the caller's
// context carries no deadline of its own. Package installs on a first
// boot can legitimately take minutes; anything past this is treated as
// a hung command.
const DefaultTimeout = 5 * time.Minute

// RealRunner executes shell commands on the host. Every invocation runs
// under a deadline so a wedged external tool cannot stall a provisioning
// run indefinitely.
type RealRunner struct {
	timeout time.Duration
}

// NewRealRunner creates a RealRunner with the default per-command timeout.
func NewRealRunner() *RealRunner {
	return &RealRunner{timeout: DefaultTimeout}
}

// NewRealRunnerWithTimeout creates a RealRunner with the given per-command
// timeout. A non-positive timeout falls back to the default.
func NewRealRunnerWithTimeout(timeout time.Duration) *RealRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RealRunner{timeout: timeout}
}

// Run executes a command and returns the captured result. A nonzero exit
// code is reported through the result, not the error; the error is
// reserved for spawn failures, cancellation, and timeouts.
func (r *RealRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, command, args...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := ports.CommandResult{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}

	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return result, fmt.Errorf("command %s timed out after %s: %w", command, elapsed.Round(time.Millisecond), ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}

	return result, nil
}

// Ensure RealRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*RealRunner)(nil)
