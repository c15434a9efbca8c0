// Package ports defines the interfaces through which the provisioning
// engine reaches the outside world: shell commands, the file system, and
// logging. Adapters implement them; domain code depends only on the
// interfaces.
package ports

import (
	"context"
	"time"
)

// CommandResult is the outcome of a completed shell command. A nonzero
// exit code is data, not an error: callers inspect ExitCode and the
// captured output to decide what it means.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Success returns true if the command exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// CommandCall records a command invocation for inspection in tests.
type CommandCall struct {
	Command string
	Args    []string
}

// CommandRunner executes shell commands. Implementations return an error
// only when the command could not run at all (missing binary, timeout,
// cancelled context); a command that ran and exited nonzero yields a
// CommandResult and a nil error.
type CommandRunner interface {
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)
}
