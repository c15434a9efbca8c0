package command

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNewRealRunner_UsesDefaultTimeout(t *testing.T) {
	runner := NewRealRunner()
	if runner.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", runner.timeout, DefaultTimeout)
	}
}

func TestRealRunner_Run_CapturesStdout(t *testing.T) {
	runner := NewRealRunner()

	result, err := runner.Run(context.Background(), "echo", "bookworm")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Success() {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if result.Stdout != "bookworm\n" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "bookworm\n")
	}
}

func TestRealRunner_Run_NonZeroExitIsNotAnError(t *testing.T) {
	runner := NewRealRunner()

	result, err := runner.Run(context.Background(), "sh", "-c", "exit 100")
	if err != nil {
		t.Fatalf("Run() error = %v, want exit code carried in the result", err)
	}
	if result.Success() {
		t.Error("Success() = true for exit 100")
	}
	if result.ExitCode != 100 {
		t.Errorf("ExitCode = %d, want 100", result.ExitCode)
	}
}

func TestRealRunner_Run_MissingBinary(t *testing.T) {
	runner := NewRealRunner()

	_, err := runner.Run(context.Background(), "groundwork-no-such-binary")
	if err == nil {
		t.Error("Run() should fail to spawn a binary that does not exist")
	}
}

func TestRealRunner_Run_CapturesStderrSeparately(t *testing.T) {
	runner := NewRealRunner()

	script := "echo 'E: Unable to locate package nosuchpkg' >&2; exit 100"
	result, err := runner.Run(context.Background(), "sh", "-c", script)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Stdout != "" {
		t.Errorf("Stdout = %q, want empty", result.Stdout)
	}
	if result.Stderr != "E: Unable to locate package nosuchpkg\n" {
		t.Errorf("Stderr = %q, want the apt diagnostic line", result.Stderr)
	}
}

func TestRealRunner_Run_CapturesDuration(t *testing.T) {
	runner := NewRealRunner()

	result, err := runner.Run(context.Background(), "echo", "timed")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", result.Duration)
	}
}

func TestRealRunner_Run_Timeout(t *testing.T) {
	runner := NewRealRunnerWithTimeout(50 * time.Millisecond)

	_, err := runner.Run(context.Background(), "sleep", "2")
	if err == nil {
		t.Fatal("Run() should return error when the command outlives the timeout")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %v, want mention of timeout", err)
	}
}

func TestRealRunner_Run_CallerDeadlineWins(t *testing.T) {
	runner := NewRealRunnerWithTimeout(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := runner.Run(ctx, "sleep", "2")
	if err == nil {
		t.Error("Run() should honor the caller's deadline")
	}
}

func TestRealRunner_Run_ContextCancellation(t *testing.T) {
	runner := NewRealRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, "sleep", "10")
	if err == nil {
		t.Error("Run() should return error for cancelled context")
	}
}

func TestNewRealRunnerWithTimeout_NonPositiveFallsBack(t *testing.T) {
	runner := NewRealRunnerWithTimeout(0)
	if runner.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", runner.timeout, DefaultTimeout)
	}
}
