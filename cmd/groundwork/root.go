package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cryonith/groundwork/internal/adapters/logging"
	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
	"github.com/cryonith/groundwork/internal/ports"
)

var (
	// Global flags
	targetFile string
	verbose    bool
	logJSON    bool
	yesFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "groundwork",
	Short: "An idempotent provisioner for Cryonith trading hosts",
	Long: `Groundwork converges a host onto its provisioning profile.

Each profile compiles into a graph of checked steps: every step observes
the host before acting and skips itself when the state already matches.
Running groundwork twice changes nothing the second time.

Profiles:
  pi       the Raspberry Pi edge node (packages, nginx, agent unit, tailnet)
  aws      account-level trading resources (DynamoDB, S3, IAM, EC2)
  backend  the EC2 API host (docker compose stack, database, tailnet)`,
	SilenceErrors: true, // We handle error formatting ourselves
	SilenceUsage:  true, // Don't show usage on error
}

// Execute runs the root command and prints any error it surfaces.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&targetFile, "target", "t", "", "target file overriding profile defaults (.yaml or .toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "structured JSON log lines on stderr")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "auto-confirm all prompts")

	// Register flag completions
	registerFlagCompletions()

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the stderr logger the commands hand to the app.
// Operator-facing output goes to stdout; diagnostics stay on stderr so
// rendered artifacts and reports survive a pipe.
func newLogger() ports.Logger {
	level := ports.LevelInfo
	if verbose {
		level = ports.LevelDebug
	}
	return logging.NewConsoleLogger(
		logging.WithOutput(os.Stderr),
		logging.WithLevel(level),
		logging.WithJSONFormat(logJSON),
	)
}

// formatError returns a user-friendly error message.
// With verbose=false: shows only the user message and suggestion.
// With verbose=true: also shows the underlying technical error.
func formatError(err error) string {
	var userErr *target.UserError
	if errors.As(err, &userErr) {
		msg := userErr.Message
		if userErr.Context != "" {
			msg += fmt.Sprintf(" (at %s)", userErr.Context)
		}
		if userErr.Suggestion != "" {
			msg += fmt.Sprintf("\n\nSuggestion: %s", userErr.Suggestion)
		}
		if verbose && userErr.Underlying != nil {
			msg += fmt.Sprintf("\n\nTechnical details: %v", userErr.Underlying)
		}
		return msg
	}

	var stepErr *step.StepError
	if errors.As(err, &stepErr) {
		msg := stepErr.Message
		if stepErr.Provider != "" {
			msg += fmt.Sprintf(" (provider %s)", stepErr.Provider)
		}
		if stepErr.StepID != "" {
			msg += fmt.Sprintf(" (step %s)", stepErr.StepID)
		}
		if stepErr.Suggestion != "" {
			msg += fmt.Sprintf("\n\nSuggestion: %s", stepErr.Suggestion)
		}
		if verbose && stepErr.Underlying != nil {
			msg += fmt.Sprintf("\n\nTechnical details: %v", stepErr.Underlying)
		}
		return msg
	}

	return err.Error()
}

// printError prints an error message to stderr with proper formatting.
func printError(err error) {
	printErrorTo(os.Stderr, err)
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}

// registerFlagCompletions sets up custom completions for global flags.
func registerFlagCompletions() {
	// Complete --target with target file extensions
	_ = rootCmd.RegisterFlagCompletionFunc("target", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml", "toml"}, cobra.ShellCompDirectiveFilterFileExt
	})
}

// profileCompletions describes the known profiles for shell completion.
func profileCompletions() []string {
	return []string{
		target.ProfilePi + "\tRaspberry Pi edge node",
		target.ProfileAWS + "\tAWS account resources",
		target.ProfileBackend + "\tEC2 backend host",
	}
}

// profileCompletion completes the positional profile argument.
func profileCompletion(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return profileCompletions(), cobra.ShellCompDirectiveNoFileComp
}
