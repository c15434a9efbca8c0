package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryonith/groundwork/internal/app"
	"github.com/cryonith/groundwork/internal/domain/target"
)

var provisionCmd = &cobra.Command{
	Use:   "provision <profile>",
	Short: "Converge this host onto a provisioning profile",
	Long: `Provision compiles the profile's step graph and applies it.

This command:
1. Resolves the target descriptor (profile defaults, environment, --target file)
2. Compiles and validates the step graph
3. Plans: checks every precondition against the live host
4. Applies only the steps whose state does not match, in dependency order
5. Prints the report

A fatal step failure stops the run; --best-effort records it and keeps
going. Either way the exit code reports the verdict: 0 converged,
1 fatal failure, 2 only best-effort steps failed.

Use --dry-run to stop after the plan without touching the host.`,
	Args:              cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs:         target.Profiles(),
	ValidArgsFunction: profileCompletion,
	RunE:              runProvision,
}

var (
	provisionDryRun     bool
	provisionBestEffort bool
	provisionTimeout    time.Duration
)

func init() {
	rootCmd.AddCommand(provisionCmd)

	provisionCmd.Flags().BoolVar(&provisionDryRun, "dry-run", false, "Show what would be done without making changes")
	provisionCmd.Flags().BoolVar(&provisionBestEffort, "best-effort", false, "Record fatal failures and keep going instead of stopping")
	provisionCmd.Flags().DurationVar(&provisionTimeout, "timeout", 0, "Per-command timeout (default 5m)")
}

func runProvision(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	profile := args[0]

	gw := app.New(os.Stdout, newLogger()).
		WithCommandTimeout(provisionTimeout).
		WithContinueOnFatal(provisionBestEffort)

	t, err := gw.LoadTarget(profile, targetFile)
	if err != nil {
		return err
	}

	graph, err := gw.Compile(ctx, t)
	if err != nil {
		return err
	}

	// Show the plan first
	plan, err := gw.Plan(ctx, graph)
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}
	gw.PrintPlan(plan, profile)

	// If no changes needed, we're done
	if !plan.HasChanges() {
		return nil
	}

	if provisionDryRun {
		fmt.Println("\n[Dry run - no changes made]")
		return nil
	}

	if !confirmApply(profile, plan.Summary()) {
		return fmt.Errorf("aborted before any changes")
	}

	fmt.Println("\nApplying changes...")

	report, err := gw.Provision(ctx, graph, t)
	if err != nil {
		return fmt.Errorf("provision failed: %w", err)
	}

	gw.PrintReport(report)

	if code := report.Outcome().ExitCode(); code != 0 {
		os.Exit(code)
	}

	return nil
}
