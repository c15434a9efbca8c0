package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cryonith/groundwork/internal/app"
	"github.com/cryonith/groundwork/internal/domain/target"
)

var planCmd = &cobra.Command{
	Use:   "plan <profile>",
	Short: "Show what changes provisioning would make",
	Long: `Plan checks every precondition against the live host and shows what
a provisioning run would change, without making changes.

Exit codes:
  0 - Host matches the target
  2 - Changes pending (automation can use this to detect drift)`,
	Args:              cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs:         target.Profiles(),
	ValidArgsFunction: profileCompletion,
	RunE:              runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	profile := args[0]

	gw := app.New(os.Stdout, newLogger())

	t, err := gw.LoadTarget(profile, targetFile)
	if err != nil {
		return err
	}

	graph, err := gw.Compile(ctx, t)
	if err != nil {
		return err
	}

	plan, err := gw.Plan(ctx, graph)
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}

	gw.PrintPlan(plan, profile)

	if plan.HasChanges() {
		os.Exit(2)
	}

	return nil
}
