package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cryonith/groundwork/internal/app"
	"github.com/cryonith/groundwork/internal/domain/target"
)

var validateCmd = &cobra.Command{
	Use:   "validate <profile>",
	Short: "Validate a profile's step graph without touching the host",
	Long: `Validate compiles the profile's step graph and runs every
construction-time check: provider compilation, duplicate step IDs,
missing dependencies, and cycles. Nothing on the host is read or
written.

This command is designed for CI pipelines to catch target file
problems before a provisioning run.

Exit codes:
  0 - Graph is valid
  1 - Compilation or ordering errors found
  2 - Could not resolve the target descriptor

Examples:
  groundwork validate pi
  groundwork validate backend --target prod.toml
  groundwork validate aws --json`,
	Args:              cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs:         target.Profiles(),
	ValidArgsFunction: profileCompletion,
	RunE:              runValidate,
}

var validateJSON bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output results as JSON")
}

func runValidate(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	gw := app.New(os.Stdout, newLogger())

	result, err := gw.Validate(ctx, args[0], targetFile)
	if err != nil {
		if validateJSON {
			outputValidationJSON(nil, err)
		} else {
			printError(err)
		}
		os.Exit(2)
	}

	if validateJSON {
		outputValidationJSON(result, nil)
	} else {
		outputValidationText(result)
	}

	if !result.Valid() {
		os.Exit(1)
	}

	return nil
}

func outputValidationJSON(result *app.ValidationResult, err error) {
	output := struct {
		Valid    bool     `json:"valid"`
		Errors   []string `json:"errors,omitempty"`
		Warnings []string `json:"warnings,omitempty"`
		Info     []string `json:"info,omitempty"`
		Error    string   `json:"error,omitempty"`
	}{}

	if err != nil {
		output.Valid = false
		output.Error = err.Error()
	} else if result != nil {
		output.Valid = result.Valid()
		output.Errors = result.Errors
		output.Warnings = result.Warnings
		output.Info = result.Info
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(output)
}

func outputValidationText(result *app.ValidationResult) {
	hasIssues := len(result.Errors) > 0 || len(result.Warnings) > 0

	if !hasIssues {
		fmt.Println("✓ Step graph is valid")
		for _, info := range result.Info {
			fmt.Printf("  • %s\n", info)
		}
		return
	}

	if len(result.Errors) > 0 {
		fmt.Println("✗ Validation errors:")
		for _, e := range result.Errors {
			fmt.Printf("  ✗ %s\n", e)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Println("⚠ Warnings:")
		for _, w := range result.Warnings {
			fmt.Printf("  ⚠ %s\n", w)
		}
	}

	if len(result.Info) > 0 {
		fmt.Println("ℹ Info:")
		for _, i := range result.Info {
			fmt.Printf("  • %s\n", i)
		}
	}
}
