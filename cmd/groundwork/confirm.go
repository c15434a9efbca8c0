package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/cryonith/groundwork/internal/domain/pipeline"
)

// confirmApply asks the operator to approve pending changes. Without a
// terminal on stdin there is nobody to ask; provisioning has always run
// unattended from cloud-init and CI, so a non-interactive run proceeds.
func confirmApply(profile string, summary pipeline.PlanSummary) bool {
	if yesFlag {
		return true
	}
	if !isInteractiveTTY() {
		return true
	}

	pending := summary.NeedsApply + summary.Unknown
	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Apply %d pending steps to the %s target?", pending, profile)).
				Description("Steps whose state already matches are skipped.").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false
	}
	return confirmed
}

func isInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}
