package app

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/cryonith/groundwork/internal/domain/pipeline"
	"github.com/cryonith/groundwork/internal/domain/step"
)

// printStyles are the lipgloss styles for operator output. The
// renderer is bound to the output writer, so piped output comes out
// plain without any flag.
type printStyles struct {
	header lipgloss.Style
	ok     lipgloss.Style
	change lipgloss.Style
	bad    lipgloss.Style
	muted  lipgloss.Style
}

func newPrintStyles(out io.Writer) printStyles {
	r := lipgloss.NewRenderer(out)
	return printStyles{
		header: r.NewStyle().Bold(true),
		ok:     r.NewStyle().Foreground(lipgloss.Color("2")),
		change: r.NewStyle().Foreground(lipgloss.Color("3")),
		bad:    r.NewStyle().Foreground(lipgloss.Color("1")),
		muted:  r.NewStyle().Faint(true),
	}
}

// PrintPlan outputs a human-readable plan summary.
func (g *Groundwork) PrintPlan(plan *pipeline.Plan, profile string) {
	summary := plan.Summary()

	g.printf("\n%s\n", g.styles.header.Render("Groundwork Plan"))
	g.printf("===============\n\n")

	if !plan.HasChanges() {
		g.printf("No changes needed. The host matches its target.\n")
		return
	}

	g.printf("Steps: %d total, %d to apply, %d satisfied", summary.Total, summary.NeedsApply, summary.Satisfied)
	if summary.Unknown > 0 {
		g.printf(", %d unknown", summary.Unknown)
	}
	g.printf("\n\n")

	for _, entry := range plan.Entries() {
		glyph := g.styles.ok.Render("✓")
		switch entry.Status() {
		case step.StatusNeedsApply:
			glyph = g.styles.change.Render("+")
		case step.StatusUnknown:
			glyph = g.styles.muted.Render("?")
		}

		g.printf("  %s %s\n", glyph, entry.Step().ID().String())

		diff := entry.Diff()
		if entry.Status().NeedsAction() && !diff.IsEmpty() {
			g.printf("      %s\n", g.styles.muted.Render(diff.Summary()))
		}
	}

	g.printf("\nRun 'groundwork provision %s' to apply these changes.\n", profile)
}

// PrintReport outputs the run report as an aligned table, one row per
// executed step, with error detail for failures underneath.
func (g *Groundwork) PrintReport(report *pipeline.Report) {
	g.printf("\n%s\n", g.styles.header.Render("Provision Report"))
	g.printf("================\n\n")
	g.printf("Run %s, profile %s, %s\n\n",
		report.RunID(), report.Profile(), report.Duration().Round(time.Millisecond))

	results := report.Results()
	width := len("STEP")
	for _, r := range results {
		if l := len(r.StepID().String()); l > width {
			width = l
		}
	}

	g.printf("  %s %-*s  %-10s %-12s %s\n", " ", width, "STEP", "RESULT", "PRE-STATE", "DURATION")
	for _, r := range results {
		g.printf("  %s %-*s  %s %-12s %s\n",
			g.resultGlyph(r.Status()),
			width, r.StepID().String(),
			g.resultCell(r.Status()),
			preStateLabel(r),
			durationCell(r),
		)
	}

	for _, r := range results {
		if r.Failed() && r.Error() != nil {
			g.printf("\n  %s %s\n", g.styles.bad.Render("✗"), r.Error().Error())
		}
	}

	summary := report.Summary()
	g.printf("\nSummary: %d applied, %d skipped, %d failed, %d blocked",
		summary.Applied, summary.Skipped, summary.Failed, summary.Blocked)
	if summary.Unknown > 0 {
		g.printf(" (%d acted on an unknown pre-state)", summary.Unknown)
	}
	g.printf("\nOutcome: %s\n", g.outcomeCell(report.Outcome()))
}

// resultGlyph maps a result status to its one-character marker.
func (g *Groundwork) resultGlyph(status pipeline.ResultStatus) string {
	switch status {
	case pipeline.ResultApplied:
		return g.styles.ok.Render("✓")
	case pipeline.ResultSkipped:
		return g.styles.muted.Render("-")
	case pipeline.ResultFailed:
		return g.styles.bad.Render("✗")
	case pipeline.ResultBlocked:
		return g.styles.change.Render("!")
	default:
		return " "
	}
}

// resultCell pads the status text before styling it, so the invisible
// color codes never skew the column.
func (g *Groundwork) resultCell(status pipeline.ResultStatus) string {
	cell := fmt.Sprintf("%-10s", status.String())
	switch status {
	case pipeline.ResultApplied:
		return g.styles.ok.Render(cell)
	case pipeline.ResultSkipped:
		return g.styles.muted.Render(cell)
	case pipeline.ResultFailed:
		return g.styles.bad.Render(cell)
	case pipeline.ResultBlocked:
		return g.styles.change.Render(cell)
	default:
		return cell
	}
}

// outcomeCell styles the final verdict.
func (g *Groundwork) outcomeCell(outcome pipeline.Outcome) string {
	switch outcome {
	case pipeline.OutcomeSuccess:
		return g.styles.ok.Render(outcome.String())
	case pipeline.OutcomePartialFailure:
		return g.styles.change.Render(outcome.String())
	default:
		return g.styles.bad.Render(outcome.String())
	}
}

// preStateLabel names what the check observed before the effect ran.
// A blocked step never ran its check.
func preStateLabel(r pipeline.StepResult) string {
	if r.Blocked() {
		return "-"
	}
	return r.PreState().String()
}

// durationCell formats the effect duration; skipped and blocked steps
// ran no effect.
func durationCell(r pipeline.StepResult) string {
	if r.Duration() == 0 {
		return "-"
	}
	return r.Duration().Round(time.Millisecond).String()
}

// printf writes to the output writer, ignoring errors.
func (g *Groundwork) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(g.out, format, args...)
}
