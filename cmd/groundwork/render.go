package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cryonith/groundwork/internal/app"
)

var renderCmd = &cobra.Command{
	Use:   "render <artifact>",
	Short: "Print a generated configuration artifact",
	Long: `Render prints one generated artifact exactly as a provisioning run
would write it to the host, for inspection or diffing.

Artifacts:
  nginx    the reverse-proxy server block (pi)
  systemd  the agent service unit (pi)
  compose  the docker-compose stack (backend)
  env      the .env.production file (backend; secrets appear in clear)

Each artifact renders from its home profile unless --profile says
otherwise. Values come from the same target resolution provisioning
uses, so 'render env --target prod.toml' shows the exact file a run
against prod.toml would install.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: app.Artifacts(),
	RunE:      runRender,
}

var renderProfile string

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&renderProfile, "profile", "", "Profile to render for (default: the artifact's home profile)")
	_ = renderCmd.RegisterFlagCompletionFunc("profile", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return profileCompletions(), cobra.ShellCompDirectiveNoFileComp
	})
}

func runRender(_ *cobra.Command, args []string) error {
	artifact := args[0]

	profile := renderProfile
	if profile == "" {
		profile = app.DefaultRenderProfile(artifact)
	}

	gw := app.New(os.Stdout, newLogger())

	t, err := gw.LoadTarget(profile, targetFile)
	if err != nil {
		return err
	}

	out, err := gw.Render(artifact, t)
	if err != nil {
		return err
	}

	fmt.Print(out)
	return nil
}
