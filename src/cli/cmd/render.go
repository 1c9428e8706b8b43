package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilnforge/kiln/src/provision"
)

var renderOut string

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the plan as a Dockerfile",
	Long:  "Resolve the manifest and emit the equivalent Dockerfile to stdout or --out.",
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := provision.Resolve(&cfg.Provision)
		if err != nil {
			return err
		}

		dockerfile := provision.Render(plan)
		if renderOut == "" {
			fmt.Print(dockerfile)
			return nil
		}
		if err := os.WriteFile(renderOut, []byte(dockerfile), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", renderOut, err)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderOut, "out", "", "write the Dockerfile here instead of stdout")

	rootCmd.AddCommand(renderCmd)
}
