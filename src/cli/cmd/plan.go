package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilnforge/kiln/src/lock"
	"github.com/kilnforge/kiln/src/output"
	"github.com/kilnforge/kiln/src/provision"
)

var planFrozen bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the resolved step sequence",
	Long: `Resolve the manifest into its ordered step list and print it.

With --frozen, compare the resolved plan against kiln.lock.toml and
fail when anything drifted.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planFrozen, "frozen", false, "fail if the plan drifted from the lockfile")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	color := output.UseColor()
	w := os.Stdout

	start := time.Now()
	plan, err := provision.Resolve(&cfg.Provision)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	sec := output.NewSection(w, "Plan", elapsed, color)
	sec.Row("%-14s%s", "base", plan.Base)
	if plan.Timezone != "" {
		sec.Row("%-14s%s", "timezone", plan.Timezone)
	}
	sec.Separator()
	for i, step := range plan.Steps {
		sec.Row("%2d  %-12s%s", i+1, step.Kind, step.Name)
		if verbose {
			sec.Row("    %s", output.Dimmed(step.Script(), color))
		}
	}
	sec.Separator()
	sec.Row("%-14s%s", "fingerprint", plan.Fingerprint())
	sec.Close()

	if !planFrozen {
		return nil
	}

	locked, err := lock.Read(lock.DefaultFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("--frozen: no %s — run 'kiln bake' first", lock.DefaultFile)
		}
		return err
	}

	drift := locked.Diff(plan)
	if len(drift) > 0 {
		for _, d := range drift {
			fmt.Fprintf(os.Stderr, "drift: %s\n", d)
		}
		return fmt.Errorf("--frozen: plan drifted from %s (%d change(s))", lock.DefaultFile, len(drift))
	}

	fmt.Fprintf(w, "\n    plan matches %s %s\n\n", lock.DefaultFile, output.StatusIcon("success", color))
	return nil
}
