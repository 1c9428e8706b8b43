package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/kilnforge/kiln/src/build"
	"github.com/kilnforge/kiln/src/output"
	"github.com/kilnforge/kiln/src/provision"
	"github.com/kilnforge/kiln/src/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <image>",
	Short: "Verify an already-baked image",
	Long: `Derive verification probes from the manifest and run them against an
existing image: installed packages present, warm-cache removals absent,
pip newer than the base image's stock version, browser engine executable.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	image := args[0]
	ctx := context.Background()
	color := output.UseColor()
	w := os.Stdout

	plan, err := provision.Resolve(&cfg.Provision)
	if err != nil {
		return err
	}

	probes := verify.Derive(plan)
	runner := &verify.Runner{
		Docker:  build.NewDocker(verbose, io.Discard, os.Stderr),
		Workers: cfg.Verify.Workers,
	}
	if cfg.Verify.StockPip != "" {
		stock, err := semver.NewVersion(cfg.Verify.StockPip)
		if err != nil {
			return fmt.Errorf("verify.stock_pip: %w", err)
		}
		runner.StockPip = stock
	}

	results, err := runner.Run(ctx, image, plan.Base, probes)
	if err != nil {
		return err
	}

	sec := output.NewSection(w, "Verify", 0, color)
	for _, res := range results {
		sec.ProbeRow(res.Probe.String(), res.Status, res.Detail)
	}
	sec.Separator()
	failed := verify.Failed(results)
	sec.Row("%d probe(s), %d failed", len(results), failed)
	sec.Close()

	if failed > 0 {
		return fmt.Errorf("verification failed: %d of %d probes", failed, len(results))
	}
	return nil
}
