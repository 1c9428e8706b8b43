package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/kilnforge/kiln/src/build"
	_ "github.com/kilnforge/kiln/src/build/engines"
	"github.com/kilnforge/kiln/src/imagetag"
	"github.com/kilnforge/kiln/src/lint"
	"github.com/kilnforge/kiln/src/lock"
	"github.com/kilnforge/kiln/src/output"
	"github.com/kilnforge/kiln/src/provision"
	"github.com/kilnforge/kiln/src/verify"
	"github.com/kilnforge/kiln/src/version"
)

var (
	bakeEngine     string
	bakeTags       []string
	bakeSkipLint   bool
	bakeSkipVerify bool
	bakeDryRun     bool
)

var bakeCmd = &cobra.Command{
	Use:   "bake",
	Short: "Bake the environment image",
	Long: `Bake the manifest's base image and step sequence into a tagged local image.

Runs the secrets gate, resolves the plan, builds with the configured
engine, writes the lockfile, and verifies the result. The manifest,
lockfile, and git metadata all resolve against the working directory.`,
	Args: cobra.NoArgs,
	RunE: runBake,
}

func init() {
	bakeCmd.Flags().StringVar(&bakeEngine, "engine", "", "override build engine (buildkit, exec)")
	bakeCmd.Flags().StringSliceVar(&bakeTags, "tag", nil, "override image tags")
	bakeCmd.Flags().BoolVar(&bakeSkipLint, "skip-lint", false, "skip the pre-bake secrets gate")
	bakeCmd.Flags().BoolVar(&bakeSkipVerify, "skip-verify", false, "skip post-bake verification")
	bakeCmd.Flags().BoolVar(&bakeDryRun, "dry-run", false, "show the plan without executing")

	rootCmd.AddCommand(bakeCmd)
}

func runBake(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	color := output.UseColor()
	w := os.Stdout
	pipelineStart := time.Now()

	output.Identity(w, version.Version, version.Commit, color)

	// --- Resolve ---
	plan, err := provision.Resolve(&cfg.Provision)
	if err != nil {
		return err
	}
	dockerfile := provision.Render(plan)

	engineName := cfg.Provision.Engine
	if bakeEngine != "" {
		engineName = bakeEngine
	}
	engine, err := build.Get(engineName)
	if err != nil {
		return err
	}

	vi := imagetag.Detect(".")
	refs := imagetag.ImageRefs(cfg.Image.Name, imagetag.ResolveTags(cfg.Image.Tags, vi))
	if len(bakeTags) > 0 {
		refs = imagetag.ImageRefs(cfg.Image.Name, bakeTags)
	}

	output.ContextBlock(w, bakeContextKV(plan, engineName, vi))

	// --- Secrets gate ---
	lintSummary := "--skip-lint"
	if !bakeSkipLint && cfg.Lint.Active() {
		output.SectionStart(w, "kiln_lint", "Lint")
		var lintErr error
		lintSummary, lintErr = runSecretsGate(ctx, w, color, plan, dockerfile)
		output.SectionEnd(w, "kiln_lint")
		if lintErr != nil {
			return lintErr
		}
	}

	// --- Plan ---
	output.SectionStartCollapsed(w, "kiln_plan", "Plan")
	planStart := time.Now()
	fingerprint := plan.Fingerprint()
	planElapsed := time.Since(planStart)

	planSec := output.NewSection(w, "Plan", planElapsed, color)
	planSec.Row("%-14s%s", "base", plan.Base)
	planSec.Row("%-14s%s", "engine", engineName)
	planSec.Row("%-14s%d step(s)", "steps", len(plan.Steps))
	for i, step := range plan.Steps {
		planSec.Row("  %2d  %-12s%s", i+1, step.Kind, step.Name)
	}
	planSec.Separator()
	planSec.Row("%-14s%s", "fingerprint", fingerprint[:16])
	for _, ref := range refs {
		planSec.Row("%-14s%s", "tag", ref)
	}
	planSec.Close()
	output.SectionEnd(w, "kiln_plan")

	planSummary := fmt.Sprintf("%d step(s), %d tag(s)", len(plan.Steps), len(refs))

	// --- Dry run ---
	if bakeDryRun {
		for i, step := range plan.Steps {
			fmt.Printf("step %d: %s\n", i+1, step.Name)
			fmt.Printf("  kind:    %s\n", step.Kind)
			fmt.Printf("  command: %s %v\n", step.Command, step.Args[:len(step.Args)-1])
			fmt.Printf("  script:  %s\n", step.Script())
			if len(step.Env) > 0 {
				fmt.Printf("  env:     %v\n", step.Env)
			}
		}
		return nil
	}

	// --- Build ---
	output.SectionStart(w, "kiln_build", "Build")
	buildStart := time.Now()

	opts := build.Options{Tags: refs, Verbose: verbose, Stdout: io.Discard, Stderr: io.Discard}
	if verbose {
		opts.Stderr = os.Stderr
	}

	result, bakeErr := engine.Bake(ctx, plan, opts)
	buildElapsed := time.Since(buildStart)

	buildSec := output.NewSection(w, "Build", buildElapsed, color)
	if result != nil {
		for _, sr := range result.Steps {
			buildSec.StepRow(sr.Name, sr.Status, sr.Cached, sr.Duration)
		}
	}
	if bakeErr != nil {
		buildSec.Separator()
		buildSec.Row("status: bake failed %s", output.StatusIcon("failed", color))
		buildSec.Close()
		output.SectionEnd(w, "kiln_build")
		return bakeErr
	}
	buildSec.Separator()
	for _, img := range result.Images {
		buildSec.Row("result  %s", img)
	}
	buildSec.Close()
	output.SectionEnd(w, "kiln_build")

	buildSummary := fmt.Sprintf("%d image(s)", len(result.Images))

	// --- Lockfile ---
	lockPath := lock.DefaultFile
	if err := lock.Write(lockPath, lock.FromPlan(plan, engineName)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write lockfile: %v\n", err)
	}

	// --- Verify ---
	verifySummary := "--skip-verify"
	verifyStatus := "skipped"
	if !bakeSkipVerify && cfg.Verify.Active() {
		output.SectionStart(w, "kiln_verify", "Verify")
		var verifyErr error
		verifySummary, verifyErr = runVerifySection(ctx, w, color, plan, result.Images[0])
		output.SectionEnd(w, "kiln_verify")
		if verifyErr != nil {
			return verifyErr
		}
		verifyStatus = "success"
	}

	// --- Summary ---
	totalElapsed := time.Since(pipelineStart)

	sumSec := output.NewSection(w, "Summary", 0, color)
	lintStatus := "success"
	if lintSummary == "--skip-lint" {
		lintStatus = "skipped"
	}
	output.SummaryRow(w, "lint", lintStatus, lintSummary, color)
	output.SummaryRow(w, "plan", "success", planSummary, color)
	output.SummaryRow(w, "build", "success", buildSummary, color)
	output.SummaryRow(w, "verify", verifyStatus, verifySummary, color)
	sumSec.Separator()
	output.SummaryTotal(w, totalElapsed, "success", color)
	sumSec.Close()

	// --- Image References ---
	fmt.Fprintf(w, "\n    Image References\n")
	for _, img := range result.Images {
		fmt.Fprintf(w, "    → %s\n", img)
	}
	fmt.Fprintln(w)

	return nil
}

// runSecretsGate scans the manifest, step scripts, and rendered
// Dockerfile. Any finding blocks the bake.
func runSecretsGate(ctx context.Context, w io.Writer, color bool, plan *provision.Plan, dockerfile string) (string, error) {
	start := time.Now()

	gate, err := lint.NewGate()
	if err != nil {
		return "", fmt.Errorf("initializing secrets gate: %w", err)
	}
	sources, err := lint.CollectSources(manifestPath(), plan, dockerfile)
	if err != nil {
		return "", err
	}
	findings, err := gate.Scan(ctx, sources)
	if err != nil {
		return "", fmt.Errorf("secrets scan: %w", err)
	}
	elapsed := time.Since(start)

	sec := output.NewSection(w, "Lint", elapsed, color)
	sec.Row("%-16s%d source(s) scanned", "secrets", len(sources))
	for _, f := range findings {
		sec.Row("  %-32s line %-4d %s (%s)", f.Source, f.Line, f.Description, f.RuleID)
	}
	sec.Close()

	if len(findings) > 0 {
		return fmt.Sprintf("%d finding(s)", len(findings)),
			fmt.Errorf("secrets gate failed: %d finding(s) — credentials must not enter image layers", len(findings))
	}
	return fmt.Sprintf("%d sources, clean", len(sources)), nil
}

// runVerifySection derives probes from the plan and runs them against
// the baked image.
func runVerifySection(ctx context.Context, w io.Writer, color bool, plan *provision.Plan, image string) (string, error) {
	start := time.Now()

	probes := verify.Derive(plan)
	runner := &verify.Runner{
		Docker:  build.NewDocker(verbose, io.Discard, os.Stderr),
		Workers: cfg.Verify.Workers,
	}
	if cfg.Verify.StockPip != "" {
		stock, err := semver.NewVersion(cfg.Verify.StockPip)
		if err != nil {
			return "", fmt.Errorf("verify.stock_pip: %w", err)
		}
		runner.StockPip = stock
	}

	results, err := runner.Run(ctx, image, plan.Base, probes)
	if err != nil {
		return "", err
	}
	elapsed := time.Since(start)

	sec := output.NewSection(w, "Verify", elapsed, color)
	for _, res := range results {
		sec.ProbeRow(res.Probe.String(), res.Status, res.Detail)
	}
	sec.Close()

	failed := verify.Failed(results)
	if failed > 0 {
		return fmt.Sprintf("%d/%d probes failed", failed, len(results)),
			fmt.Errorf("verification failed: %d of %d probes", failed, len(results))
	}
	return fmt.Sprintf("%d probes passed", len(results)), nil
}

// bakeContextKV returns key-value pairs for the pipeline context block.
func bakeContextKV(plan *provision.Plan, engineName string, vi *imagetag.VersionInfo) []output.KV {
	kv := []output.KV{
		{Key: "Base", Value: plan.Base},
		{Key: "Engine", Value: engineName},
	}
	if vi.SHA != "" {
		kv = append(kv, output.KV{Key: "Commit", Value: vi.SHA})
	}
	if vi.Branch != "" {
		kv = append(kv, output.KV{Key: "Branch", Value: vi.Branch})
	}
	if pipe := os.Getenv("CI_PIPELINE_ID"); pipe != "" {
		kv = append(kv, output.KV{Key: "Pipeline", Value: pipe})
	}
	return kv
}
