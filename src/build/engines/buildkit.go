package engines

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kilnforge/kiln/src/build"
	"github.com/kilnforge/kiln/src/provision"
)

func init() {
	build.Register("buildkit", func() build.Engine { return &buildkitEngine{} })
}

// buildkitEngine renders the plan to a Dockerfile and bakes it with
// docker buildx. Each step becomes one image layer; buildx's own
// fail-fast behavior gives the abort-on-first-failure semantics.
type buildkitEngine struct{}

func (e *buildkitEngine) Name() string { return "buildkit" }

func (e *buildkitEngine) Bake(ctx context.Context, plan *provision.Plan, opts build.Options) (*build.Result, error) {
	start := time.Now()

	dir, err := os.MkdirTemp("", "kiln-bake-")
	if err != nil {
		return nil, fmt.Errorf("creating build context: %w", err)
	}
	defer os.RemoveAll(dir)

	dockerfile := filepath.Join(dir, "Dockerfile")
	if err := os.WriteFile(dockerfile, []byte(provision.Render(plan)), 0o644); err != nil {
		return nil, fmt.Errorf("writing Dockerfile: %w", err)
	}

	d := opts.Runner()
	progress, buildErr := d.BuildxBuild(ctx, dir, dockerfile, opts.Tags)

	runs := build.RunLayers(build.ParseProgress(progress))
	result := &build.Result{Duration: time.Since(start)}
	result.Steps = reconcileSteps(plan, runs, buildErr)

	if buildErr != nil {
		if failed := result.FailedStep(); failed != nil {
			return result, failed.Error
		}
		return result, fmt.Errorf("bake failed: %w", buildErr)
	}

	result.Images = opts.Tags
	return result, nil
}

// reconcileSteps maps parsed RUN layers back onto plan steps. Layers
// map 1:1 onto steps in order, so on failure the step past the last
// completed layer is the one that broke; everything after it never ran.
func reconcileSteps(plan *provision.Plan, runs []build.LayerEvent, buildErr error) []build.StepResult {
	completed := len(runs)
	steps := make([]build.StepResult, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		sr := build.StepResult{Name: step.Name, Status: "success"}
		switch {
		case i < completed:
			sr.Cached = runs[i].Cached
			sr.Duration = runs[i].Duration
		case buildErr != nil && i == completed:
			sr.Status = "failed"
			sr.Error = fmt.Errorf("step %q failed: %w", step.Name, buildErr)
		case buildErr != nil:
			sr.Status = "skipped"
		}
		steps = append(steps, sr)
	}
	return steps
}
