package engines

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kilnforge/kiln/src/build"
	"github.com/kilnforge/kiln/src/provision"
)

func init() {
	build.Register("exec", func() build.Engine { return &execEngine{} })
}

// execEngine applies the plan literally: start a work container from the
// base image, run one docker exec per step in order, and commit the
// container into the target tags only after every step has succeeded.
// A failing step removes the work container — no partial image exists.
//
// Useful on daemons without buildx, and it makes the sequential
// invariant directly observable: the next exec is not issued until the
// previous one has returned its exit status.
type execEngine struct{}

func (e *execEngine) Name() string { return "exec" }

func (e *execEngine) Bake(ctx context.Context, plan *provision.Plan, opts build.Options) (*build.Result, error) {
	start := time.Now()
	d := opts.Runner()
	result := &build.Result{}

	cid, err := d.Output(ctx, "create", plan.Base, "sleep", "infinity")
	if err != nil {
		return nil, fmt.Errorf("creating work container from %s: %w", plan.Base, err)
	}
	// Removal must not inherit a canceled bake context.
	defer d.Run(context.Background(), "rm", "-f", cid)

	if err := d.Run(ctx, "start", cid); err != nil {
		return nil, fmt.Errorf("starting work container: %w", err)
	}

	for i, step := range plan.Steps {
		stepStart := time.Now()
		execErr := d.Run(ctx, execArgs(cid, step)...)

		sr := build.StepResult{Name: step.Name, Duration: time.Since(stepStart)}
		if got := build.ExitStatus(execErr); got != step.ExpectExit {
			sr.Status = "failed"
			sr.Error = fmt.Errorf("step %q exited %d (want %d)", step.Name, got, step.ExpectExit)
			result.Steps = append(result.Steps, sr)
			for _, rest := range plan.Steps[i+1:] {
				result.Steps = append(result.Steps, build.StepResult{Name: rest.Name, Status: "skipped"})
			}
			result.Duration = time.Since(start)
			return result, sr.Error
		}
		sr.Status = "success"
		result.Steps = append(result.Steps, sr)
	}

	if err := commit(ctx, d, cid, plan, opts.Tags); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	result.Images = opts.Tags
	result.Duration = time.Since(start)
	return result, nil
}

// execArgs assembles the docker exec invocation for one step.
// Step env rides on --env flags, sorted for stable invocations.
func execArgs(cid string, step provision.Step) []string {
	args := []string{"exec"}

	keys := make([]string, 0, len(step.Env))
	for k := range step.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--env", k+"="+step.Env[k])
	}

	args = append(args, cid, step.Command)
	args = append(args, step.Args...)
	return args
}

// commit snapshots the work container into the first tag, then aliases
// the remaining tags. Persistent env (TZ from a timezone step) is
// applied as a commit change so it survives into the image config.
func commit(ctx context.Context, d *build.Docker, cid string, plan *provision.Plan, tags []string) error {
	if len(tags) == 0 {
		return fmt.Errorf("commit: no image tags")
	}

	args := []string{"commit"}
	for _, step := range plan.Steps {
		if step.Kind == "timezone" {
			if tz, ok := step.Env["TZ"]; ok {
				args = append(args, "--change", "ENV TZ="+tz)
			}
		}
	}
	args = append(args, cid, tags[0])

	if err := d.Run(ctx, args...); err != nil {
		return fmt.Errorf("committing image: %w", err)
	}
	for _, tag := range tags[1:] {
		if err := d.Run(ctx, "tag", tags[0], tag); err != nil {
			return fmt.Errorf("tagging %s: %w", tag, err)
		}
	}
	return nil
}
