package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/kilnforge/kiln/src/build"
)

// defaultWorkers bounds concurrent probe containers.
const defaultWorkers = 4

// Result is the outcome of one probe.
type Result struct {
	Probe    Probe
	Status   string // "pass", "fail"
	Detail   string // e.g. resolved versions for pip-newer
	Duration time.Duration
}

// Runner executes probes with throwaway containers (`docker run --rm`).
// Probes are independent of each other, so they run concurrently — the
// sequential constraint on provisioning applies to layer application,
// not to reading the finished image.
type Runner struct {
	Docker  *build.Docker
	Workers int

	// StockPip is the base image's pip version for the pip-newer probe.
	// Nil = resolved on demand from the base image.
	StockPip *semver.Version
}

// Run executes all probes against the image. Results keep probe order.
// The returned error reflects runner trouble (daemon unreachable), not
// probe failures — those are Status "fail" in the results.
func (r *Runner) Run(ctx context.Context, image, base string, probes []Probe) ([]Result, error) {
	results := make([]Result, len(probes))

	// Resolve the stock pip version once, before fanning out.
	var stock *semver.Version
	for _, p := range probes {
		if p.Kind == PipNewer {
			var err error
			stock, err = r.stockPip(ctx, base)
			if err != nil {
				return nil, fmt.Errorf("resolving stock pip version: %w", err)
			}
			break
		}
	}

	workers := r.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, probe := range probes {
		eg.Go(func() error {
			start := time.Now()
			res := Result{Probe: probe, Status: "pass"}

			switch probe.Kind {
			case PipNewer:
				out, err := r.run(ctx, image, probe.argv())
				if err != nil {
					res.Status = "fail"
					res.Detail = "pip --version failed in image"
					break
				}
				current, perr := ParsePipVersion(out)
				if perr != nil {
					res.Status = "fail"
					res.Detail = perr.Error()
					break
				}
				res.Detail = fmt.Sprintf("%s > %s", current, stock)
				if !Newer(current, stock) {
					res.Status = "fail"
					res.Detail = fmt.Sprintf("pip %s is not newer than stock %s", current, stock)
				}

			default:
				if _, err := r.run(ctx, image, probe.argv()); err != nil {
					res.Status = "fail"
					res.Detail = fmt.Sprintf("exit %d", build.ExitStatus(err))
				}
			}

			res.Duration = time.Since(start)
			results[i] = res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Failed counts failing results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Status == "fail" {
			n++
		}
	}
	return n
}

// run starts a throwaway container and returns the command's stdout.
func (r *Runner) run(ctx context.Context, image string, argv []string) (string, error) {
	args := append([]string{"run", "--rm", image}, argv...)
	return r.Docker.Output(ctx, args...)
}

// stockPip resolves the base image's pip version, preferring an explicit
// override.
func (r *Runner) stockPip(ctx context.Context, base string) (*semver.Version, error) {
	if r.StockPip != nil {
		return r.StockPip, nil
	}
	out, err := r.run(ctx, base, []string{"pip", "--version"})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", base, err)
	}
	return ParsePipVersion(out)
}
