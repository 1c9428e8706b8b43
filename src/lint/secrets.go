// Package lint is the pre-bake gate. Credentials that reach a build step
// become image layers forever, so the manifest, every raw run script,
// and the rendered Dockerfile are scanned before any step executes.
package lint

import (
	"context"
	"sort"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
	"golang.org/x/sync/errgroup"
)

// Finding is one detected secret.
type Finding struct {
	Source      string // logical source name: manifest path, "dockerfile", "steps[3].run"
	Line        int    // 1-based line within the source
	RuleID      string
	Description string
}

// Source is a named blob to scan.
type Source struct {
	Name string
	Data []byte
}

// scanWorkers bounds concurrent detector runs.
const scanWorkers = 4

// Gate wraps a gitleaks detector with its default ruleset.
type Gate struct {
	detector *detect.Detector
}

// NewGate builds a gate with the stock gitleaks configuration.
func NewGate() (*Gate, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}
	return &Gate{detector: d}, nil
}

// Scan runs the detector over all sources concurrently and returns every
// finding. Findings are always blocking — there is no severity ladder
// here, a secret in a build step is a critical by definition.
func (g *Gate) Scan(ctx context.Context, sources []Source) ([]Finding, error) {
	var mu sync.Mutex
	var findings []Finding

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(scanWorkers)

	for _, src := range sources {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hits := g.detector.DetectBytes(src.Data)
			if len(hits) == 0 {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, h := range hits {
				findings = append(findings, Finding{
					Source:      src.Name,
					Line:        h.StartLine + 1, // gitleaks is 0-indexed
					RuleID:      h.RuleID,
					Description: h.Description,
				})
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Source != findings[j].Source {
			return findings[i].Source < findings[j].Source
		}
		return findings[i].Line < findings[j].Line
	})
	return findings, nil
}
