package build

import "time"

// Result captures the outcome of a full bake.
type Result struct {
	Steps    []StepResult
	Images   []string // tagged image references produced
	Duration time.Duration
}

// StepResult captures the outcome of a single provisioning step.
type StepResult struct {
	Name     string
	Status   string // "success", "failed", "skipped"
	Cached   bool   // layer was a cache hit (buildkit engine only)
	Duration time.Duration
	Error    error
}

// FailedStep returns the first failed step result, or nil.
func (r *Result) FailedStep() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Status == "failed" {
			return &r.Steps[i]
		}
	}
	return nil
}
