// Package lock records the resolved plan on disk so later runs can
// prove the manifest still bakes the same image. The lockfile is the
// reproducibility contract: same fingerprint, same installed set.
package lock

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/kilnforge/kiln/src/provision"
)

// DefaultFile is the lockfile name written next to the manifest.
const DefaultFile = "kiln.lock.toml"

// File is the on-disk lock format.
type File struct {
	Base        string       `toml:"base"`
	Engine      string       `toml:"engine"`
	Fingerprint string       `toml:"fingerprint"`
	Steps       []StepRecord `toml:"steps"`
}

// StepRecord pins one resolved step.
type StepRecord struct {
	Kind   string `toml:"kind"`
	Name   string `toml:"name"`
	Script string `toml:"script"`
	Digest string `toml:"digest"`
}

// FromPlan builds a lock File for a resolved plan.
func FromPlan(plan *provision.Plan, engine string) *File {
	f := &File{
		Base:        plan.Base,
		Engine:      engine,
		Fingerprint: plan.Fingerprint(),
	}
	for _, step := range plan.Steps {
		f.Steps = append(f.Steps, StepRecord{
			Kind:   step.Kind,
			Name:   step.Name,
			Script: step.Script(),
			Digest: provision.StepDigest(step),
		})
	}
	return f
}

// Write marshals the lockfile to path.
func Write(path string, f *File) error {
	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding lockfile: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Read loads a lockfile from path.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding lockfile: %w", err)
	}
	return &f, nil
}

// Diff describes how a resolved plan drifted from the locked one.
// Empty means the plan still matches.
func (f *File) Diff(plan *provision.Plan) []string {
	var drift []string

	if f.Base != plan.Base {
		drift = append(drift, fmt.Sprintf("base image changed: %s → %s", f.Base, plan.Base))
	}
	if len(f.Steps) != len(plan.Steps) {
		drift = append(drift, fmt.Sprintf("step count changed: %d → %d", len(f.Steps), len(plan.Steps)))
	}

	n := len(f.Steps)
	if len(plan.Steps) < n {
		n = len(plan.Steps)
	}
	for i := 0; i < n; i++ {
		if f.Steps[i].Digest != provision.StepDigest(plan.Steps[i]) {
			drift = append(drift, fmt.Sprintf("step %d (%s) changed", i, plan.Steps[i].Name))
		}
	}

	if len(drift) == 0 && f.Fingerprint != plan.Fingerprint() {
		drift = append(drift, "plan fingerprint changed")
	}
	return drift
}
