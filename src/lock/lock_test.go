package lock

import (
	"path/filepath"
	"testing"

	"github.com/kilnforge/kiln/src/config"
	"github.com/kilnforge/kiln/src/provision"
)

func testPlan(t *testing.T) *provision.Plan {
	t.Helper()

	plan, err := provision.Resolve(&config.ProvisionConfig{
		Base: "debian:bookworm",
		Steps: []config.StepConfig{
			{Kind: config.StepApt, Packages: []string{"curl"}},
			{Kind: config.StepPipUpgrade},
		},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return plan
}

func TestRoundtrip(t *testing.T) {
	plan := testPlan(t)
	path := filepath.Join(t.TempDir(), DefaultFile)

	if err := Write(path, FromPlan(plan, "buildkit")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if got.Base != plan.Base {
		t.Errorf("base: %q", got.Base)
	}
	if got.Engine != "buildkit" {
		t.Errorf("engine: %q", got.Engine)
	}
	if got.Fingerprint != plan.Fingerprint() {
		t.Error("fingerprint changed across roundtrip")
	}
	if len(got.Steps) != 2 {
		t.Fatalf("steps: %d", len(got.Steps))
	}
	if got.Steps[0].Digest != provision.StepDigest(plan.Steps[0]) {
		t.Error("step digest changed across roundtrip")
	}

	if drift := got.Diff(plan); len(drift) != 0 {
		t.Errorf("unexpected drift: %v", drift)
	}
}

func TestDiff(t *testing.T) {
	plan := testPlan(t)
	locked := FromPlan(plan, "buildkit")

	drifted := testPlan(t)
	drifted.Base = "ubuntu:24.04"
	drift := locked.Diff(drifted)
	if len(drift) == 0 {
		t.Error("changed base not reported")
	}

	drifted = testPlan(t)
	drifted.Steps = drifted.Steps[:1]
	drift = locked.Diff(drifted)
	if len(drift) == 0 {
		t.Error("dropped step not reported")
	}

	drifted = testPlan(t)
	drifted.Steps[1].Args = []string{"-c", "pip install --upgrade pip setuptools"}
	drift = locked.Diff(drifted)
	if len(drift) == 0 {
		t.Error("edited step script not reported")
	}
}

func TestReadMissing(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), DefaultFile)); err == nil {
		t.Error("missing lockfile: expected error")
	}
}
