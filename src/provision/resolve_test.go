package provision

import (
	"strings"
	"testing"

	"github.com/kilnforge/kiln/src/config"
)

func TestResolveLowersSteps(t *testing.T) {
	cfg := &config.ProvisionConfig{
		Base:     "debian:bookworm",
		Timezone: "Europe/Berlin",
		Steps: []config.StepConfig{
			{Kind: config.StepApt, Packages: []string{"gnupg2", "ffmpeg"}},
			{Kind: config.StepTimezone},
			{Kind: config.StepPipUpgrade},
			{Kind: config.StepPip, Packages: []string{"autogen-core"}, ThenRemove: []string{"autogen-core"}},
			{Kind: config.StepPlaywright, Browser: "chromium"},
			{Kind: config.StepRun, Shell: "echo done"},
		},
	}

	plan, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if plan.Base != "debian:bookworm" {
		t.Errorf("base: got %q", plan.Base)
	}
	if len(plan.Steps) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(plan.Steps))
	}

	apt := plan.Steps[0]
	if apt.Command != "/bin/sh" || len(apt.Args) != 2 {
		t.Errorf("apt step shape: %+v", apt)
	}
	if !strings.Contains(apt.Script(), "apt-get update && apt-get install -y --no-install-recommends gnupg2 ffmpeg") {
		t.Errorf("apt script: %q", apt.Script())
	}
	if !strings.Contains(apt.Script(), "rm -rf /var/lib/apt/lists/*") {
		t.Errorf("apt script does not clean lists: %q", apt.Script())
	}
	if apt.Env["DEBIAN_FRONTEND"] != "noninteractive" {
		t.Errorf("apt env: %v", apt.Env)
	}

	tz := plan.Steps[1]
	if !strings.Contains(tz.Script(), "ln -snf /usr/share/zoneinfo/Europe/Berlin /etc/localtime") {
		t.Errorf("timezone symlink: %q", tz.Script())
	}
	if !strings.Contains(tz.Script(), "echo Europe/Berlin > /etc/timezone") {
		t.Errorf("timezone file: %q", tz.Script())
	}
	if tz.Env["TZ"] != "Europe/Berlin" {
		t.Errorf("timezone env: %v", tz.Env)
	}

	if plan.Steps[2].Script() != "pip install --upgrade pip" {
		t.Errorf("pip-upgrade script: %q", plan.Steps[2].Script())
	}

	warm := plan.Steps[3]
	if warm.Script() != "pip install autogen-core && pip uninstall -y autogen-core" {
		t.Errorf("warm-cache script: %q", warm.Script())
	}
	if warm.Name != "pip warm-cache" {
		t.Errorf("warm-cache name: %q", warm.Name)
	}
	if len(warm.PipRemoved) != 1 {
		t.Errorf("warm-cache removed: %v", warm.PipRemoved)
	}

	pw := plan.Steps[4]
	if pw.Script() != "pip install playwright && playwright install --with-deps chromium" {
		t.Errorf("playwright script: %q", pw.Script())
	}
	if pw.Browser != "chromium" {
		t.Errorf("playwright browser: %q", pw.Browser)
	}

	for i, step := range plan.Steps {
		if step.ExpectExit != 0 {
			t.Errorf("step %d: expected exit 0, got %d", i, step.ExpectExit)
		}
	}
}

func TestResolvePlaywrightWithoutDeps(t *testing.T) {
	off := false
	cfg := &config.ProvisionConfig{
		Base: "debian:bookworm",
		Steps: []config.StepConfig{
			{Kind: config.StepPlaywright, Browser: "firefox", WithDeps: &off},
		},
	}
	plan, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := plan.Steps[0].Script(); strings.Contains(got, "--with-deps") {
		t.Errorf("with_deps false still renders --with-deps: %q", got)
	}
}

func TestResolveProfileFallback(t *testing.T) {
	cfg := &config.ProvisionConfig{Profile: "agent-dev"}
	plan, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if plan.Base != "mcr.microsoft.com/devcontainers/python:3.10" {
		t.Errorf("profile base: %q", plan.Base)
	}
	if len(plan.Steps) != 7 {
		t.Fatalf("expected 7 profile steps, got %d", len(plan.Steps))
	}
	if plan.Timezone != "America/Los_Angeles" {
		t.Errorf("profile timezone: %q", plan.Timezone)
	}
}

func TestResolveErrors(t *testing.T) {
	if _, err := Resolve(&config.ProvisionConfig{}); err == nil {
		t.Error("empty config: expected error")
	}
	if _, err := Resolve(&config.ProvisionConfig{Profile: "no-such"}); err == nil {
		t.Error("unknown profile: expected error")
	}
	cfg := &config.ProvisionConfig{
		Base:  "debian:bookworm",
		Steps: []config.StepConfig{{Kind: config.StepTimezone}},
	}
	if _, err := Resolve(cfg); err == nil {
		t.Error("timezone step without a zone: expected error")
	}
}

func TestFingerprintStable(t *testing.T) {
	cfg := &config.ProvisionConfig{Profile: "agent-dev"}
	a, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	b, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("same manifest, different fingerprints")
	}

	b.Steps[0], b.Steps[1] = b.Steps[1], b.Steps[0]
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("reordered steps kept the fingerprint")
	}
}
