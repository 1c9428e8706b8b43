package config

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func decodeSteps(t *testing.T, doc string) []StepConfig {
	t.Helper()

	var out struct {
		Steps []StepConfig `yaml:"steps"`
	}
	if err := yaml.Unmarshal([]byte(doc), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out.Steps
}

func TestStepDecodeForms(t *testing.T) {
	steps := decodeSteps(t, `
steps:
  - apt: [gnupg2, ffmpeg]
  - timezone: America/Los_Angeles
  - timezone: {}
  - pip-upgrade: {}
  - pip: [pandas, numpy]
  - pip:
      name: warm-cache
      packages: [autogen-core, "autogen-ext[openai]"]
      then_remove: [autogen-core, autogen-ext]
  - playwright: chromium
  - playwright:
      browser: firefox
      with_deps: false
  - run: "echo hello"
`)

	if len(steps) != 9 {
		t.Fatalf("expected 9 steps, got %d", len(steps))
	}

	if steps[0].Kind != StepApt || len(steps[0].Packages) != 2 {
		t.Errorf("apt shorthand: got %+v", steps[0])
	}
	if steps[1].Timezone != "America/Los_Angeles" {
		t.Errorf("timezone scalar: got %q", steps[1].Timezone)
	}
	if steps[2].Kind != StepTimezone || steps[2].Timezone != "" {
		t.Errorf("timezone empty map: got %+v", steps[2])
	}
	if steps[3].Kind != StepPipUpgrade {
		t.Errorf("pip-upgrade: got %+v", steps[3])
	}
	if steps[4].Kind != StepPip || len(steps[4].Packages) != 2 {
		t.Errorf("pip shorthand: got %+v", steps[4])
	}
	if steps[5].Name != "warm-cache" || len(steps[5].ThenRemove) != 2 {
		t.Errorf("pip long form: got %+v", steps[5])
	}
	if steps[6].Browser != "chromium" || !steps[6].FetchDeps() {
		t.Errorf("playwright scalar: got %+v", steps[6])
	}
	if steps[7].Browser != "firefox" || steps[7].FetchDeps() {
		t.Errorf("playwright long form: got %+v", steps[7])
	}
	if steps[8].Shell != "echo hello" {
		t.Errorf("run: got %q", steps[8].Shell)
	}
}

func TestStepDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown kind", "steps:\n  - conda: [numpy]\n", "unknown kind"},
		{"two keys", "steps:\n  - apt: [curl]\n    run: echo\n", "single-key"},
		{"apt scalar", "steps:\n  - apt: curl\n", "package list"},
		{"run list", "steps:\n  - run: [echo]\n", "shell command"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out struct {
				Steps []StepConfig `yaml:"steps"`
			}
			err := yaml.Unmarshal([]byte(tc.doc), &out)
			if err == nil {
				t.Fatalf("expected error, decoded %+v", out.Steps)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir() + "/.kiln.yml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provision.Profile != "agent-dev" {
		t.Errorf("default profile: got %q", cfg.Provision.Profile)
	}
	if cfg.Provision.Engine != "buildkit" {
		t.Errorf("default engine: got %q", cfg.Provision.Engine)
	}
	if cfg.Image.Name == "" {
		t.Error("default image name is empty")
	}
}
