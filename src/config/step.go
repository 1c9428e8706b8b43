package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Step kinds accepted in a provision step list.
const (
	StepApt        = "apt"
	StepTimezone   = "timezone"
	StepPipUpgrade = "pip-upgrade"
	StepPip        = "pip"
	StepPlaywright = "playwright"
	StepRun        = "run"
)

var validStepKinds = map[string]bool{
	StepApt:        true,
	StepTimezone:   true,
	StepPipUpgrade: true,
	StepPip:        true,
	StepPlaywright: true,
	StepRun:        true,
}

// StepConfig is one entry of the provision step list. Which fields are
// meaningful depends on Kind.
type StepConfig struct {
	Kind string
	Name string

	// apt / pip
	Packages []string

	// pip: top-level packages removed again after install. Their
	// transitive dependencies stay (dependency cache warming).
	ThenRemove []string

	// timezone: IANA zone override. Empty = provision.timezone.
	Timezone string

	// playwright
	Browser  string
	WithDeps *bool

	// run: raw shell
	Shell string
}

// stepBody is the long-form mapping for pip and playwright steps.
type stepBody struct {
	Name       string   `yaml:"name"`
	Packages   []string `yaml:"packages"`
	ThenRemove []string `yaml:"then_remove"`
	Browser    string   `yaml:"browser"`
	WithDeps   *bool    `yaml:"with_deps"`
}

// UnmarshalYAML decodes the single-key step forms:
//
//	- apt: [gnupg2, ffmpeg]              → Kind "apt", Packages
//	- timezone: America/Los_Angeles      → Kind "timezone" (scalar optional)
//	- pip-upgrade: {}                    → Kind "pip-upgrade"
//	- pip: [pandas, numpy]               → Kind "pip", Packages (shorthand)
//	- pip:                               → Kind "pip", long form
//	    packages: [...]
//	    then_remove: [...]
//	- playwright: chromium               → Kind "playwright", Browser
//	- run: "echo hello"                  → Kind "run", Shell
func (s *StepConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return fmt.Errorf("step: expected a single-key mapping (e.g. 'apt: [...]'), got YAML kind %d", value.Kind)
	}

	keyNode, valNode := value.Content[0], value.Content[1]
	kind := keyNode.Value
	if !validStepKinds[kind] {
		return fmt.Errorf("step: unknown kind %q", kind)
	}
	s.Kind = kind

	switch kind {
	case StepApt:
		if valNode.Kind != yaml.SequenceNode {
			return fmt.Errorf("step apt: expected a package list")
		}
		return valNode.Decode(&s.Packages)

	case StepTimezone:
		switch valNode.Kind {
		case yaml.ScalarNode:
			return valNode.Decode(&s.Timezone)
		case yaml.MappingNode:
			return nil // empty map — zone comes from provision.timezone
		}
		return fmt.Errorf("step timezone: expected a zone name or empty map")

	case StepPipUpgrade:
		return nil

	case StepPip:
		if valNode.Kind == yaml.SequenceNode {
			return valNode.Decode(&s.Packages)
		}
		if valNode.Kind == yaml.MappingNode {
			var body stepBody
			if err := valNode.Decode(&body); err != nil {
				return fmt.Errorf("step pip: %w", err)
			}
			s.Name = body.Name
			s.Packages = body.Packages
			s.ThenRemove = body.ThenRemove
			return nil
		}
		return fmt.Errorf("step pip: expected a package list or mapping")

	case StepPlaywright:
		if valNode.Kind == yaml.ScalarNode {
			return valNode.Decode(&s.Browser)
		}
		if valNode.Kind == yaml.MappingNode {
			var body stepBody
			if err := valNode.Decode(&body); err != nil {
				return fmt.Errorf("step playwright: %w", err)
			}
			s.Browser = body.Browser
			s.WithDeps = body.WithDeps
			return nil
		}
		return fmt.Errorf("step playwright: expected a browser name or mapping")

	case StepRun:
		if valNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("step run: expected a shell command string")
		}
		return valNode.Decode(&s.Shell)
	}

	return nil
}

// FetchDeps reports whether a playwright step also fetches the browser's
// OS-level dependencies. Defaults to true.
func (s StepConfig) FetchDeps() bool {
	return s.WithDeps == nil || *s.WithDeps
}
