package provision

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilnforge/kiln/src/config"
)

//go:embed profiles/*.yml
var profileFS embed.FS

// Profile is a built-in, ready-to-bake step sequence.
type Profile struct {
	Base     string              `yaml:"base"`
	Timezone string              `yaml:"timezone"`
	Steps    []config.StepConfig `yaml:"steps"`
}

// LoadProfile decodes a built-in profile by name.
func LoadProfile(name string) (*Profile, error) {
	data, err := profileFS.ReadFile("profiles/" + name + ".yml")
	if err != nil {
		return nil, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}
	return &p, nil
}

// ProfileNames returns the sorted names of all built-in profiles.
func ProfileNames() []string {
	entries, err := profileFS.ReadDir("profiles")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yml"))
	}
	sort.Strings(names)
	return names
}
