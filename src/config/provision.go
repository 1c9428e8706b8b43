package config

// ImageConfig names the image a bake produces.
type ImageConfig struct {
	Name string `yaml:"name"`

	// Tags are tag templates resolved against git metadata.
	// Supported: {version}, {major}, {minor}, {patch}, {branch}, {sha},
	// plus literals like "latest".
	Tags []string `yaml:"tags"`
}

// ProvisionConfig describes the base image and the ordered step list.
type ProvisionConfig struct {
	// Profile selects a built-in step sequence (e.g. "agent-dev").
	// Explicit steps take precedence over the profile's.
	Profile string `yaml:"profile"`

	// Base is the starting image reference (registry path + tag).
	Base string `yaml:"base"`

	// Timezone is the IANA zone written by timezone steps.
	Timezone string `yaml:"timezone"`

	// Engine is the build engine: "buildkit" or "exec".
	Engine string `yaml:"engine"`

	Steps []StepConfig `yaml:"steps"`
}

// VerifyConfig controls post-bake verification probes.
type VerifyConfig struct {
	Enabled *bool `yaml:"enabled"`

	// StockPip overrides the base image's stock pip version for the
	// installer-upgraded probe. Empty = query the base image directly.
	StockPip string `yaml:"stock_pip"`

	// Workers bounds concurrent probes. Zero = default.
	Workers int `yaml:"workers"`
}

// Active returns true unless verification is explicitly disabled.
func (v VerifyConfig) Active() bool {
	return v.Enabled == nil || *v.Enabled
}

// LintConfig controls the pre-bake secrets gate.
type LintConfig struct {
	Enabled *bool    `yaml:"enabled"`
	Exclude []string `yaml:"exclude"`
}

// Active returns true unless the lint gate is explicitly disabled.
func (l LintConfig) Active() bool {
	return l.Enabled == nil || *l.Enabled
}

// DefaultImageConfig returns sensible defaults for the produced image.
func DefaultImageConfig() ImageConfig {
	return ImageConfig{
		Name: "kiln-env",
		Tags: []string{"{version}", "latest"},
	}
}

// DefaultProvisionConfig returns sensible provisioning defaults.
func DefaultProvisionConfig() ProvisionConfig {
	return ProvisionConfig{
		Profile:  "agent-dev",
		Timezone: "America/Los_Angeles",
		Engine:   "buildkit",
	}
}

// DefaultVerifyConfig returns verification defaults.
func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{}
}

// DefaultLintConfig returns lint gate defaults.
func DefaultLintConfig() LintConfig {
	return LintConfig{
		Exclude: []string{},
	}
}
