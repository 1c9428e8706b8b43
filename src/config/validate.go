package config

import (
	"fmt"
	"strings"
)

var validEngines = map[string]bool{
	"buildkit": true,
	"exec":     true,
}

// Browsers playwright's driver installer knows how to fetch.
var validBrowsers = map[string]bool{
	"chromium": true,
	"firefox":  true,
	"webkit":   true,
}

// Validate checks structural invariants of a loaded Config.
// Returns warnings (soft issues) and a hard error if the config is invalid.
func Validate(cfg *Config) (warnings []string, err error) {
	var errs []string

	// ── Image ─────────────────────────────────────────────────────────────

	if cfg.Image.Name == "" {
		errs = append(errs, "image.name is required")
	} else if strings.ContainsAny(cfg.Image.Name, " \t") {
		errs = append(errs, fmt.Sprintf("image.name: %q must not contain whitespace", cfg.Image.Name))
	}
	if len(cfg.Image.Tags) == 0 {
		warnings = append(warnings, "image.tags is empty — the baked image will only be tagged :latest")
	}

	// ── Provision ─────────────────────────────────────────────────────────

	if cfg.Provision.Base == "" && cfg.Provision.Profile == "" {
		errs = append(errs, "provision.base is required when no profile is set")
	}
	if cfg.Provision.Engine != "" && !validEngines[cfg.Provision.Engine] {
		errs = append(errs, fmt.Sprintf("provision.engine: unknown engine %q (supported: buildkit, exec)", cfg.Provision.Engine))
	}

	for i, step := range cfg.Provision.Steps {
		spath := fmt.Sprintf("provision.steps[%d]", i)

		switch step.Kind {
		case "":
			errs = append(errs, fmt.Sprintf("%s: kind is required", spath))

		case StepApt:
			if len(step.Packages) == 0 {
				errs = append(errs, fmt.Sprintf("%s: apt step needs at least one package", spath))
			}

		case StepPip:
			if len(step.Packages) == 0 {
				errs = append(errs, fmt.Sprintf("%s: pip step needs at least one package", spath))
			}
			errs = append(errs, validatePins(step.Packages, spath)...)

			// then_remove must name packages installed by this same step,
			// otherwise the warm-cache pattern silently does nothing.
			installed := make(map[string]bool, len(step.Packages))
			for _, p := range step.Packages {
				installed[PinName(p)] = true
			}
			for _, r := range step.ThenRemove {
				if !installed[r] {
					errs = append(errs, fmt.Sprintf("%s: then_remove names %q which this step does not install", spath, r))
				}
			}

		case StepPlaywright:
			if step.Browser == "" {
				errs = append(errs, fmt.Sprintf("%s: playwright step requires a browser", spath))
			} else if !validBrowsers[step.Browser] {
				errs = append(errs, fmt.Sprintf("%s: unknown browser %q (supported: chromium, firefox, webkit)", spath, step.Browser))
			}

		case StepRun:
			if strings.TrimSpace(step.Shell) == "" {
				errs = append(errs, fmt.Sprintf("%s: run step has an empty command", spath))
			}
		}
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return warnings, nil
}

// validatePins checks that version pins use a single exact "==" form.
// Ranges would make two bakes of the same manifest diverge.
func validatePins(packages []string, spath string) []string {
	var errs []string
	for _, p := range packages {
		for _, op := range []string{">=", "<=", "~=", "!=", ">", "<"} {
			if strings.Contains(p, op) {
				errs = append(errs, fmt.Sprintf("%s: package %q uses a version range — only exact '==' pins are reproducible", spath, p))
				break
			}
		}
		if strings.Count(p, "==") > 1 {
			errs = append(errs, fmt.Sprintf("%s: package %q has multiple '==' pins", spath, p))
		}
	}
	return errs
}

// PinName strips a version pin from a pip requirement: "foo==1.2" → "foo".
func PinName(req string) string {
	name := req
	if i := strings.Index(name, "=="); i >= 0 {
		name = name[:i]
	}
	// strip extras marker too: "foo[bar]" → "foo"
	if i := strings.Index(name, "["); i >= 0 {
		name = name[:i]
	}
	return name
}
