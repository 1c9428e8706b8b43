// Package verify turns a provisioning plan into executable checks
// against the baked image: everything the plan installed must be
// present, everything it deliberately removed must be absent, the
// package installer must have moved past the base image's stock
// version, and the fetched browser engine must actually be executable.
package verify

import (
	"fmt"

	"github.com/kilnforge/kiln/src/config"
	"github.com/kilnforge/kiln/src/provision"
)

// Kind classifies a probe.
type Kind string

const (
	AptPresent  Kind = "apt-present"  // OS package installed (dpkg -s)
	PipPresent  Kind = "pip-present"  // pip package installed (pip show)
	PipAbsent   Kind = "pip-absent"   // top-level package uninstalled again
	PipNewer    Kind = "pip-newer"    // pip strictly newer than the base image's
	BrowserExec Kind = "browser-exec" // browser engine binary is executable
)

// Probe is one independent check against the baked image.
type Probe struct {
	Kind    Kind
	Subject string // package, browser, or "" for pip-newer
}

func (p Probe) String() string {
	if p.Subject == "" {
		return string(p.Kind)
	}
	return fmt.Sprintf("%s %s", p.Kind, p.Subject)
}

// Derive walks the plan and produces its probe set.
//
// A package that a later warm-cache step removes again must not get a
// presence probe from the step that installed it; removal wins.
func Derive(plan *provision.Plan) []Probe {
	removed := map[string]bool{}
	for _, step := range plan.Steps {
		for _, r := range step.PipRemoved {
			removed[config.PinName(r)] = true
		}
	}

	var probes []Probe
	sawUpgrade := false

	for _, step := range plan.Steps {
		for _, pkg := range step.AptPackages {
			probes = append(probes, Probe{Kind: AptPresent, Subject: pkg})
		}
		for _, req := range step.PipPackages {
			name := config.PinName(req)
			if removed[name] {
				continue
			}
			probes = append(probes, Probe{Kind: PipPresent, Subject: name})
		}
		for _, r := range step.PipRemoved {
			probes = append(probes, Probe{Kind: PipAbsent, Subject: config.PinName(r)})
		}
		if step.Kind == config.StepPipUpgrade && !sawUpgrade {
			probes = append(probes, Probe{Kind: PipNewer})
			sawUpgrade = true
		}
		if step.Browser != "" {
			probes = append(probes, Probe{Kind: BrowserExec, Subject: step.Browser})
		}
	}
	return probes
}

// argv returns the command run inside the image for this probe.
// pip-newer is special-cased by the runner (it compares two outputs).
func (p Probe) argv() []string {
	switch p.Kind {
	case AptPresent:
		return []string{"dpkg", "-s", p.Subject}
	case PipPresent:
		return []string{"pip", "show", "--quiet", p.Subject}
	case PipAbsent:
		// inverted: probe passes when pip show fails
		return []string{"sh", "-c", "! pip show --quiet " + p.Subject}
	case PipNewer:
		return []string{"pip", "--version"}
	case BrowserExec:
		script := fmt.Sprintf(
			`test -x "$(python -c 'from playwright.sync_api import sync_playwright; pw = sync_playwright().start(); print(pw.%s.executable_path)')"`,
			p.Subject)
		return []string{"sh", "-c", script}
	}
	return nil
}
