// Package provision holds the provisioning data model: an ordered list
// of build steps applied to a base image, and the lowering from the
// manifest into that list. Steps are plain records — command, arguments,
// expected exit status — so the total ordering and side-effect-only
// nature of a plan is checkable without executing anything.
package provision

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Step is one atomic, ordered provisioning action.
type Step struct {
	Kind string // "apt", "timezone", "pip-upgrade", "pip", "playwright", "run"
	Name string // short display name, e.g. "apt gnupg2 ffmpeg"

	Command    string            // program invoked inside the image, always a shell
	Args       []string          // shell args; the last one is the composed script
	Env        map[string]string // environment applied for this step (DEBIAN_FRONTEND, TZ)
	ExpectExit int               // required exit status; anything else aborts the bake

	// Derivation metadata for verification probes.
	AptPackages []string // installed OS packages
	PipPackages []string // installed pip requirements (may carry == pins)
	PipRemoved  []string // top-level packages uninstalled again (cache warming)
	Browser     string   // playwright browser engine, if any
}

// Script returns the composed shell script for this step.
func (s Step) Script() string {
	if len(s.Args) == 0 {
		return ""
	}
	return s.Args[len(s.Args)-1]
}

// Plan is the resolved, totally ordered step sequence for one bake.
// There are no conditional or concurrent steps: step i+1 never begins
// before step i has completed successfully.
type Plan struct {
	Base     string
	Timezone string
	Steps    []Step
}

// Fingerprint returns a stable digest of the plan: base image plus every
// rendered step script, in order. Two resolutions of the same manifest
// yield the same fingerprint; any drift in base, ordering, or commands
// changes it.
func (p *Plan) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(p.Base))
	h.Write([]byte{0})
	for _, step := range p.Steps {
		h.Write([]byte(step.Kind))
		h.Write([]byte{0})
		h.Write([]byte(step.Script()))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// StepDigest returns the digest of a single step's script.
func StepDigest(s Step) string {
	sum := sha256.Sum256([]byte(s.Script()))
	return hex.EncodeToString(sum[:])
}

// shellStep builds a Step around a composed script.
func shellStep(kind, name, script string, env map[string]string) Step {
	return Step{
		Kind:    kind,
		Name:    name,
		Command: "/bin/sh",
		Args:    []string{"-c", script},
		Env:     env,
	}
}

// joinCommands chains commands so the step fails on the first failing one.
func joinCommands(cmds ...string) string {
	return strings.Join(cmds, " && ")
}
