package provision

import (
	"fmt"
	"strings"

	"github.com/kilnforge/kiln/src/config"
)

// Resolve lowers the manifest's step list into an executable Plan.
// Profile steps are used when the manifest declares none of its own.
func Resolve(cfg *config.ProvisionConfig) (*Plan, error) {
	base := cfg.Base
	steps := cfg.Steps
	timezone := cfg.Timezone

	if len(steps) == 0 {
		if cfg.Profile == "" {
			return nil, fmt.Errorf("provision: no steps and no profile configured")
		}
		prof, err := LoadProfile(cfg.Profile)
		if err != nil {
			return nil, err
		}
		steps = prof.Steps
		if base == "" {
			base = prof.Base
		}
		if timezone == "" {
			timezone = prof.Timezone
		}
	}
	if base == "" {
		return nil, fmt.Errorf("provision: no base image configured")
	}

	plan := &Plan{Base: base, Timezone: timezone}
	for i, sc := range steps {
		step, err := lower(sc, timezone)
		if err != nil {
			return nil, fmt.Errorf("provision: step %d: %w", i, err)
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

// lower converts one StepConfig into a Step record.
func lower(sc config.StepConfig, timezone string) (Step, error) {
	switch sc.Kind {
	case config.StepApt:
		return lowerApt(sc), nil
	case config.StepTimezone:
		return lowerTimezone(sc, timezone)
	case config.StepPipUpgrade:
		return shellStep(sc.Kind, "pip upgrade", "pip install --upgrade pip", nil), nil
	case config.StepPip:
		return lowerPip(sc), nil
	case config.StepPlaywright:
		return lowerPlaywright(sc), nil
	case config.StepRun:
		name := sc.Name
		if name == "" {
			name = truncate(sc.Shell, 40)
		}
		return shellStep(sc.Kind, name, sc.Shell, nil), nil
	}
	return Step{}, fmt.Errorf("unknown step kind %q", sc.Kind)
}

func lowerApt(sc config.StepConfig) Step {
	script := joinCommands(
		"apt-get update",
		"apt-get install -y --no-install-recommends "+strings.Join(sc.Packages, " "),
		"rm -rf /var/lib/apt/lists/*",
	)
	step := shellStep(sc.Kind, "apt "+strings.Join(sc.Packages, " "), script,
		map[string]string{"DEBIAN_FRONTEND": "noninteractive"})
	step.AptPackages = sc.Packages
	return step
}

func lowerTimezone(sc config.StepConfig, fallback string) (Step, error) {
	zone := sc.Timezone
	if zone == "" {
		zone = fallback
	}
	if zone == "" {
		return Step{}, fmt.Errorf("timezone step: no zone configured")
	}
	script := joinCommands(
		fmt.Sprintf("ln -snf /usr/share/zoneinfo/%s /etc/localtime", zone),
		fmt.Sprintf("echo %s > /etc/timezone", zone),
	)
	step := shellStep(sc.Kind, "timezone "+zone, script, map[string]string{"TZ": zone})
	return step, nil
}

func lowerPip(sc config.StepConfig) Step {
	cmds := []string{"pip install " + strings.Join(sc.Packages, " ")}
	if len(sc.ThenRemove) > 0 {
		cmds = append(cmds, "pip uninstall -y "+strings.Join(sc.ThenRemove, " "))
	}
	name := sc.Name
	if name == "" {
		name = "pip " + truncate(strings.Join(sc.Packages, " "), 40)
		if len(sc.ThenRemove) > 0 {
			name = "pip warm-cache"
		}
	}
	step := shellStep(sc.Kind, name, joinCommands(cmds...), nil)
	step.PipPackages = sc.Packages
	step.PipRemoved = sc.ThenRemove
	return step
}

func lowerPlaywright(sc config.StepConfig) Step {
	install := "playwright install"
	if sc.FetchDeps() {
		install += " --with-deps"
	}
	install += " " + sc.Browser
	script := joinCommands("pip install playwright", install)

	step := shellStep(sc.Kind, "playwright "+sc.Browser, script, nil)
	step.PipPackages = []string{"playwright"}
	step.Browser = sc.Browser
	return step
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
