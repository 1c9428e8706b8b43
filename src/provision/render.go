package provision

import (
	"fmt"
	"sort"
	"strings"
)

// Render emits the plan as Dockerfile text: one FROM line, then one RUN
// layer per step, in plan order. Step environment renders as an inline
// prefix so it does not leak into the final image — except TZ on
// timezone steps, which is meant to persist and renders as ENV.
func Render(plan *Plan) string {
	var b strings.Builder

	b.WriteString("# Generated by kiln — do not edit; change the manifest instead.\n")
	fmt.Fprintf(&b, "FROM %s\n", plan.Base)

	for _, step := range plan.Steps {
		b.WriteString("\n")
		fmt.Fprintf(&b, "# %s\n", step.Name)

		env := step.Env
		if step.Kind == "timezone" {
			if tz, ok := env["TZ"]; ok {
				fmt.Fprintf(&b, "ENV TZ=%s\n", tz)
				env = nil
			}
		}

		fmt.Fprintf(&b, "RUN %s%s\n", inlineEnv(env), step.Script())
	}

	return b.String()
}

// inlineEnv renders step env as a sorted KEY=VALUE prefix for a RUN line.
func inlineEnv(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s ", k, env[k])
	}
	return b.String()
}
