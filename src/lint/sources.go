package lint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kilnforge/kiln/src/provision"
)

// CollectSources gathers everything worth scanning for one bake: the
// manifest file (when present), each step's composed script, and the
// rendered Dockerfile.
func CollectSources(manifestPath string, plan *provision.Plan, dockerfile string) ([]Source, error) {
	var sources []Source

	if manifestPath != "" {
		data, err := os.ReadFile(manifestPath)
		switch {
		case err == nil:
			sources = append(sources, Source{Name: manifestPath, Data: data})
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("reading manifest: %w", err)
		}
	}

	for i, step := range plan.Steps {
		sources = append(sources, Source{
			Name: fmt.Sprintf("steps[%d] %s", i, step.Name),
			Data: []byte(step.Script()),
		})
	}

	sources = append(sources, Source{Name: "dockerfile", Data: []byte(dockerfile)})
	return sources, nil
}
