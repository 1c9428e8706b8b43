package build

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/kilnforge/kiln/src/provision"
)

// Engine applies a provisioning plan to a base image and produces a
// tagged local image. Engines differ in mechanism, not semantics: steps
// are always applied strictly in order, and a failing step aborts the
// bake with nothing published.
type Engine interface {
	Name() string
	Bake(ctx context.Context, plan *provision.Plan, opts Options) (*Result, error)
}

// Options carries per-bake execution settings.
type Options struct {
	// Tags are the full image references to apply to the result.
	Tags []string

	// Verbose echoes the underlying docker invocations.
	Verbose bool

	// Stdout and Stderr receive raw tool output. Nil discards.
	Stdout io.Writer
	Stderr io.Writer

	// Bin overrides the docker binary. Empty = "docker".
	Bin string
}

// Runner builds the Docker runner for a bake.
func (o Options) Runner() *Docker {
	d := NewDocker(o.Verbose, o.Stdout, o.Stderr)
	if o.Bin != "" {
		d.Bin = o.Bin
	}
	return d
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Engine{}
)

// Register adds an engine constructor to the global registry.
// Called from init() in each engine package.
func Register(name string, constructor func() Engine) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("build: duplicate engine registration: %s", name))
	}
	registry[name] = constructor
}

// Get returns a new instance of the named engine.
func Get(name string) (Engine, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("build: unknown engine: %s", name)
	}
	return ctor(), nil
}

// All returns sorted names of all registered engines.
func All() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
