package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Docker shells out to the docker CLI. Both engines drive Docker through
// its CLI rather than the daemon API, so podman-compatible shims work
// unchanged.
type Docker struct {
	Bin     string // docker binary, default "docker"
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewDocker creates a runner writing to the given streams.
func NewDocker(verbose bool, stdout, stderr io.Writer) *Docker {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Docker{Bin: "docker", Verbose: verbose, Stdout: stdout, Stderr: stderr}
}

// Run executes a docker subcommand, streaming output to the configured writers.
func (d *Docker) Run(ctx context.Context, args ...string) error {
	if d.Verbose {
		fmt.Fprintf(d.Stderr, "exec: %s %s\n", d.bin(), strings.Join(args, " "))
	}
	cmd := exec.CommandContext(ctx, d.bin(), args...)
	cmd.Stdout = d.Stdout
	cmd.Stderr = d.Stderr
	return cmd.Run()
}

// Output executes a docker subcommand and returns trimmed stdout.
// Stderr still goes to the configured writer.
func (d *Docker) Output(ctx context.Context, args ...string) (string, error) {
	if d.Verbose {
		fmt.Fprintf(d.Stderr, "exec: %s %s\n", d.bin(), strings.Join(args, " "))
	}
	cmd := exec.CommandContext(ctx, d.bin(), args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = d.Stderr
	err := cmd.Run()
	return strings.TrimSpace(out.String()), err
}

// BuildxBuild runs `docker buildx build` with plain progress and returns
// the captured progress output for layer parsing. The image loads into
// the local daemon — kiln never pushes.
func (d *Docker) BuildxBuild(ctx context.Context, contextDir, dockerfile string, tags []string) (string, error) {
	args := []string{"buildx", "build", "--progress=plain", "--load", "--file", dockerfile}
	for _, tag := range tags {
		args = append(args, "--tag", tag)
	}
	args = append(args, contextDir)

	if d.Verbose {
		fmt.Fprintf(d.Stderr, "exec: %s %s\n", d.bin(), strings.Join(args, " "))
	}

	// buildx writes progress to stderr; capture it and tee to the
	// configured writer so verbose runs still stream.
	var progress bytes.Buffer
	cmd := exec.CommandContext(ctx, d.bin(), args...)
	cmd.Stdout = d.Stdout
	cmd.Stderr = io.MultiWriter(&progress, d.Stderr)

	err := cmd.Run()
	return progress.String(), err
}

// ExitStatus extracts the exit code from a command error.
// Returns 0 for nil, -1 when the process never ran.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

func (d *Docker) bin() string {
	if d.Bin == "" {
		return "docker"
	}
	return d.Bin
}
