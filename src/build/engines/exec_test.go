package engines

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/kilnforge/kiln/src/build"
	"github.com/kilnforge/kiln/src/config"
	"github.com/kilnforge/kiln/src/provision"
)

func TestExecArgs(t *testing.T) {
	step := provision.Step{
		Command: "/bin/sh",
		Args:    []string{"-c", "apt-get update"},
		Env: map[string]string{
			"TZ":              "America/Los_Angeles",
			"DEBIAN_FRONTEND": "noninteractive",
		},
	}

	got := execArgs("abc123", step)
	want := []string{
		"exec",
		"--env", "DEBIAN_FRONTEND=noninteractive",
		"--env", "TZ=America/Los_Angeles",
		"abc123", "/bin/sh", "-c", "apt-get update",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("execArgs:\n got %v\nwant %v", got, want)
	}
}

func TestExecArgsNoEnv(t *testing.T) {
	step := provision.Step{Command: "/bin/sh", Args: []string{"-c", "echo hi"}}
	got := execArgs("cid", step)
	want := []string{"exec", "cid", "/bin/sh", "-c", "echo hi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("execArgs:\n got %v\nwant %v", got, want)
	}
}

// stubDocker writes a fake docker binary that logs every invocation and
// fails the failAt'th exec call with exit 7 (0 = never fail).
// It returns the binary path and the invocation log path.
func stubDocker(t *testing.T, failAt int) (bin, log string) {
	t.Helper()

	dir := t.TempDir()
	bin = filepath.Join(dir, "docker")
	log = filepath.Join(dir, "invocations.log")
	count := filepath.Join(dir, "exec.count")

	t.Setenv("KILN_STUB_LOG", log)
	t.Setenv("KILN_STUB_COUNT", count)

	script := `#!/bin/sh
echo "$@" >> "$KILN_STUB_LOG"
case "$1" in
create)
    echo cid123
    ;;
exec)
    n=0
    [ -f "$KILN_STUB_COUNT" ] && n=$(cat "$KILN_STUB_COUNT")
    n=$((n+1))
    echo "$n" > "$KILN_STUB_COUNT"
    if [ "$n" -eq FAIL_AT ]; then
        exit 7
    fi
    ;;
esac
exit 0
`
	script = strings.ReplaceAll(script, "FAIL_AT", strconv.Itoa(failAt))
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin, log
}

func execPlan(t *testing.T) *provision.Plan {
	t.Helper()

	plan, err := provision.Resolve(&config.ProvisionConfig{
		Base:     "debian:bookworm",
		Timezone: "Europe/Berlin",
		Steps: []config.StepConfig{
			{Kind: config.StepApt, Packages: []string{"curl"}},
			{Kind: config.StepTimezone},
			{Kind: config.StepPipUpgrade},
		},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return plan
}

func readLog(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading invocation log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestExecEngineFailFast(t *testing.T) {
	bin, log := stubDocker(t, 2) // second step fails
	plan := execPlan(t)

	result, err := (&execEngine{}).Bake(context.Background(), plan,
		build.Options{Tags: []string{"kiln-env:test"}, Bin: bin})
	if err == nil {
		t.Fatal("expected bake error")
	}
	if !strings.Contains(err.Error(), plan.Steps[1].Name) {
		t.Errorf("error does not name the failing step: %v", err)
	}

	want := []string{"success", "failed", "skipped"}
	if len(result.Steps) != len(want) {
		t.Fatalf("step results: %+v", result.Steps)
	}
	for i, w := range want {
		if result.Steps[i].Status != w {
			t.Errorf("step %d: status %q, want %q", i, result.Steps[i].Status, w)
		}
	}
	if len(result.Images) != 0 {
		t.Errorf("failed bake reported images: %v", result.Images)
	}

	lines := readLog(t, log)
	execs := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "exec ") {
			execs++
		}
		if strings.HasPrefix(line, "commit") || strings.HasPrefix(line, "tag ") {
			t.Errorf("failed bake still ran: %q", line)
		}
	}
	// The step after the failing one must never have been issued.
	if execs != 2 {
		t.Errorf("expected 2 exec invocations, got %d:\n%s", execs, strings.Join(lines, "\n"))
	}
	if last := lines[len(lines)-1]; last != "rm -f cid123" {
		t.Errorf("work container not removed, last invocation: %q", last)
	}
}

func TestExecEngineCommitsOnSuccess(t *testing.T) {
	bin, log := stubDocker(t, 0)
	plan := execPlan(t)
	tags := []string{"kiln-env:1.2.3", "kiln-env:latest"}

	result, err := (&execEngine{}).Bake(context.Background(), plan, build.Options{Tags: tags, Bin: bin})
	if err != nil {
		t.Fatalf("bake: %v", err)
	}
	if !reflect.DeepEqual(result.Images, tags) {
		t.Errorf("images: %v", result.Images)
	}
	for i, sr := range result.Steps {
		if sr.Status != "success" {
			t.Errorf("step %d: %+v", i, sr)
		}
	}

	var committed, aliased bool
	for _, line := range readLog(t, log) {
		if strings.HasPrefix(line, "commit ") {
			committed = true
			if !strings.Contains(line, "--change ENV TZ=Europe/Berlin") {
				t.Errorf("commit does not persist TZ: %q", line)
			}
			if !strings.HasSuffix(line, "cid123 kiln-env:1.2.3") {
				t.Errorf("commit target: %q", line)
			}
		}
		if line == "tag kiln-env:1.2.3 kiln-env:latest" {
			aliased = true
		}
	}
	if !committed {
		t.Error("no commit invocation")
	}
	if !aliased {
		t.Error("second tag not aliased")
	}
}
