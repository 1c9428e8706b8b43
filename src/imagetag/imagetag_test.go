package imagetag

import (
	"reflect"
	"testing"
)

func TestResolveTags(t *testing.T) {
	v := &VersionInfo{
		Version: "1.2.3",
		Base:    "1.2.3",
		Major:   "1", Minor: "2", Patch: "3",
		SHA:    "abc1234",
		Branch: "feature/tags",
	}

	got := ResolveTags([]string{"{version}", "{major}.{minor}", "{branch}-{sha}", "latest"}, v)
	want := []string{"1.2.3", "1.2", "feature-tags-abc1234", "latest"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveTags:\n got %v\nwant %v", got, want)
	}
}

func TestResolveTagsDevVersion(t *testing.T) {
	v := &VersionInfo{Version: "0.0.0-dev+abc1234", Major: "0", Minor: "0", Patch: "0", SHA: "abc1234"}
	got := ResolveTags([]string{"{version}"}, v)
	if got[0] != "0.0.0-dev-abc1234" {
		t.Errorf("dev version not sanitized for docker: %q", got[0])
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"feature/tags":     "feature-tags",
		"with space":       "with-space",
		"0.0.0-dev+abc123": "0.0.0-dev-abc123",
		"plain":            "plain",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestImageRefs(t *testing.T) {
	got := ImageRefs("kiln-env", []string{"1.2.3", "latest"})
	want := []string{"kiln-env:1.2.3", "kiln-env:latest"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ImageRefs: got %v, want %v", got, want)
	}

	got = ImageRefs("kiln-env", nil)
	if len(got) != 1 || got[0] != "kiln-env:latest" {
		t.Errorf("ImageRefs with no tags: %v", got)
	}
}

func TestDetectOutsideRepository(t *testing.T) {
	v := Detect(t.TempDir())
	if v.Version != "dev" {
		t.Errorf("version outside a repo: %q", v.Version)
	}
	if v.IsRelease {
		t.Error("IsRelease outside a repo")
	}
}
