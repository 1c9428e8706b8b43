// Package imagetag resolves image tag templates from git metadata.
// Version detection reads the repository directly (go-git) instead of
// shelling out, so it behaves the same with or without a git binary.
package imagetag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// VersionInfo holds resolved version metadata from git.
type VersionInfo struct {
	Version   string // "1.2.3", "1.2.3-rc.1", or "0.0.0-dev+abc1234"
	Base      string // semver base without prerelease
	Major     string
	Minor     string
	Patch     string
	SHA       string // short (7) commit hash
	Branch    string
	IsRelease bool // HEAD is exactly at a version tag
}

// semverRe captures major.minor.patch and optional -prerelease suffix.
var semverRe = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-(.+))?$`)

// Detect resolves version info for the repository containing dir.
// Outside a git repository it returns a bare "dev" identity rather
// than an error — an image bake does not require version control.
func Detect(dir string) *VersionInfo {
	v := &VersionInfo{Version: "dev", Base: "0.0.0", Major: "0", Minor: "0", Patch: "0"}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return v
	}

	head, err := repo.Head()
	if err != nil {
		return v
	}
	sha := head.Hash().String()
	if len(sha) > 7 {
		sha = sha[:7]
	}
	v.SHA = sha
	if head.Name().IsBranch() {
		v.Branch = head.Name().Short()
	}

	tag := tagAt(repo, head.Hash())
	if tag == "" {
		v.Version = fmt.Sprintf("0.0.0-dev+%s", v.SHA)
		return v
	}

	v.IsRelease = true
	if m := semverRe.FindStringSubmatch(tag); m != nil {
		v.Major, v.Minor, v.Patch = m[1], m[2], m[3]
		v.Base = fmt.Sprintf("%s.%s.%s", m[1], m[2], m[3])
		v.Version = v.Base
		if m[4] != "" {
			v.Version = fmt.Sprintf("%s-%s", v.Base, m[4])
		}
	} else {
		// Non-semver tag — use it raw
		raw := strings.TrimPrefix(tag, "v")
		v.Version = raw
		v.Base = raw
	}
	return v
}

// tagAt returns a tag name pointing exactly at the given commit, or "".
// Annotated tags are peeled to their target commit.
func tagAt(repo *git.Repository, commit plumbing.Hash) string {
	iter, err := repo.Tags()
	if err != nil {
		return ""
	}
	defer iter.Close()

	var found string
	_ = iter.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		if obj, tErr := repo.TagObject(ref.Hash()); tErr == nil {
			target = obj.Target
		}
		if target == commit {
			found = ref.Name().Short()
		}
		return nil
	})
	return found
}

// ResolveTags expands tag templates against version info.
//
// Supported templates:
//
//	{version}        → "1.2.3"
//	{major}          → "1"
//	{minor}          → "2"
//	{patch}          → "3"
//	{branch}         → "main"
//	{sha}            → "abc1234"  (short)
//	latest           → "latest"   (literal passthrough)
func ResolveTags(templates []string, v *VersionInfo) []string {
	if v == nil {
		return templates
	}

	tags := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		tag := tmpl
		tag = strings.ReplaceAll(tag, "{version}", v.Version)
		tag = strings.ReplaceAll(tag, "{major}", v.Major)
		tag = strings.ReplaceAll(tag, "{minor}", v.Minor)
		tag = strings.ReplaceAll(tag, "{patch}", v.Patch)
		tag = strings.ReplaceAll(tag, "{branch}", Sanitize(v.Branch))
		tag = strings.ReplaceAll(tag, "{sha}", v.SHA)
		tags = append(tags, Sanitize(tag))
	}
	return tags
}

// ImageRefs joins an image name with resolved tags into full references.
func ImageRefs(name string, tags []string) []string {
	if len(tags) == 0 {
		return []string{name + ":latest"}
	}
	refs := make([]string, 0, len(tags))
	for _, t := range tags {
		refs = append(refs, name+":"+t)
	}
	return refs
}

// Sanitize replaces characters not allowed in Docker tags.
func Sanitize(s string) string {
	r := strings.NewReplacer(
		"/", "-",
		" ", "-",
		"+", "-",
	)
	return r.Replace(s)
}
