package verify

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// pipVersionRe matches "pip 23.2.1 from /usr/lib/... (python 3.10)".
var pipVersionRe = regexp.MustCompile(`^pip\s+(\d+[^\s]*)`)

// ParsePipVersion extracts the semver from `pip --version` output.
func ParsePipVersion(out string) (*semver.Version, error) {
	m := pipVersionRe.FindStringSubmatch(out)
	if m == nil {
		return nil, fmt.Errorf("unrecognized pip --version output: %q", out)
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, fmt.Errorf("parsing pip version %q: %w", m[1], err)
	}
	return v, nil
}

// Newer reports whether current is strictly newer than stock.
func Newer(current, stock *semver.Version) bool {
	return current.GreaterThan(stock)
}
