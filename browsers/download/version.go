package download

import (
	"fmt"
	"strings"

	"github.com/blang/semver"
)

// ParseVersion parses browser version numbers, which often have fewer or more than three
// components, e.g. "115.0" or "120.0.6099.109".
func ParseVersion(version string) (semver.Version, error) {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v, err := semver.ParseTolerant(strings.Join(parts, "."))
	if err != nil {
		return semver.Version{}, fmt.Errorf("invalid browser version %q: %w", version, err)
	}
	return v, nil
}

// AtLeast reports whether version is not older than minimum. Unparseable versions are never
// considered compatible.
func AtLeast(version, minimum string) bool {
	v, err := ParseVersion(version)
	if err != nil {
		return false
	}
	m, err := ParseVersion(minimum)
	if err != nil {
		return false
	}
	return v.GTE(m)
}

// MatchesPrefix reports whether version equals prefix or starts with prefix followed by a dot, so
// that "120" matches "120.0.6099.109" but not "1200.1".
func MatchesPrefix(version, prefix string) bool {
	return version == prefix || strings.HasPrefix(version, prefix+".")
}
