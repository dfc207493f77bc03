package release

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

func trimVersionPrefix(v string) string {
	if strings.HasPrefix(v, "v") || strings.HasPrefix(v, "V") {
		return v[1:]
	}
	return v
}

func splitVersion(v string) ([]string, bool) {
	parts := strings.Split(trimVersionPrefix(v), ".")
	if len(parts) != 3 {
		return nil, false
	}
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	return parts, true
}

// IsWellFormedVersion reports whether v is a dotted major.minor.patch string
// with an optional leading "v" or "V".
func IsWellFormedVersion(v string) bool {
	_, ok := splitVersion(v)
	return ok
}

// IsSameVersion compares major, minor and patch of a and b as strings, so
// "1.02.0" and "1.2.0" differ. Malformed input is never the same version.
func IsSameVersion(a, b string) bool {
	aParts, ok := splitVersion(a)
	if !ok {
		return false
	}
	bParts, ok := splitVersion(b)
	if !ok {
		return false
	}
	for i := range aParts {
		if aParts[i] != bParts[i] {
			return false
		}
	}
	return true
}

// CompareVersions orders current against latest by semantic version precedence.
// It is used for diagnostics only, the update decision is IsSameVersion.
func CompareVersions(current, latest string) (int, error) {
	cv, err := semver.NewVersion(trimVersionPrefix(current))
	if err != nil {
		return 0, err
	}
	lv, err := semver.NewVersion(trimVersionPrefix(latest))
	if err != nil {
		return 0, err
	}
	return cv.Compare(lv), nil
}
