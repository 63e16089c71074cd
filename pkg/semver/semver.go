// Package semver implements the three-part MAJOR.MINOR.PATCH versions used to
// stamp packaged skills, along with the increment and resolution rules applied
// when a skill is re-packaged.
package semver

import (
	"fmt"
	"regexp"
	"strconv"
)

// Default is the version assigned to a skill whose descriptor carries none.
var Default = Version{Major: 0, Minor: 1, Patch: 0}

var versionPattern = regexp.MustCompile(`^(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)$`)

// Version is a semantic version without pre-release or build metadata.
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// Parse parses a literal MAJOR.MINOR.PATCH string.
func Parse(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, &InvalidVersionError{Value: s}
	}

	parts := make([]uint64, 3)
	for i := range parts {
		n, err := strconv.ParseUint(m[i+1], 10, 64)
		if err != nil {
			return Version{}, &InvalidVersionError{Value: s}
		}
		parts[i] = n
	}

	return Version{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the MAJOR.MINOR.PATCH form
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 ordering v against o by (major, minor, patch).
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpUint(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpUint(v.Minor, o.Minor)
	default:
		return cmpUint(v.Patch, o.Patch)
	}
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

// IncPatch returns the next patch release.
func (v Version) IncPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// IncMinor returns the next minor release with patch reset.
func (v Version) IncMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// IncMajor returns the next major release with minor and patch reset.
func (v Version) IncMajor() Version {
	return Version{Major: v.Major + 1}
}

// MarshalText implements encoding.TextMarshaler
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func cmpUint(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
