package changes

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ReleaseType is the semantic version bump a commit implies.
type ReleaseType string

const (
	// ReleaseTypeMajor indicates a major release with breaking changes.
	ReleaseTypeMajor ReleaseType = "major"
	// ReleaseTypeMinor indicates a minor release with new features.
	ReleaseTypeMinor ReleaseType = "minor"
	// ReleaseTypePatch indicates a patch release with bug fixes.
	ReleaseTypePatch ReleaseType = "patch"
	// ReleaseTypeNone indicates no release is needed.
	ReleaseTypeNone ReleaseType = "none"
)

// String returns the string representation of the release type.
func (r ReleaseType) String() string {
	return string(r)
}

// ReleaseTypeFromCommitType determines the release type based on commit type.
func ReleaseTypeFromCommitType(ct CommitType, isBreaking bool) ReleaseType {
	if isBreaking {
		return ReleaseTypeMajor
	}

	switch ct {
	case CommitTypeFeat:
		return ReleaseTypeMinor
	case CommitTypeFix, CommitTypePerf:
		return ReleaseTypePatch
	default:
		return ReleaseTypeNone
	}
}

// NextVersion applies r to current and returns the bumped version. The "v"
// prefix of current is preserved. ReleaseTypeNone returns current unchanged.
func NextVersion(current string, r ReleaseType) (string, error) {
	trimmed := strings.TrimSpace(current)
	prefix := ""
	if strings.HasPrefix(trimmed, "v") {
		prefix = "v"
	}

	v, err := semver.NewVersion(strings.TrimPrefix(trimmed, "v"))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, current)
	}

	var next semver.Version
	switch r {
	case ReleaseTypeMajor:
		next = v.IncMajor()
	case ReleaseTypeMinor:
		next = v.IncMinor()
	case ReleaseTypePatch:
		next = v.IncPatch()
	default:
		next = *v
	}
	return prefix + next.String(), nil
}
