package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:\.([a-z]+)(\d+))?$`)

// SemanticVersion is major.minor.patch with an optional ".{kind}{number}" prerelease
type SemanticVersion struct {
	Major            uint
	Minor            uint
	Patch            uint
	PrereleaseKind   string
	PrereleaseNumber uint
}

// ParseVersion parses a version string. Surrounding whitespace is ignored.
func ParseVersion(raw string) (SemanticVersion, error) {
	s := strings.TrimSpace(raw)
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return SemanticVersion{}, goerr.New("invalid version string",
			goerr.V("version", raw),
			goerr.T(types.ErrTagInvalidVersion),
			goerr.T(types.ErrTagPrecondition),
		)
	}

	var nums [4]uint
	for i, idx := range []int{1, 2, 3, 5} {
		if m[idx] == "" {
			continue
		}
		n, err := strconv.ParseUint(m[idx], 10, 0)
		if err != nil {
			return SemanticVersion{}, goerr.Wrap(err, "version component out of range",
				goerr.V("version", raw),
				goerr.T(types.ErrTagInvalidVersion),
				goerr.T(types.ErrTagPrecondition),
			)
		}
		nums[i] = uint(n)
	}

	return SemanticVersion{
		Major:            nums[0],
		Minor:            nums[1],
		Patch:            nums[2],
		PrereleaseKind:   m[4],
		PrereleaseNumber: nums[3],
	}, nil
}

// NormalizeVersion returns the canonical form of raw
func NormalizeVersion(raw string) (string, error) {
	v, err := ParseVersion(raw)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// IsPrerelease reports whether the version carries a prerelease marker
func (x SemanticVersion) IsPrerelease() bool {
	return x.PrereleaseKind != ""
}

// BumpKind chooses how the next version is produced: a prerelease only
// advances its counter, a final version opens a new patch line.
func (x SemanticVersion) BumpKind() types.BumpKind {
	if x.IsPrerelease() {
		return types.BumpDev
	}
	return types.BumpPatch
}

// Bump applies kind the way the builtin bumper does
func (x SemanticVersion) Bump(kind types.BumpKind) (SemanticVersion, error) {
	switch kind {
	case types.BumpDev:
		if !x.IsPrerelease() {
			return SemanticVersion{}, goerr.New("dev bump requires a prerelease version", goerr.V("version", x.String()))
		}
		next := x
		next.PrereleaseNumber++
		return next, nil

	case types.BumpPatch:
		return SemanticVersion{
			Major:          x.Major,
			Minor:          x.Minor,
			Patch:          x.Patch + 1,
			PrereleaseKind: "dev",
		}, nil

	default:
		return SemanticVersion{}, goerr.New("unknown bump kind", goerr.V("kind", kind))
	}
}

func (x SemanticVersion) String() string {
	if x.PrereleaseKind == "" {
		return fmt.Sprintf("%d.%d.%d", x.Major, x.Minor, x.Patch)
	}
	return fmt.Sprintf("%d.%d.%d.%s%d", x.Major, x.Minor, x.Patch, x.PrereleaseKind, x.PrereleaseNumber)
}
