package release

import (
	"slices"
	"strconv"
	"strings"
)

// SortVersions returns a copy of versions in ascending release order.
// A pre-release suffix such as "-dev" sorts immediately before the bare version.
func SortVersions(versions []string) []string {
	out := slices.Clone(versions)
	slices.SortStableFunc(out, CompareVersions)
	return out
}

// CompareVersions orders two version identifiers. It returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	aNum, aSuffix, _ := strings.Cut(a, "-")
	bNum, bSuffix, _ := strings.Cut(b, "-")

	if c := compareDotted(aNum, bNum); c != 0 {
		return c
	}

	switch {
	case aSuffix == bSuffix:
		return 0
	case aSuffix == "":
		return 1
	case bSuffix == "":
		return -1
	default:
		return strings.Compare(aSuffix, bSuffix)
	}
}

func compareDotted(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")

	for i := 0; i < len(aParts) && i < len(bParts); i++ {
		if c := compareComponent(aParts[i], bParts[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(aParts) < len(bParts):
		return -1
	case len(aParts) > len(bParts):
		return 1
	}
	return 0
}

func compareComponent(a, b string) int {
	an, aErr := strconv.ParseUint(a, 10, 64)
	bn, bErr := strconv.ParseUint(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aErr == nil:
		// numeric components order before alphanumeric ones
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}
