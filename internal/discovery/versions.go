package discovery

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CompareVersions compares two extension version strings. Returns -1 if
// a < b, 0 if equal, 1 if a > b. Versions with up to three components are
// compared as semver (with "v" prefix tolerance); browser extension
// manifests may carry four dotted components, which fall back to a
// numeric segment comparison.
func CompareVersions(a, b string) int {
	av, errA := parseSemver(a)
	bv, errB := parseSemver(b)
	if errA == nil && errB == nil {
		return av.Compare(bv)
	}
	return compareDotted(a, b)
}

// parseSemver strips a leading "v" and parses the version string.
func parseSemver(version string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(version, "v"))
}

// compareDotted compares dot-separated numeric segments left to right.
// Missing segments count as zero; non-numeric segments compare as strings.
func compareDotted(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var sa, sb string
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}
		na, errA := strconv.Atoi(sa)
		nb, errB := strconv.Atoi(sb)
		if errA == nil && errB == nil {
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			continue
		}
		if sa != sb {
			if sa < sb {
				return -1
			}
			return 1
		}
	}
	return 0
}
