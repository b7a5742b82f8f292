package cdm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CompareVersions compares two component version strings. CDM builds carry
// Chromium-style dotted tuples ("4.10.2710.0"), which strict semver rejects,
// so semver is tried first and a numeric segment-by-segment comparison takes
// over when either side does not parse. A leading "v" is tolerated.
// Returns -1 if current < latest, 0 if equal, 1 if current > latest.
func CompareVersions(current, latest string) (int, error) {
	cv, cerr := semver.NewVersion(strings.TrimPrefix(current, "v"))
	lv, lerr := semver.NewVersion(strings.TrimPrefix(latest, "v"))
	if cerr == nil && lerr == nil {
		return cv.Compare(lv), nil
	}
	return compareDotted(current, latest)
}

// IsUpdateAvailable returns true if latest is newer than current.
func IsUpdateAvailable(current, latest string) (bool, error) {
	cmp, err := CompareVersions(current, latest)
	if err != nil {
		return false, err
	}
	return cmp == -1, nil
}

// compareDotted compares dotted numeric tuples segment by segment. Missing
// trailing segments count as zero, so "4.10" equals "4.10.0.0".
func compareDotted(a, b string) (int, error) {
	as := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bs := strings.Split(strings.TrimPrefix(b, "v"), ".")

	for i := 0; i < len(as) || i < len(bs); i++ {
		an, err := dottedSegment(as, i)
		if err != nil {
			return 0, fmt.Errorf("parsing component version %q: %w", a, err)
		}
		bn, err := dottedSegment(bs, i)
		if err != nil {
			return 0, fmt.Errorf("parsing component version %q: %w", b, err)
		}
		switch {
		case an < bn:
			return -1, nil
		case an > bn:
			return 1, nil
		}
	}
	return 0, nil
}

func dottedSegment(parts []string, i int) (int, error) {
	if i >= len(parts) {
		return 0, nil
	}
	return strconv.Atoi(parts[i])
}
