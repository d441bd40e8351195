package cmd

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// errUnparseableSpeed is returned when a tool's output contains no
// recognizable bandwidth figure. Callers treat the measurement as
// unavailable; it is never silently reported as zero.
var errUnparseableSpeed = errors.New("no bandwidth figure found")

// speedTokenRegex matches the first "<number><unit>/s" token in a raw output
// fragment, e.g. "96.9 MB/s", "302kB/s" or "(1.2GiB/s)". Surrounding
// whitespace and punctuation fall outside the match. The decimal separator
// may be a comma since dd honours the locale.
var speedTokenRegex = regexp.MustCompile(`([0-9]+(?:[.,][0-9]+)?)\s*([kKMGT]i?B/s)`)

// speedScale maps unit tokens onto a single MB/s scale. Binary and decimal
// prefixes are deliberately collapsed onto the same factor; dd and fio are
// not consistent about which they emit and the distinction is below the
// noise floor of this tool class.
var speedScale = map[string]float64{
	"kB/s":  1.0 / 1024,
	"KB/s":  1.0 / 1024,
	"KiB/s": 1.0 / 1024,
	"MB/s":  1,
	"MiB/s": 1,
	"GB/s":  1024,
	"GiB/s": 1024,
	"TB/s":  1024 * 1024,
	"TiB/s": 1024 * 1024,
}

// parseSpeed extracts the first bandwidth token from raw and normalizes it to
// MB/s. An already-MB/s value passes through unchanged.
func parseSpeed(raw string) (float64, error) {
	matches := speedTokenRegex.FindStringSubmatch(raw)
	if len(matches) != 3 {
		return 0, errors.Wrapf(errUnparseableSpeed, "input %q", snippet(raw))
	}

	scale, ok := speedScale[matches[2]]
	if !ok {
		return 0, errors.Wrapf(errUnparseableSpeed, "unknown unit %q", matches[2])
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(matches[1], ",", "."), 64)
	if err != nil {
		return 0, errors.Wrapf(errUnparseableSpeed, "bad number %q", matches[1])
	}

	mbps := value * scale
	if math.IsNaN(mbps) || math.IsInf(mbps, 0) {
		return 0, errors.Wrapf(errUnparseableSpeed, "value %q out of range", matches[0])
	}
	return mbps, nil
}

// snippet trims raw output down to something usable in an error message.
func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
