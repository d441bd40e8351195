package cmd

import (
	"math"

	"github.com/pkg/errors"
)

// measurement is one normalized bandwidth sample in MB/s. Valid is false when
// the tool run failed or its output could not be parsed, which keeps "no
// data" distinguishable from a measured zero throughput.
type measurement struct {
	MBps  float64 `json:"mbps"`
	Valid bool    `json:"valid"`
}

// errNoSamples is returned when every sample of a series was invalid or the
// series was empty. The reporter renders it as N/A.
var errNoSamples = errors.New("no valid samples")

// averageSpeed returns the arithmetic mean over the valid samples. Invalid,
// negative and non-finite entries are dropped before summing rather than
// being allowed to corrupt the mean.
func averageSpeed(samples []measurement) (float64, error) {
	var sum float64
	var n int
	for _, s := range samples {
		if !s.Valid || s.MBps < 0 || math.IsNaN(s.MBps) || math.IsInf(s.MBps, 0) {
			continue
		}
		sum += s.MBps
		n++
	}
	if n == 0 {
		return 0, errNoSamples
	}
	return sum / float64(n), nil
}

// aggregateSamples folds a sample series into a single reportable cell.
func aggregateSamples(samples []measurement) measurement {
	mean, err := averageSpeed(samples)
	if err != nil {
		return measurement{}
	}
	return measurement{MBps: mean, Valid: true}
}
