package cmd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valid(values ...float64) []measurement {
	ms := make([]measurement, len(values))
	for i, v := range values {
		ms[i] = measurement{MBps: v, Valid: true}
	}
	return ms
}

func TestAverageSpeed(t *testing.T) {
	got, err := averageSpeed(valid(10.0, 20.0, 30.0))
	require.NoError(t, err)
	assert.InDelta(t, 20.0, got, 1e-9)
}

func TestAverageSpeedEmptyIsExplicit(t *testing.T) {
	_, err := averageSpeed(nil)
	assert.ErrorIs(t, err, errNoSamples)

	// All-invalid input must not silently become 0/N.
	_, err = averageSpeed([]measurement{{}, {}, {}})
	assert.ErrorIs(t, err, errNoSamples)
}

func TestAverageSpeedOrderInsensitive(t *testing.T) {
	perms := [][]float64{
		{1.5, 7.25, 42.0},
		{42.0, 1.5, 7.25},
		{7.25, 42.0, 1.5},
	}
	want, err := averageSpeed(valid(perms[0]...))
	require.NoError(t, err)
	for _, p := range perms[1:] {
		got, err := averageSpeed(valid(p...))
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-9)
	}
}

func TestAverageSpeedFiltersBadSamples(t *testing.T) {
	samples := []measurement{
		{MBps: 10, Valid: true},
		{MBps: 999, Valid: false}, // failed run
		{MBps: -5, Valid: true},   // negative
		{MBps: math.NaN(), Valid: true},
		{MBps: math.Inf(1), Valid: true},
		{MBps: 30, Valid: true},
	}
	got, err := averageSpeed(samples)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, got, 1e-9)
}

func TestAggregateSamples(t *testing.T) {
	cell := aggregateSamples(valid(4.0, 6.0))
	assert.True(t, cell.Valid)
	assert.InDelta(t, 5.0, cell.MBps, 1e-9)

	assert.False(t, aggregateSamples(nil).Valid)
}
