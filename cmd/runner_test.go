package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations and returns canned output per binary.
type fakeRunner struct {
	handler func(name string, args []string) (stdout, stderr string, err error)
	calls   [][]string
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) (string, string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.handler == nil {
		return "", "", nil
	}
	return f.handler(name, args)
}

func TestExecRunnerCapturesStdout(t *testing.T) {
	r := execRunner{}
	stdout, stderr, err := r.run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n", stdout)
	assert.Equal(t, "err\n", stderr)
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	r := execRunner{}
	_, _, err := r.run(context.Background(), "sh", "-c", "echo diag >&2; exit 3")
	assert.Error(t, err)
}

func TestExecRunnerTimeoutKillsProcess(t *testing.T) {
	r := execRunner{timeout: 100 * time.Millisecond}
	start := time.Now()
	_, _, err := r.run(context.Background(), "sleep", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWithScratchFileRemovesFile(t *testing.T) {
	dir := t.TempDir()
	var path string
	err := withScratchFile(dir, "scratch", func(p string) error {
		path = p
		return os.WriteFile(p, []byte("x"), 0644)
	})
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "scratch file must be removed")
}

func TestWithScratchFileRemovesFileOnError(t *testing.T) {
	dir := t.TempDir()
	wantErr := assert.AnError
	err := withScratchFile(dir, "scratch", func(p string) error {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
		return wantErr
	})
	assert.Equal(t, wantErr, err)
	_, statErr := os.Stat(filepath.Join(dir, "scratch"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestToMeasurement(t *testing.T) {
	m := toMeasurement("copied, 2.0 s, 96.9 MB/s", nil, "dd write", "/mnt")
	assert.True(t, m.Valid)
	assert.InDelta(t, 96.9, m.MBps, 1e-9)

	// A failed subprocess or unparseable output is unavailable, not zero.
	assert.False(t, toMeasurement("raw diag", assert.AnError, "dd write", "/mnt").Valid)
	assert.False(t, toMeasurement("no speed here", nil, "dd read", "/mnt").Valid)
}
