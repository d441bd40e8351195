package cmd

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ddSampleOutput = "1024+0 records in\n1024+0 records out\n" +
	"1073741824 bytes (1.1 GB, 1.0 GiB) copied, 11.0783 s, 96.9 MB/s\n"

func testConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

func TestDDArgs(t *testing.T) {
	write := ddWriteArgs("/mnt/scratch", "1M", 1024)
	assert.Contains(t, write, "if=/dev/zero")
	assert.Contains(t, write, "of=/mnt/scratch")
	assert.Contains(t, write, "bs=1M")
	assert.Contains(t, write, "count=1024")
	assert.Contains(t, write, "oflag=direct")

	read := ddReadArgs("/mnt/scratch", "1M", 1024)
	assert.Contains(t, read, "if=/mnt/scratch")
	assert.Contains(t, read, "of=/dev/null")
	assert.Contains(t, read, "iflag=direct")
}

func TestDDBenchmark(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{handler: func(name string, args []string) (string, string, error) {
		// dd reports its transfer summary on stderr.
		return "", ddSampleOutput, nil
	}}

	write, read := ddBenchmark(context.Background(), r, dir, testConfig())
	require.True(t, write.Valid)
	require.True(t, read.Valid)
	assert.InDelta(t, 96.9, write.MBps, 1e-9)
	assert.InDelta(t, 96.9, read.MBps, 1e-9)
	assert.Len(t, r.calls, 2)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file must not be left behind")
}

func TestDDBenchmarkWriteFailureSkipsRead(t *testing.T) {
	r := &fakeRunner{handler: func(name string, args []string) (string, string, error) {
		return "", "dd: error writing: No space left on device", assert.AnError
	}}

	write, read := ddBenchmark(context.Background(), r, t.TempDir(), testConfig())
	assert.False(t, write.Valid)
	assert.False(t, read.Valid)
	assert.Len(t, r.calls, 1, "read pass must be skipped when the write pass failed")
}

func TestDDBenchmarkUnparseableOutput(t *testing.T) {
	r := &fakeRunner{handler: func(name string, args []string) (string, string, error) {
		return "", "records in, records out, nothing else", nil
	}}

	write, read := ddBenchmark(context.Background(), r, t.TempDir(), testConfig())
	assert.False(t, write.Valid)
	assert.False(t, read.Valid)
	assert.Len(t, r.calls, 2)
}

func TestDDBenchmarkUsesScratchUnderMount(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{handler: func(name string, args []string) (string, string, error) {
		return "", ddSampleOutput, nil
	}}
	ddBenchmark(context.Background(), r, dir, testConfig())

	require.NotEmpty(t, r.calls)
	var ofArg string
	for _, arg := range r.calls[0][1:] {
		if strings.HasPrefix(arg, "of=") {
			ofArg = arg
		}
	}
	assert.True(t, strings.HasPrefix(ofArg, "of="+dir+"/"), "scratch file must live under the target mount, got %q", ofArg)
}
