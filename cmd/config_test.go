package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, 3, cfg.Runs)
	assert.Equal(t, toolFio, cfg.Tool)
	assert.Equal(t, "1M", cfg.DD.BlockSize)
	assert.Equal(t, 1024, cfg.DD.Count)
	assert.Equal(t, "4k", cfg.Fio.BlockSize)
	assert.Equal(t, 4, cfg.Fio.IODepth)
	assert.Equal(t, "1G", cfg.Fio.Size)
	assert.NoError(t, cfg.validate())
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeTempFile(t, `
runs: 5
tool: dd
dd:
  count: 256
excludeFilesystems: [nfs, cifs]
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Runs)
	assert.Equal(t, toolDD, cfg.Tool)
	assert.Equal(t, 256, cfg.DD.Count)
	assert.Equal(t, []string{"nfs", "cifs"}, cfg.ExcludeFilesystems)
	// Untouched keys keep their defaults.
	assert.Equal(t, "1M", cfg.DD.BlockSize)
	assert.Equal(t, "1G", cfg.Fio.Size)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig("/nonexistent/config.yml")
	assert.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	_, err := loadConfig(writeTempFile(t, "runs: [not an int"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Runs = 0
	assert.Error(t, cfg.validate())

	cfg = defaultConfig()
	cfg.Tool = "bonnie++"
	assert.Error(t, cfg.validate())

	cfg = defaultConfig()
	cfg.ToolTimeoutMin = -1
	assert.Error(t, cfg.validate())

	cfg = defaultConfig()
	cfg.Fio.Size = "lots"
	assert.Error(t, cfg.validate())
}

func TestParseSizeBytes(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"1G", 1 << 30},
		{"512M", 512 << 20},
		{"4k", 4 << 10},
		{"1024", 1024},
		{"1Mx1024", 1 << 30},
	}
	for _, tc := range tests {
		got, err := parseSizeBytes(tc.in)
		require.NoError(t, err, "size %q", tc.in)
		assert.Equal(t, tc.want, got, "size %q", tc.in)
	}

	for _, bad := range []string{"", "G", "12Q", "1MxX"} {
		_, err := parseSizeBytes(bad)
		assert.Error(t, err, "size %q", bad)
	}
}
