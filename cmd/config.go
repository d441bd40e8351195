package cmd

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds everything tunable about a benchmark run. Defaults match the
// classic fixed invocations (dd bs=1M count=1024, fio 4k/QD4/1G); a YAML file
// can override them and command-line flags override the file.
type Config struct {
	Runs      int    `yaml:"runs"`
	Tool      string `yaml:"tool"` // "dd" or "fio"
	TargetDir string `yaml:"targetDir"`

	ToolTimeoutMin int `yaml:"toolTimeoutMinutes"`

	DD struct {
		BlockSize string `yaml:"blockSize"`
		Count     int    `yaml:"count"`
	} `yaml:"dd"`

	Fio struct {
		BlockSize  string `yaml:"blockSize"`
		IODepth    int    `yaml:"ioDepth"`
		Size       string `yaml:"size"`
		RuntimeSec int    `yaml:"runtimeSeconds"`
	} `yaml:"fio"`

	// ExcludeFilesystems adds to the built-in virtual filesystem exclusions.
	ExcludeFilesystems []string `yaml:"excludeFilesystems"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Runs = 3
	cfg.Tool = toolFio
	cfg.ToolTimeoutMin = 10
	cfg.DD.BlockSize = "1M"
	cfg.DD.Count = 1024
	cfg.Fio.BlockSize = "4k"
	cfg.Fio.IODepth = 4
	cfg.Fio.Size = "1G"
	return cfg
}

const (
	toolDD  = "dd"
	toolFio = "fio"
)

// loadConfig returns defaults overlaid with the YAML file at path, if given.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Runs < 1 {
		return errors.Errorf("runs must be at least 1, got %d", c.Runs)
	}
	if c.Tool != toolDD && c.Tool != toolFio {
		return errors.Errorf("tool must be %q or %q, got %q", toolDD, toolFio, c.Tool)
	}
	if c.ToolTimeoutMin < 0 {
		return errors.Errorf("tool timeout must not be negative, got %d", c.ToolTimeoutMin)
	}
	if _, err := parseSizeBytes(c.workingSetSize()); err != nil {
		return err
	}
	return nil
}

// workingSetSize is the scratch-file footprint of one benchmark pass.
func (c *Config) workingSetSize() string {
	if c.Tool == toolDD {
		return c.DD.BlockSize + "x" + strconv.Itoa(c.DD.Count)
	}
	return c.Fio.Size
}

// parseSizeBytes converts sizes like "1G", "512M", "4k" or "1Mx1024" (block
// size times count) to bytes, using binary multiples as dd and fio do.
func parseSizeBytes(size string) (uint64, error) {
	if base, count, ok := strings.Cut(size, "x"); ok {
		b, err := parseSizeBytes(base)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseUint(count, 10, 64)
		if err != nil {
			return 0, errors.Errorf("invalid count in size %q", size)
		}
		return b * n, nil
	}

	multipliers := map[string]uint64{
		"k": 1 << 10, "K": 1 << 10,
		"m": 1 << 20, "M": 1 << 20,
		"g": 1 << 30, "G": 1 << 30,
		"t": 1 << 40, "T": 1 << 40,
	}

	size = strings.TrimSpace(size)
	if size == "" {
		return 0, errors.New("empty size")
	}
	mult := uint64(1)
	if m, ok := multipliers[size[len(size)-1:]]; ok {
		mult = m
		size = size[:len(size)-1]
	}
	value, err := strconv.ParseUint(size, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid size %q", size)
	}
	return value * mult, nil
}
