package cmd

import (
	"context"
	"fmt"
)

// ddWriteArgs builds the fixed write-pass invocation. Direct I/O bypasses the
// page cache so the figure reflects the device, not RAM.
func ddWriteArgs(file, blockSize string, count int) []string {
	return []string{
		"if=/dev/zero",
		"of=" + file,
		"bs=" + blockSize,
		fmt.Sprintf("count=%d", count),
		"oflag=direct",
	}
}

func ddReadArgs(file, blockSize string, count int) []string {
	return []string{
		"if=" + file,
		"of=/dev/null",
		"bs=" + blockSize,
		fmt.Sprintf("count=%d", count),
		"iflag=direct",
	}
}

// ddBenchmark runs one sequential write pass and one sequential read pass
// against a scratch file under mount. dd prints its transfer summary on
// stderr, so stdout and stderr are parsed together. The read pass is skipped
// when the write pass failed to produce a test file.
func ddBenchmark(ctx context.Context, r runner, mount string, cfg *Config) (write, read measurement) {
	_ = withScratchFile(mount, scratchName(), func(path string) error {
		stdout, stderr, err := r.run(ctx, "dd", ddWriteArgs(path, cfg.DD.BlockSize, cfg.DD.Count)...)
		write = toMeasurement(stdout+stderr, err, "dd write", mount)
		if err != nil {
			return nil
		}

		stdout, stderr, err = r.run(ctx, "dd", ddReadArgs(path, cfg.DD.BlockSize, cfg.DD.Count)...)
		read = toMeasurement(stdout+stderr, err, "dd read", mount)
		return nil
	})
	return write, read
}
