package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// runner abstracts subprocess execution so the external tool choice (dd, fio,
// lsblk) stays swappable and tests can substitute canned output.
type runner interface {
	run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// execRunner invokes real binaries with a hard wall-clock timeout per
// invocation. On expiry the process is killed, not left behind.
type execRunner struct {
	timeout time.Duration
}

func (r execRunner) run(ctx context.Context, name string, args ...string) (string, string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	log.WithField("cmd", name+" "+strings.Join(args, " ")).Debug("executing")

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return stdout.String(), stderr.String(),
			errors.Errorf("command %q timed out after %s", name, r.timeout)
	}
	if err != nil {
		return stdout.String(), stderr.String(),
			errors.Wrapf(err, "command %q failed", name+" "+strings.Join(args, " "))
	}
	return stdout.String(), stderr.String(), nil
}

// scratchName returns a per-run scratch file name. Uniqueness keeps two
// concurrent invocations from clobbering each other's test file.
func scratchName() string {
	return fmt.Sprintf("diskmark_scratch_%d_%d", os.Getpid(), time.Now().UnixNano())
}

// withScratchFile hands fn a scratch file path under dir and removes the file
// on every exit path, including a panic inside fn. A benchmark crash must not
// leave gigabyte test files behind on the target mount.
func withScratchFile(dir, name string, fn func(path string) error) error {
	path := filepath.Join(dir, name)
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warnf("could not remove scratch file %s", path)
		}
	}()
	return fn(path)
}

// toMeasurement folds a tool invocation's raw output and error into a sample.
// Subprocess failures and unparseable output are local-recoverable: they are
// logged with the raw output and recorded as unavailable, never as zero.
func toMeasurement(raw string, runErr error, op, mount string) measurement {
	logger := log.WithFields(log.Fields{"op": op, "mount": mount})
	if runErr != nil {
		logger.WithError(runErr).Warn("benchmark command failed")
		logger.Debugf("raw output: %s", snippet(raw))
		return measurement{}
	}
	mbps, err := parseSpeed(raw)
	if err != nil {
		logger.WithError(err).Warn("could not parse bandwidth from tool output")
		logger.Debugf("raw output: %s", snippet(raw))
		return measurement{}
	}
	return measurement{MBps: mbps, Valid: true}
}
