package cmd

import (
	"context"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// checkRoot enforces the elevated-privilege requirement up front so the run
// fails with one clear line instead of deep inside a direct-I/O subprocess.
func checkRoot() error {
	if os.Geteuid() != 0 {
		return errors.New("diskmark requires root privileges (direct I/O and device enumeration), re-run with sudo")
	}
	return nil
}

// checkDependencies verifies the external tools the selected benchmark needs.
// With attemptInstall it makes one best-effort pass through the common
// package managers before giving up.
func checkDependencies(cfg *Config, attemptInstall bool) error {
	required := map[string]string{
		"dd":    "coreutils",
		"lsblk": "util-linux",
	}
	if cfg.Tool == toolFio {
		required["fio"] = "fio"
	}

	missing := missingCommands(required)
	if len(missing) == 0 {
		return nil
	}

	if attemptInstall {
		log.Infof("attempting to install missing packages: %s", strings.Join(missing, ", "))
		installPackages(missing)
		missing = missingCommands(required)
		if len(missing) == 0 {
			return nil
		}
	}

	return errors.Errorf("missing required tools: %s (install them or re-run with --auto-install-deps)",
		strings.Join(missing, ", "))
}

// missingCommands returns the package names for commands not on PATH, sorted
// for stable messages.
func missingCommands(required map[string]string) []string {
	var missing []string
	for cmdName, pkgName := range required {
		if _, err := exec.LookPath(cmdName); err != nil {
			missing = append(missing, pkgName)
		}
	}
	sort.Strings(missing)
	return missing
}

// installPackages tries apt-get, dnf and yum in turn, using whichever is on
// PATH first. Failures are logged and surface later as still-missing tools.
func installPackages(pkgs []string) {
	managers := []struct {
		bin  string
		args []string
	}{
		{"apt-get", []string{"install", "-y"}},
		{"dnf", []string{"install", "-y"}},
		{"yum", []string{"install", "-y"}},
	}

	for _, m := range managers {
		if _, err := exec.LookPath(m.bin); err != nil {
			continue
		}
		r := execRunner{}
		_, stderr, err := r.run(context.Background(), m.bin, append(m.args, pkgs...)...)
		if err != nil {
			log.WithError(err).Warnf("%s install failed", m.bin)
			log.Debugf("%s stderr: %s", m.bin, snippet(stderr))
		}
		return
	}
	log.Warn("no supported package manager found, cannot auto-install")
}
