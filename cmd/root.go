package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

const diskmarkVersion = "0.2.0"

var (
	configPath      string
	targetDir       string
	toolName        string
	runCount        int
	toolTimeoutMin  int
	exportJSON      string
	autoInstallDeps bool
	verbose         bool

	startWebServer bool
	webServerPort  int
)

var rootCmd = &cobra.Command{
	Use:     "diskmark",
	Version: diskmarkVersion,
	Short:   "Disk throughput benchmark driving dd and fio",
	Long: `diskmark benchmarks storage throughput by driving dd or fio against one or
more mount points, normalizing their output to MB/s and averaging across
repetitions. Requires root and the selected external tool to be installed,
or can attempt to auto-install it with --auto-install-deps.`,
	SilenceUsage: true,
	RunE:         runRoot,
}

// Execute runs the root command and exits non-zero on any fatal condition.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (flags override file values)")
	rootCmd.Flags().StringVar(&targetDir, "target", "", "Benchmark a single directory instead of every real mount")
	rootCmd.Flags().StringVar(&toolName, "tool", "", "Benchmark engine: 'dd' (sequential only) or 'fio' (default fio)")
	rootCmd.Flags().IntVar(&runCount, "runs", 0, "Repetitions per mount, averaged (default 3)")
	rootCmd.Flags().IntVar(&toolTimeoutMin, "tool-timeout", 0, "Wall-clock timeout in minutes per tool invocation (default 10)")
	rootCmd.Flags().StringVar(&exportJSON, "export-json", "", "Export results to a JSON file (e.g. ./diskmark-results.json)")
	rootCmd.Flags().BoolVar(&autoInstallDeps, "auto-install-deps", false, "Attempt to install missing tools via apt/dnf/yum (requires root)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging, including raw tool output")

	rootCmd.Flags().BoolVar(&startWebServer, "web", false, "Serve the results over HTTP after the run completes")
	rootCmd.Flags().IntVar(&webServerPort, "web-port", 8080, "Port for the results web server")
}

func runRoot(cmd *cobra.Command, args []string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := checkRoot(); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, &cfg)
	if err := cfg.validate(); err != nil {
		return err
	}

	if err := checkDependencies(&cfg, autoInstallDeps); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	r := execRunner{timeout: time.Duration(cfg.ToolTimeoutMin) * time.Minute}

	targets, err := selectTargets(ctx, r, &cfg)
	if err != nil {
		return err
	}
	log.Infof("benchmarking %d target(s) with %s, %d run(s) each", len(targets), cfg.Tool, cfg.Runs)

	results, runErrs := benchmarkAll(ctx, r, &cfg, targets)

	fmt.Println()
	if cfg.TargetDir != "" && len(results) == 1 {
		renderLines(os.Stdout, results[0])
	} else {
		renderTable(os.Stdout, results)
	}

	if exportJSON != "" {
		if err := exportResultsJSON(results, exportJSON); err != nil {
			return err
		}
		log.Infof("results exported to %s", exportJSON)
	}

	if runErrs != nil {
		log.Warnf("some benchmarks did not complete cleanly: %v", runErrs)
	}

	if startWebServer {
		return serveResults(webServerPort, results)
	}
	return nil
}

// applyFlagOverrides lets explicitly-set flags win over config file values.
func applyFlagOverrides(cmd *cobra.Command, cfg *Config) {
	if cmd.Flags().Changed("target") {
		cfg.TargetDir = targetDir
	}
	if cmd.Flags().Changed("tool") {
		cfg.Tool = strings.ToLower(toolName)
	}
	if cmd.Flags().Changed("runs") {
		cfg.Runs = runCount
	}
	if cmd.Flags().Changed("tool-timeout") {
		cfg.ToolTimeoutMin = toolTimeoutMin
	}
}

// selectTargets resolves what to benchmark: the user-specified directory, or
// every discovered real mount.
func selectTargets(ctx context.Context, r runner, cfg *Config) ([]mountRecord, error) {
	mounts, err := listRealMounts()
	if err != nil {
		return nil, err
	}
	mounts = applyExtraExcludes(mounts, cfg.ExcludeFilesystems)
	resolveBacking(ctx, r, mounts)

	if cfg.TargetDir != "" {
		abs, err := filepath.Abs(cfg.TargetDir)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving target %s", cfg.TargetDir)
		}
		if strings.HasPrefix(abs, "/dev/") {
			return nil, errors.Errorf("%s looks like a raw device, only mounted directories are supported", abs)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, errors.Wrapf(err, "target directory %s", abs)
		}
		if !info.IsDir() {
			return nil, errors.Errorf("target %s is not a directory", abs)
		}
		return []mountRecord{mountForPath(abs, mounts)}, nil
	}

	if len(mounts) == 0 {
		return nil, errors.New("no real filesystem mounts found")
	}
	return mounts, nil
}

func applyExtraExcludes(mounts []mountRecord, fsTypes []string) []mountRecord {
	if len(fsTypes) == 0 {
		return mounts
	}
	excluded := make(map[string]bool, len(fsTypes))
	for _, t := range fsTypes {
		excluded[t] = true
	}
	var kept []mountRecord
	for _, m := range mounts {
		if excluded[m.FSType] {
			log.Debugf("excluding %s (%s) per config", m.MountPath, m.FSType)
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// benchmarkAll runs the benchmark for each target sequentially. Per-mount
// failures are collected instead of aborting the batch; the affected cells
// simply report no data.
func benchmarkAll(ctx context.Context, r runner, cfg *Config, targets []mountRecord) ([]mountResult, error) {
	var results []mountResult
	var errs *multierror.Error
	for _, rec := range targets {
		res, err := benchmarkMount(ctx, r, cfg, rec)
		if err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "mount %s", rec.MountPath))
		}
		results = append(results, res)
	}
	return results, errs.ErrorOrNil()
}

// benchmarkMount runs cfg.Runs repetitions against one mount and averages the
// per-pattern samples. dd covers the sequential patterns only; fio covers all
// four.
func benchmarkMount(ctx context.Context, r runner, cfg *Config, rec mountRecord) (mountResult, error) {
	result := mountResult{Mount: rec}

	if err := checkFreeSpace(rec.MountPath, cfg); err != nil {
		return result, err
	}

	samples := make(map[string][]measurement, len(benchmarkJobs))
	for run := 1; run <= cfg.Runs; run++ {
		log.WithFields(log.Fields{"mount": rec.MountPath, "run": run, "of": cfg.Runs}).Info("benchmark pass")

		switch cfg.Tool {
		case toolDD:
			write, read := ddBenchmark(ctx, r, rec.MountPath, cfg)
			samples[jobSeqWrite] = append(samples[jobSeqWrite], write)
			samples[jobSeqRead] = append(samples[jobSeqRead], read)
		case toolFio:
			for name, m := range fioBenchmark(ctx, r, rec.MountPath, cfg) {
				samples[name] = append(samples[name], m)
			}
		}
	}

	result.SeqWrite = aggregateSamples(samples[jobSeqWrite])
	result.SeqRead = aggregateSamples(samples[jobSeqRead])
	result.RandWrite = aggregateSamples(samples[jobRandWrite])
	result.RandRead = aggregateSamples(samples[jobRandRead])
	return result, nil
}

// checkFreeSpace refuses to fill a nearly-full filesystem with the scratch
// file. Required space is the working set plus a little headroom.
func checkFreeSpace(mountPath string, cfg *Config) error {
	need, err := parseSizeBytes(cfg.workingSetSize())
	if err != nil {
		return err
	}
	need += need / 10

	var stat unix.Statfs_t
	if err := unix.Statfs(mountPath, &stat); err != nil {
		return errors.Wrapf(err, "statfs %s", mountPath)
	}
	avail := stat.Bavail * uint64(stat.Bsize)
	if avail < need {
		return errors.Errorf("not enough free space on %s: need %s, have %s",
			mountPath, humanize.IBytes(need), humanize.IBytes(avail))
	}
	return nil
}
