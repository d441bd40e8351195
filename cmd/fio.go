package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Fixed fio job names. The JSON results are matched back against these, so
// they must stay in sync with fioArgs.
const (
	jobSeqWrite  = "seq_write"
	jobSeqRead   = "seq_read"
	jobRandWrite = "rand_write"
	jobRandRead  = "rand_read"
)

// benchmarkJobs lists every access pattern in report order.
var benchmarkJobs = []string{jobSeqWrite, jobSeqRead, jobRandWrite, jobRandRead}

// fioOutput mirrors the subset of fio's --output-format=json schema this tool
// consumes. Bandwidth (bw) is reported by fio in KB/s.
type fioOutput struct {
	Version string         `json:"fio version"`
	Jobs    []fioJobResult `json:"jobs"`
}

type fioJobResult struct {
	JobName string      `json:"jobname"`
	Error   int         `json:"error"`
	Read    fioDirStats `json:"read"`
	Write   fioDirStats `json:"write"`
}

type fioDirStats struct {
	BW   float64 `json:"bw"`
	IOPS float64 `json:"iops"`
}

// fioArgs builds one fio invocation running all four access patterns as
// stonewalled jobs against the same scratch file: 4 KiB blocks, queue depth
// per config, shared working set. Options before the first --name are global.
func fioArgs(file string, cfg *Config) []string {
	args := []string{
		"--filename=" + file,
		"--direct=1",
		"--ioengine=libaio",
		"--bs=" + cfg.Fio.BlockSize,
		fmt.Sprintf("--iodepth=%d", cfg.Fio.IODepth),
		"--size=" + cfg.Fio.Size,
		"--group_reporting",
		"--output-format=json",
	}
	if cfg.Fio.RuntimeSec > 0 {
		args = append(args, "--time_based", fmt.Sprintf("--runtime=%d", cfg.Fio.RuntimeSec))
	}

	jobs := []struct{ name, rw string }{
		{jobSeqWrite, "write"},
		{jobSeqRead, "read"},
		{jobRandWrite, "randwrite"},
		{jobRandRead, "randread"},
	}
	for i, j := range jobs {
		args = append(args, "--name="+j.name, "--rw="+j.rw)
		if i > 0 {
			args = append(args, "--stonewall")
		}
	}
	return args
}

// fioBenchmark runs the stonewalled job set once against a scratch file under
// mount and returns one measurement per access pattern. A failed or
// unparseable run yields invalid measurements for every pattern; the batch
// carries on.
func fioBenchmark(ctx context.Context, r runner, mount string, cfg *Config) map[string]measurement {
	results := make(map[string]measurement, len(benchmarkJobs))
	for _, name := range benchmarkJobs {
		results[name] = measurement{}
	}

	_ = withScratchFile(mount, scratchName(), func(path string) error {
		logger := log.WithField("mount", mount)

		stdout, stderr, err := r.run(ctx, "fio", fioArgs(path, cfg)...)
		if err != nil {
			logger.WithError(err).Warn("fio run failed")
			logger.Debugf("fio stderr: %s", snippet(stderr))
			return nil
		}

		parsed, err := parseFioOutput([]byte(stdout))
		if err != nil {
			logger.WithError(err).Warn("could not parse fio output")
			logger.Debugf("fio stdout: %s", snippet(stdout))
			return nil
		}
		for name, m := range parsed {
			results[name] = m
		}
		return nil
	})
	return results
}

// parseFioOutput decodes fio JSON and normalizes per-job bandwidth from KB/s
// to MB/s. Jobs with unknown names are ignored; jobs that fio itself flagged
// as errored are recorded as unavailable.
func parseFioOutput(data []byte) (map[string]measurement, error) {
	var out fioOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "decoding fio JSON output")
	}

	results := make(map[string]measurement)
	for _, job := range out.Jobs {
		var bw float64
		switch job.JobName {
		case jobSeqWrite, jobRandWrite:
			bw = job.Write.BW
		case jobSeqRead, jobRandRead:
			bw = job.Read.BW
		default:
			continue
		}
		if job.Error != 0 {
			results[job.JobName] = measurement{}
			continue
		}
		results[job.JobName] = measurement{MBps: bw / 1024, Valid: true}
	}
	return results, nil
}
