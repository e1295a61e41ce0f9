// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tokenharness.
//
// go-tokenharness is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package matrix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jeremyhahn/go-tokenharness/pkg/logging"
	"github.com/jeremyhahn/go-tokenharness/pkg/metrics"
)

// VarsEnv is the variable each test process reads to locate the sourceable
// environment snapshot for its suite.
const VarsEnv = "TESTVARS"

// Config controls test execution.
type Config struct {
	// TestDir holds one executable per test case, named after the case.
	TestDir string

	// Timeout bounds each test process; scaled up under sanitizer.
	Timeout time.Duration

	// Jobs caps concurrently running parallel-safe tests.
	Jobs int

	// Sanitizer, when non-nil, wraps every test invocation.
	Sanitizer *Sanitizer
}

// SuiteEnv is the per-suite environment handed to test processes.
type SuiteEnv struct {
	// VarsFile is the environment snapshot written by the exporter.
	VarsFile string

	// Extra holds additional per-suite variables.
	Extra map[string]string
}

type execFunc func(ctx context.Context, bin string, tc Case, suite string, env SuiteEnv) error

// Runner executes the matrix, one OS process per (test, suite) pair.
type Runner struct {
	cfg  Config
	log  *logging.Logger
	met  *metrics.Metrics
	exec execFunc
}

// NewRunner creates a runner. met may be nil.
func NewRunner(cfg Config, log *logging.Logger, met *metrics.Metrics) *Runner {
	if log == nil {
		log = logging.DefaultLogger()
	}
	r := &Runner{cfg: cfg, log: log, met: met}
	r.exec = r.execProcess
	return r
}

func (r *Runner) jobs() int {
	if r.cfg.Jobs > 0 {
		return r.cfg.Jobs
	}
	return runtime.NumCPU()
}

func (r *Runner) timeout() time.Duration {
	base := r.cfg.Timeout
	if base <= 0 {
		base = 5 * time.Minute
	}
	return r.cfg.Sanitizer.Scale(base)
}

// Run executes every declared (test, suite) pair for the given suites in
// order. Suites without an entry in envs were not provisioned; their tests
// are reported skipped, never executed.
func (r *Runner) Run(ctx context.Context, suites []string, m Matrix, envs map[string]SuiteEnv) *Report {
	report := &Report{}
	for _, suite := range suites {
		env, provisioned := envs[suite]
		if !provisioned {
			for _, tc := range m.ForSuite(suite) {
				r.met.RecordTest(suite, string(StatusSkip), 0)
				report.Results = append(report.Results, Result{
					Test:   tc.Name,
					Suite:  suite,
					Status: StatusSkip,
					Reason: "suite not provisioned",
				})
			}
			continue
		}
		report.Results = append(report.Results, r.RunSuite(ctx, suite, m, env)...)
	}
	return report
}

// RunSuite executes the suite's declared cases. Parallel-safe cases share
// the suite token concurrently (bounded by Jobs); a non-parallel-safe case
// runs in mutual exclusion with every other case of the suite.
func (r *Runner) RunSuite(ctx context.Context, suite string, m Matrix, env SuiteEnv) []Result {
	cases := m.ForSuite(suite)
	results := make([]Result, len(cases))

	// Parallel tests hold the read side, serial tests the write side of
	// the suite's token state.
	var exclusion sync.RWMutex
	sem := make(chan struct{}, r.jobs())
	var wg sync.WaitGroup

	for i, tc := range cases {
		if tc.Parallel {
			wg.Add(1)
			go func(i int, tc Case) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				exclusion.RLock()
				defer exclusion.RUnlock()
				results[i] = r.runOne(ctx, suite, tc, env)
			}(i, tc)
		} else {
			exclusion.Lock()
			results[i] = r.runOne(ctx, suite, tc, env)
			exclusion.Unlock()
		}
	}
	wg.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, suite string, tc Case, env SuiteEnv) Result {
	bin := filepath.Join(r.cfg.TestDir, tc.Name)
	if _, err := os.Stat(bin); err != nil {
		r.log.Warn("test binary missing", "test", tc.Name, "suite", suite)
		r.met.RecordTest(suite, string(StatusSkip), 0)
		return Result{Test: tc.Name, Suite: suite, Status: StatusSkip,
			Reason: "test binary not found"}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	start := time.Now()
	err := r.exec(runCtx, bin, tc, suite, env)
	elapsed := time.Since(start)

	res := Result{Test: tc.Name, Suite: suite, Status: StatusPass, Duration: elapsed}
	if err != nil {
		res.Status = StatusFail
		res.Reason = err.Error()
		if errors.Is(err, ErrTimeout) || runCtx.Err() == context.DeadlineExceeded {
			res.TimedOut = true
		}
		r.log.Warn("test failed", "test", tc.Name, "suite", suite,
			"duration", elapsed, "error", err.Error())
	} else {
		r.log.Info("test passed", "test", tc.Name, "suite", suite, "duration", elapsed)
	}
	r.met.RecordTest(suite, string(res.Status), elapsed)
	return res
}

// execProcess runs one test binary in its own process group so a timeout
// kill reaps the whole tree, with the sanitizer wrapper applied when
// configured.
func (r *Runner) execProcess(ctx context.Context, bin string, tc Case, suite string, env SuiteEnv) error {
	cmd := exec.CommandContext(ctx, bin)
	cmd.Dir = r.cfg.TestDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = 10 * time.Second
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}

	cmd.Env = append(os.Environ(),
		VarsEnv+"="+env.VarsFile,
		"TEST_SUITE="+suite,
	)
	for k, v := range env.Extra {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	for k, v := range r.cfg.Sanitizer.Env() {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %s after %s", ErrTimeout, tc.Name, r.timeout())
		}
		return fmt.Errorf("%s: %v: %s", tc.Name, err, tail(out, 1024))
	}
	return nil
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
