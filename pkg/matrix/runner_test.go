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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tokenharness/pkg/metrics"
)

// writeTestBin drops an executable shell script named after the case.
func writeTestBin(t *testing.T, dir, name, script string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name),
		[]byte("#!/bin/sh\n"+script+"\n"), 0o755))
}

func newFakeRunner(t *testing.T, dir string, jobs int) (*Runner, *concurrencyProbe) {
	t.Helper()
	r := NewRunner(Config{TestDir: dir, Jobs: jobs, Timeout: time.Minute}, nil, nil)
	probe := &concurrencyProbe{}
	r.exec = probe.exec
	return r, probe
}

// concurrencyProbe replaces process execution and records, for every
// invocation, how many invocations were in flight at its start.
type concurrencyProbe struct {
	mu       sync.Mutex
	running  int
	max      int
	observed map[string]int // test name -> in-flight count including itself
	calls    []string
}

func (p *concurrencyProbe) exec(ctx context.Context, bin string, tc Case, suite string, env SuiteEnv) error {
	p.mu.Lock()
	p.running++
	if p.running > p.max {
		p.max = p.running
	}
	if p.observed == nil {
		p.observed = make(map[string]int)
	}
	p.observed[tc.Name] = p.running
	p.calls = append(p.calls, tc.Name+"/"+suite)
	p.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	p.mu.Lock()
	p.running--
	p.mu.Unlock()
	return nil
}

func TestRunSuite_MutualExclusion(t *testing.T) {
	dir := t.TempDir()
	m := Matrix{
		{Name: "p1", Suites: []string{"s"}, Parallel: true},
		{Name: "p2", Suites: []string{"s"}, Parallel: true},
		{Name: "p3", Suites: []string{"s"}, Parallel: true},
		{Name: "serial1", Suites: []string{"s"}, Parallel: false},
		{Name: "p4", Suites: []string{"s"}, Parallel: true},
		{Name: "serial2", Suites: []string{"s"}, Parallel: false},
	}
	for _, c := range m {
		writeTestBin(t, dir, c.Name, "true")
	}

	r, probe := newFakeRunner(t, dir, 4)
	results := r.RunSuite(context.Background(), "s", m, SuiteEnv{})

	require.Len(t, results, 6)
	for _, res := range results {
		assert.Equal(t, StatusPass, res.Status, res.Test)
	}

	// a serial test never overlaps any other test of its suite
	assert.Equal(t, 1, probe.observed["serial1"])
	assert.Equal(t, 1, probe.observed["serial2"])
}

func TestRunSuite_OnlyDeclaredPairs(t *testing.T) {
	dir := t.TempDir()
	m := Matrix{
		{Name: "everywhere", Suites: []string{"a", "b"}, Parallel: true},
		{Name: "only-a", Suites: []string{"a"}, Parallel: true},
	}
	for _, c := range m {
		writeTestBin(t, dir, c.Name, "true")
	}

	r, probe := newFakeRunner(t, dir, 2)
	report := r.Run(context.Background(), []string{"a", "b"}, m, map[string]SuiteEnv{
		"a": {}, "b": {},
	})

	assert.ElementsMatch(t,
		[]string{"everywhere/a", "only-a/a", "everywhere/b"},
		probe.calls)
	assert.Len(t, report.Results, 3)
}

func TestRun_UnprovisionedSuiteSkips(t *testing.T) {
	dir := t.TempDir()
	m := Matrix{{Name: "t1", Suites: []string{"a"}, Parallel: true}}
	writeTestBin(t, dir, "t1", "true")

	r, probe := newFakeRunner(t, dir, 1)
	report := r.Run(context.Background(), []string{"a"}, m, nil)

	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusSkip, report.Results[0].Status)
	assert.Equal(t, "suite not provisioned", report.Results[0].Reason)
	assert.Empty(t, probe.calls)
}

func TestRun_UnprovisionedSkipRecordedInMetrics(t *testing.T) {
	dir := t.TempDir()
	m := Matrix{{Name: "t1", Suites: []string{"a"}, Parallel: true}}
	writeTestBin(t, dir, "t1", "true")

	met := metrics.New()
	r := NewRunner(Config{TestDir: dir, Jobs: 1, Timeout: time.Minute}, nil, met)
	probe := &concurrencyProbe{}
	r.exec = probe.exec

	report := r.Run(context.Background(), []string{"a"}, m, nil)
	require.Len(t, report.Results, 1)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, met.WriteTextfile(path))
	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(out), `tokenharness_tests_total{status="skip",suite="a"} 1`)
}

func TestRunSuite_MissingBinarySkips(t *testing.T) {
	r, probe := newFakeRunner(t, t.TempDir(), 1)
	m := Matrix{{Name: "ghost", Suites: []string{"s"}, Parallel: true}}

	results := r.RunSuite(context.Background(), "s", m, SuiteEnv{})
	require.Len(t, results, 1)
	assert.Equal(t, StatusSkip, results[0].Status)
	assert.Empty(t, probe.calls)
}

func TestExecProcess_PassFail(t *testing.T) {
	dir := t.TempDir()
	writeTestBin(t, dir, "ok", "exit 0")
	writeTestBin(t, dir, "bad", "echo boom >&2; exit 3")
	m := Matrix{
		{Name: "ok", Suites: []string{"s"}, Parallel: true},
		{Name: "bad", Suites: []string{"s"}, Parallel: true},
	}

	r := NewRunner(Config{TestDir: dir, Jobs: 1, Timeout: time.Minute}, nil, nil)
	results := r.RunSuite(context.Background(), "s", m, SuiteEnv{})

	byName := map[string]Result{}
	for _, res := range results {
		byName[res.Test] = res
	}
	assert.Equal(t, StatusPass, byName["ok"].Status)
	assert.Equal(t, StatusFail, byName["bad"].Status)
	assert.Contains(t, byName["bad"].Reason, "boom")
	assert.False(t, byName["bad"].TimedOut)
}

func TestExecProcess_Timeout(t *testing.T) {
	dir := t.TempDir()
	writeTestBin(t, dir, "slow", "sleep 30")
	m := Matrix{{Name: "slow", Suites: []string{"s"}, Parallel: false}}

	r := NewRunner(Config{TestDir: dir, Jobs: 1, Timeout: 200 * time.Millisecond}, nil, nil)
	start := time.Now()
	results := r.RunSuite(context.Background(), "s", m, SuiteEnv{})
	elapsed := time.Since(start)

	require.Len(t, results, 1)
	assert.Equal(t, StatusFail, results[0].Status)
	assert.True(t, results[0].TimedOut)
	assert.Less(t, elapsed, 15*time.Second, "process group must be killed promptly")
}

func TestExecProcess_Environment(t *testing.T) {
	dir := t.TempDir()
	outFile := filepath.Join(dir, "env.out")
	writeTestBin(t, dir, "envdump",
		`printf '%s\n%s\n%s\n%s\n' "$TESTVARS" "$TEST_SUITE" "$LD_PRELOAD" "$EXTRA_VAR" > `+outFile)
	m := Matrix{{Name: "envdump", Suites: []string{"s"}, Parallel: true}}

	r := NewRunner(Config{
		TestDir: dir,
		Jobs:    1,
		Timeout: time.Minute,
		Sanitizer: &Sanitizer{
			Allocator:    "/usr/lib64/libasan.so.8",
			NoUnloadShim: "/opt/noload.so",
		},
	}, nil, nil)
	results := r.RunSuite(context.Background(), "s", m,
		SuiteEnv{VarsFile: "/tmp/testvars", Extra: map[string]string{"EXTRA_VAR": "extra"}})

	require.Len(t, results, 1)
	require.Equal(t, StatusPass, results[0].Status, results[0].Reason)

	out, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/testvars\ns\n/usr/lib64/libasan.so.8:/opt/noload.so\nextra\n",
		string(out))
}

func TestReport_WriteJSON(t *testing.T) {
	report := &Report{
		RunID: "run-1",
		Results: []Result{
			{Test: "basic", Suite: "softhsm", Status: StatusPass, Duration: time.Second},
		},
	}
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.WriteJSON(path))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"run_id": "run-1"`)
	assert.Contains(t, string(out), `"status": "pass"`)
}
