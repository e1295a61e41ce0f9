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
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Status is the terminal state of one (test, suite) execution.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Result records one (test, suite) execution. Results for different suites
// are never merged; the pair is the unit of reporting.
type Result struct {
	Test     string        `json:"test"`
	Suite    string        `json:"suite"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// Report aggregates a run's results for CI consumption.
type Report struct {
	RunID   string   `json:"run_id"`
	Results []Result `json:"results"`
}

// Counts returns the number of results per status.
func (r *Report) Counts() (pass, fail, skip int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusSkip:
			skip++
		}
	}
	return
}

// Failed reports whether any result is a hard failure.
func (r *Report) Failed() bool {
	_, fail, _ := r.Counts()
	return fail > 0
}

// WriteJSON marshals the report to path.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
