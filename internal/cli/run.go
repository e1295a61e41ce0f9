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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-tokenharness/internal/harness"
	"github.com/jeremyhahn/go-tokenharness/pkg/matrix"
	"github.com/jeremyhahn/go-tokenharness/pkg/metrics"
)

// runCmd provisions all suites and executes the test matrix
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Provision all suites and execute the test matrix",
	Long: `Run provisions every configured backend and executes the declared
(test, suite) pairs against each one that provisioned successfully.
A missing backend or missing certificate tooling skips work rather
than failing it; the command exits nonzero only when an executed
test fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		h := harness.New(cfg, log, metrics.New(), nil, nil)
		report, skipped, err := h.Run(cmd.Context())
		if err != nil {
			return err
		}
		if skipped {
			fmt.Println("nothing to run: no backend or tooling installed")
			return nil
		}

		pass, fail, skip := report.Counts()
		fmt.Printf("run %s: %d passed, %d failed, %d skipped\n",
			report.RunID, pass, fail, skip)
		for _, res := range report.Results {
			if res.Status != matrix.StatusFail {
				continue
			}
			fmt.Printf("  FAIL %s/%s: %s\n", res.Suite, res.Test, res.Reason)
		}
		if report.Failed() {
			return fmt.Errorf("%d test(s) failed", fail)
		}
		return nil
	},
}
