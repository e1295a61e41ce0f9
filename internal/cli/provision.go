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
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-tokenharness/internal/harness"
	"github.com/jeremyhahn/go-tokenharness/pkg/metrics"
	"github.com/jeremyhahn/go-tokenharness/pkg/token"
)

// provisionCmd provisions every configured suite without running tests
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision token stores and chains of trust for all suites",
	Long: `Provision initializes a fresh token store for every configured backend,
builds the chain of trust inside each token, and writes the sourceable
environment snapshot. Backends whose module or tooling is not installed
are skipped, not failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		h := harness.New(cfg, log, metrics.New(), nil, nil)
		var failed int
		for _, sc := range cfg.Suites {
			state, outcome, err := h.ProvisionSuite(cmd.Context(), sc)
			switch {
			case err != nil:
				failed++
				fmt.Fprintf(os.Stderr, "%-10s failed: %v\n", sc.Name, err)
			case outcome.Status == token.StatusSkipped:
				fmt.Printf("%-10s skipped (%s)\n", sc.Name, outcome.Reason)
			default:
				fmt.Printf("%-10s provisioned, environment at %s\n", sc.Name, state.VarsFile)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d suite(s) failed to provision", failed)
		}
		return nil
	},
}
