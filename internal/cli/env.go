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

	"github.com/jeremyhahn/go-tokenharness/internal/config"
	"github.com/jeremyhahn/go-tokenharness/internal/harness"
	"github.com/jeremyhahn/go-tokenharness/pkg/token"
)

var envSuite string

// envCmd provisions one suite and prints its environment snapshot
var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Provision one suite and print its sourceable environment",
	Long: `Env provisions a single backend and prints the resulting environment
snapshot to stdout, for use as eval "$(tokenharness env --suite softhsm)".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		sc, err := suiteByName(cfg, envSuite)
		if err != nil {
			return err
		}

		h := harness.New(cfg, log, nil, nil, nil)
		state, outcome, err := h.ProvisionSuite(cmd.Context(), sc)
		if err != nil {
			return err
		}
		if outcome.Status == token.StatusSkipped {
			fmt.Fprintf(os.Stderr, "%s skipped: %s\n", sc.Name, outcome.Reason)
			return nil
		}

		data, err := os.ReadFile(state.VarsFile)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func suiteByName(cfg *config.Config, name string) (config.SuiteConfig, error) {
	for _, sc := range cfg.Suites {
		if sc.Name == name {
			return sc, nil
		}
	}
	return config.SuiteConfig{}, fmt.Errorf("unknown suite %q (configured: %v)", name, cfg.SuiteNames())
}

func init() {
	envCmd.Flags().StringVarP(&envSuite, "suite", "s", "", "suite to provision (required)")
	_ = envCmd.MarkFlagRequired("suite")
}
