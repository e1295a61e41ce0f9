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
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-tokenharness/internal/config"
	"github.com/jeremyhahn/go-tokenharness/pkg/logging"
)

var (
	configFile string
	debug      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tokenharness",
	Short: "tokenharness - PKCS#11 token provisioning and conformance harness",
	Long: `tokenharness provisions throwaway PKCS#11 token stores across multiple
backends, builds a chain of trust inside each token, exports the derived
object URIs as a sourceable environment, and executes a declared test
matrix against every provisioned backend.

Supported backends:
  - softokn:  NSS softokn
  - softhsm:  SoftHSM v2
  - kryoptic: Kryoptic`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (built-in defaults when omitted)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false,
		"debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(envCmd)
}

// loadConfig loads configuration and applies persistent flag overrides.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		cfg.Debug = true
	}
	return cfg, logging.NewLogger(cfg.Debug), nil
}
