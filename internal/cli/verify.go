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

//go:build pkcs11

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-tokenharness/internal/harness"
	"github.com/jeremyhahn/go-tokenharness/pkg/token"
	"github.com/jeremyhahn/go-tokenharness/pkg/verify"
)

var verifySuite string

// verifyCmd provisions one suite and checks every exported URI resolves
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Provision one suite and verify its exported URIs resolve",
	Long: `Verify provisions a single backend, then opens the token directly and
resolves every exported object URI against it. The deliberately removed
public key must NOT resolve; everything else must.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		sc, err := suiteByName(cfg, verifySuite)
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

		checker := &verify.Checker{
			Module: state.Token.Module,
			Label:  state.Token.Label,
			PIN:    state.Token.PIN,
		}
		problems, err := checker.CheckURIs(state.URIs)
		if err != nil && !errors.Is(err, verify.ErrUnresolvable) {
			return err
		}
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "unresolved %s: %s\n", p.URI, p.Reason)
		}

		orphanResolves, err := checker.Resolves(state.OrphanPublic)
		if err != nil {
			return err
		}
		if orphanResolves {
			fmt.Fprintf(os.Stderr, "deleted public key still resolves: %s\n", state.OrphanPublic)
		}

		if len(problems) > 0 || orphanResolves {
			return fmt.Errorf("verification failed for suite %s", sc.Name)
		}
		fmt.Printf("%s: %d object references verified\n", sc.Name, len(state.URIs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVarP(&verifySuite, "suite", "s", "", "suite to verify (required)")
	_ = verifyCmd.MarkFlagRequired("suite")
}
