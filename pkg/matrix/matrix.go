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

// Package matrix declares the conformance-test table and executes each
// (test, suite) pair as an independent OS process. Applicability is pure
// data: adding a backend or a test case is a table change, not a logic
// change.
package matrix

import (
	"fmt"
)

// Case declares one test: its name, the backend suites it applies to, and
// whether it may run concurrently with other tests of the same suite.
// Tests that mutate shared token state (cross-certificate issuance, full
// handshakes, CA operations) are declared Parallel: false.
type Case struct {
	Name     string   `yaml:"name" json:"name"`
	Suites   []string `yaml:"suites" json:"suites"`
	Parallel bool     `yaml:"parallel" json:"parallel"`
}

// AppliesTo reports whether the case declares the given suite.
func (c Case) AppliesTo(suite string) bool {
	for _, s := range c.Suites {
		if s == suite {
			return true
		}
	}
	return false
}

// Matrix is the full declarative test table.
type Matrix []Case

// Validate rejects duplicate test names, cases without suites, and suites
// not in the known set.
func (m Matrix) Validate(knownSuites []string) error {
	known := make(map[string]bool, len(knownSuites))
	for _, s := range knownSuites {
		known[s] = true
	}
	seen := make(map[string]bool, len(m))
	for _, c := range m {
		if c.Name == "" {
			return fmt.Errorf("%w: unnamed case", ErrBadMatrix)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate case %q", ErrBadMatrix, c.Name)
		}
		seen[c.Name] = true
		if len(c.Suites) == 0 {
			return fmt.Errorf("%w: case %q declares no suites", ErrBadMatrix, c.Name)
		}
		for _, s := range c.Suites {
			if !known[s] {
				return fmt.Errorf("%w: case %q declares unknown suite %q", ErrBadMatrix, c.Name, s)
			}
		}
	}
	return nil
}

// ForSuite returns the cases declaring the given suite, in table order.
func (m Matrix) ForSuite(suite string) []Case {
	var out []Case
	for _, c := range m {
		if c.AppliesTo(suite) {
			out = append(out, c)
		}
	}
	return out
}

// Declares reports whether (test, suite) is a declared pair.
func (m Matrix) Declares(test, suite string) bool {
	for _, c := range m {
		if c.Name == test {
			return c.AppliesTo(suite)
		}
	}
	return false
}

// Suite names for the three software-token backends.
const (
	SuiteSoftokn  = "softokn"
	SuiteSoftHSM  = "softhsm"
	SuiteKryoptic = "kryoptic"
)

var allSuites = []string{SuiteSoftokn, SuiteSoftHSM, SuiteKryoptic}

// Default is the built-in conformance table. Edwards-curve coverage exists
// only on kryoptic; tests that issue certificates or drive a full TLS
// handshake at run time mutate token state and are serial.
var Default = Matrix{
	{Name: "basic", Suites: allSuites, Parallel: true},
	{Name: "pubkey", Suites: allSuites, Parallel: true},
	{Name: "certs", Suites: allSuites, Parallel: true},
	{Name: "uri", Suites: allSuites, Parallel: true},
	{Name: "rand", Suites: allSuites, Parallel: true},
	{Name: "readkeys", Suites: allSuites, Parallel: true},
	{Name: "session", Suites: allSuites, Parallel: true},
	{Name: "digest", Suites: []string{SuiteSoftokn, SuiteKryoptic}, Parallel: true},
	{Name: "ecc", Suites: allSuites, Parallel: true},
	{Name: "edwards", Suites: []string{SuiteKryoptic}, Parallel: true},
	{Name: "oaep", Suites: []string{SuiteSoftokn, SuiteSoftHSM}, Parallel: true},
	{Name: "cms", Suites: []string{SuiteSoftokn, SuiteKryoptic}, Parallel: true},
	{Name: "crosscert", Suites: allSuites, Parallel: false},
	{Name: "tls", Suites: allSuites, Parallel: false},
	{Name: "ca", Suites: []string{SuiteSoftHSM, SuiteKryoptic}, Parallel: false},
}
