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

package token

import "errors"

var (
	// ErrModuleNotFound is returned when no candidate path resolves to an
	// existing PKCS#11 module file.
	ErrModuleNotFound = errors.New("token: module not found")

	// ErrToolNotFound is returned when a required external tool is absent
	// from PATH. Callers translate this into a skipped outcome, never a
	// hard failure.
	ErrToolNotFound = errors.New("token: external tool not found")

	// ErrToolFailed is returned when an external tool exits nonzero.
	ErrToolFailed = errors.New("token: external tool failed")

	// ErrInvalidConfig is returned when the provisioner configuration is
	// incomplete.
	ErrInvalidConfig = errors.New("token: invalid configuration")
)
