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

package chain

import "errors"

var (
	// ErrNoCA is returned when a leaf is requested before a CA is issued.
	ErrNoCA = errors.New("chain: no certificate authority issued")

	// ErrVerification is returned when an issued leaf does not verify
	// against the CA certificate.
	ErrVerification = errors.New("chain: certificate verification failed")

	// ErrUnsupportedAlgorithm is returned for an algorithm the key
	// generation tool cannot produce.
	ErrUnsupportedAlgorithm = errors.New("chain: unsupported key algorithm")

	// ErrBadCertificate is returned when tool output does not parse as DER.
	ErrBadCertificate = errors.New("chain: malformed certificate")
)
