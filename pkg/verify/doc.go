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

// Package verify resolves provisioned URIs directly against a live token.
//
// Two checks are provided:
//
//   - CheckURIs walks the exported URI set with raw PKCS#11 object searches
//     and reports every reference that does not resolve, including the
//     deliberate negative: a public key removed after certificate issuance.
//   - SignProbe exercises a provisioned key pair end to end: find by id,
//     sign a digest, verify with the returned public key.
//
// Requires cgo and the pkcs11 build tag; without the tag the harness
// reports verification as unavailable rather than failing.
package verify
