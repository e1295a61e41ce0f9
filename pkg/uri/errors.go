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

package uri

import "errors"

var (
	// ErrEmptyID is returned when an object is constructed without id bytes.
	ErrEmptyID = errors.New("uri: empty object id")

	// ErrMalformedID is returned when a percent-encoded id does not decode.
	ErrMalformedID = errors.New("uri: malformed percent-encoded id")

	// ErrNotPKCS11 is returned when a parsed string lacks the pkcs11: scheme.
	ErrNotPKCS11 = errors.New("uri: not a pkcs11 URI")

	// ErrDuplicateName is returned when a registry name is set twice.
	ErrDuplicateName = errors.New("uri: duplicate registry name")
)
