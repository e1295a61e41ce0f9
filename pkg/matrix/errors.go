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

package matrix

import "errors"

var (
	// ErrBadMatrix is returned when the declarative table is inconsistent.
	ErrBadMatrix = errors.New("matrix: invalid test table")

	// ErrTimeout marks a test process killed by its deadline.
	ErrTimeout = errors.New("matrix: test timed out")
)
