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

import (
	"fmt"
	"io/fs"
	"os"
)

// StatFunc is the filesystem-existence predicate used by Locate. It has the
// signature of os.Stat so tests can substitute an in-memory view.
type StatFunc func(name string) (fs.FileInfo, error)

// Locate returns the first candidate path that stat reports as an existing
// regular file. Candidates are probed strictly in order; a path that exists
// but is not a regular file (directory, symlink target missing, device) is
// passed over. Returns ErrModuleNotFound when no candidate matches.
func Locate(candidates []string, stat StatFunc) (string, error) {
	for _, path := range candidates {
		info, err := stat(path)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: probed %d candidate paths", ErrModuleNotFound, len(candidates))
}

// LocateModule probes the real filesystem for the first existing module in
// the candidate list.
func LocateModule(candidates []string) (string, error) {
	return Locate(candidates, os.Stat)
}
