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

package envfile

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// SeedSize is the size of the small seed file fed to tests that need
	// a fixed-size random input.
	SeedSize = 16

	// BulkRandomSize is the size of the larger random file used by tests
	// that consume streaming random data.
	BulkRandomSize = 2048
)

// SeedFiles are the per-run random input files, generated once from a
// secure random source and shared by every test in the run.
type SeedFiles struct {
	Seed string
	Bulk string
}

// WriteSeedFiles generates the seed and bulk-random files under dir.
func WriteSeedFiles(dir string) (SeedFiles, error) {
	files := SeedFiles{
		Seed: filepath.Join(dir, "testvalue.bin"),
		Bulk: filepath.Join(dir, "testrandom.bin"),
	}
	for _, f := range []struct {
		path string
		size int
	}{
		{files.Seed, SeedSize},
		{files.Bulk, BulkRandomSize},
	} {
		buf := make([]byte, f.size)
		if _, err := rand.Read(buf); err != nil {
			return SeedFiles{}, fmt.Errorf("generate random data: %w", err)
		}
		if err := os.WriteFile(f.path, buf, 0o600); err != nil {
			return SeedFiles{}, fmt.Errorf("write seed file: %w", err)
		}
	}
	return files, nil
}
