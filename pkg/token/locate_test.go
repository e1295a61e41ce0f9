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
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInfo struct {
	name string
	mode fs.FileMode
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return 0 }
func (f fakeInfo) Mode() fs.FileMode  { return f.mode }
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return f.mode.IsDir() }
func (f fakeInfo) Sys() any           { return nil }

// fakeStat returns a StatFunc over a fixed path->mode view.
func fakeStat(files map[string]fs.FileMode) StatFunc {
	return func(name string) (fs.FileInfo, error) {
		mode, ok := files[name]
		if !ok {
			return nil, fs.ErrNotExist
		}
		return fakeInfo{name: filepath.Base(name), mode: mode}, nil
	}
}

func TestLocate_FirstExistingWins(t *testing.T) {
	stat := fakeStat(map[string]fs.FileMode{
		"/usr/lib64/libsofthsm2.so":       0o644,
		"/usr/lib/softhsm/libsofthsm2.so": 0o644,
	})
	got, err := Locate([]string{
		"/usr/local/lib/softhsm/libsofthsm2.so",
		"/usr/lib64/libsofthsm2.so",
		"/usr/lib/softhsm/libsofthsm2.so",
	}, stat)
	require.NoError(t, err)
	assert.Equal(t, "/usr/lib64/libsofthsm2.so", got)
}

func TestLocate_SkipsNonRegular(t *testing.T) {
	stat := fakeStat(map[string]fs.FileMode{
		"/usr/lib64":                0o755 | fs.ModeDir,
		"/usr/lib64/libsofthsm2.so": 0o644,
	})
	got, err := Locate([]string{"/usr/lib64", "/usr/lib64/libsofthsm2.so"}, stat)
	require.NoError(t, err)
	assert.Equal(t, "/usr/lib64/libsofthsm2.so", got)
}

func TestLocate_NoneFound(t *testing.T) {
	_, err := Locate([]string{"/nope/a.so", "/nope/b.so"}, fakeStat(nil))
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestLocate_EmptyCandidates(t *testing.T) {
	_, err := Locate(nil, fakeStat(nil))
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestLocateModule_RealFilesystem(t *testing.T) {
	dir := t.TempDir()
	mod := filepath.Join(dir, "libfake.so")
	require.NoError(t, os.WriteFile(mod, []byte("elf"), 0o644))

	got, err := LocateModule([]string{filepath.Join(dir, "missing.so"), mod})
	require.NoError(t, err)
	assert.Equal(t, mod, got)
}
