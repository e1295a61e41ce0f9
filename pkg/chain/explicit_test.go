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

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tokenharness/pkg/token"
)

func explicitFiles(t *testing.T) ExplicitECFiles {
	t.Helper()
	dir := t.TempDir()
	priv := filepath.Join(dir, "ec-explicit-priv.der")
	pub := filepath.Join(dir, "ec-explicit-pub.der")
	require.NoError(t, os.WriteFile(priv, []byte("priv"), 0o600))
	require.NoError(t, os.WriteFile(pub, []byte("pub"), 0o644))
	return ExplicitECFiles{Private: priv, Public: pub}
}

func TestImportExplicitEC(t *testing.T) {
	b, fake := newTestBuilder(t)
	files := explicitFiles(t)

	obj, outcome, err := b.ImportExplicitEC(context.Background(), files,
		[]byte{0x00, 0x05}, "ecExplicitCert", true)
	require.NoError(t, err)
	require.Equal(t, token.StatusOK, outcome.Status)
	assert.Equal(t, []byte{0x00, 0x05}, obj.ID())

	// private key first, then public key, no certificate
	require.Len(t, fake.commands, 2)
	assert.Contains(t, fake.commands[0].Args, "privkey")
	assert.Contains(t, fake.commands[0].Args, files.Private)
	assert.Contains(t, fake.commands[1].Args, "pubkey")
	assert.Contains(t, fake.commands[1].Args, files.Public)
}

func TestImportExplicitEC_Unsupported(t *testing.T) {
	b, fake := newTestBuilder(t)
	files := explicitFiles(t)

	_, outcome, err := b.ImportExplicitEC(context.Background(), files,
		[]byte{0x00, 0x05}, "ecExplicitCert", false)
	require.NoError(t, err)
	assert.Equal(t, token.StatusSkipped, outcome.Status)
	assert.Empty(t, fake.commands)
}

func TestImportExplicitEC_MissingMaterial(t *testing.T) {
	b, fake := newTestBuilder(t)
	files := ExplicitECFiles{Private: "/nope/priv.der", Public: "/nope/pub.der"}

	_, outcome, err := b.ImportExplicitEC(context.Background(), files,
		[]byte{0x00, 0x05}, "ecExplicitCert", true)
	require.NoError(t, err)
	assert.Equal(t, token.StatusSkipped, outcome.Status)
	assert.Empty(t, fake.commands)
}
