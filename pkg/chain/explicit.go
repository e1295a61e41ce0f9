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
	"encoding/hex"
	"os"

	"github.com/jeremyhahn/go-tokenharness/pkg/token"
	"github.com/jeremyhahn/go-tokenharness/pkg/uri"
)

// ExplicitECFiles points at pre-generated explicit-parameter EC key
// material. The key generation tool cannot produce explicit-parameter
// curves, so both halves are imported from fixed files.
type ExplicitECFiles struct {
	Private string
	Public  string
}

// ImportExplicitEC writes explicit-parameter EC private and public key
// objects into the token from files. No certificate is issued for this key
// pair. When supported is false, or the key files are not present, the
// import is skipped: no objects are created and no error is raised, so
// downstream consumers observe absent URIs rather than a failure.
func (b *Builder) ImportExplicitEC(ctx context.Context, files ExplicitECFiles, id []byte, label string, supported bool) (uri.Object, token.Outcome, error) {
	if !supported {
		b.log.Info("explicit-parameter EC unsupported on this backend, skipping", "label", label)
		return uri.Object{}, token.Outcome{Status: token.StatusSkipped, Reason: "explicit parameters unsupported"}, nil
	}
	for _, f := range []string{files.Private, files.Public} {
		if _, err := os.Stat(f); err != nil {
			b.log.Info("explicit-parameter EC key material missing, skipping", "file", f)
			return uri.Object{}, token.Outcome{Status: token.StatusSkipped, Reason: "key material not found"}, nil
		}
	}

	obj, err := uri.NewObject(id, label)
	if err != nil {
		return uri.Object{}, token.Outcome{Status: token.StatusFailed, Reason: "bad object id"}, err
	}

	imports := []struct{ file, objType string }{
		{files.Private, "privkey"},
		{files.Public, "pubkey"},
	}
	for _, imp := range imports {
		cmd := token.Command{
			Name: b.p11Tool(),
			Args: []string{
				"--module", b.tok.Module,
				"--write-object", imp.file,
				"--type", imp.objType,
				"--id", hex.EncodeToString(id),
				"--label", label,
				"--pin", b.tok.PIN,
			},
			Env: b.toolEnv(),
		}
		if _, err := b.run.Run(ctx, cmd); err != nil {
			return uri.Object{}, token.Outcome{Status: token.StatusFailed, Reason: "object write failed"}, err
		}
	}

	b.log.Info("explicit-parameter EC key imported", "label", label)
	return obj, token.Outcome{Status: token.StatusOK}, nil
}
