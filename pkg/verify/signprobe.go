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

package verify

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ThalesGroup/crypto11"

	"github.com/jeremyhahn/go-tokenharness/pkg/uri"
)

// ErrKeyPairNotFound is returned when SignProbe cannot locate the key pair.
var ErrKeyPairNotFound = errors.New("verify: key pair not found")

// SignProbe locates the key pair for obj, signs a random digest with the
// token-held private key and verifies the signature with the returned
// public key. This proves the private half is usable, not merely present.
//
// The probe opens its own crypto11 context and must not run concurrently
// with CheckURIs on the same module.
func (c *Checker) SignProbe(obj uri.Object) error {
	ctx, err := crypto11.Configure(&crypto11.Config{
		Path:       c.Module,
		TokenLabel: c.Label,
		Pin:        c.PIN,
	})
	if err != nil {
		return fmt.Errorf("verify: configure: %w", err)
	}
	defer ctx.Close()

	signer, err := ctx.FindKeyPair(obj.ID(), nil)
	if err != nil {
		return fmt.Errorf("verify: find key pair: %w", err)
	}
	if signer == nil {
		return fmt.Errorf("%w: id %x", ErrKeyPairNotFound, obj.ID())
	}

	digest := sha256.Sum256([]byte(obj.Base()))
	sig, err := signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		return fmt.Errorf("verify: sign: %w", err)
	}

	switch pub := signer.Public().(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
			return fmt.Errorf("verify: rsa signature invalid: %w", err)
		}
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, digest[:], sig) {
			return errors.New("verify: ecdsa signature invalid")
		}
	default:
		return fmt.Errorf("verify: unsupported public key type %T", pub)
	}
	return nil
}
