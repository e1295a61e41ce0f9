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

// Package chain builds a deterministic chain of trust inside a provisioned
// token: one self-signed CA (serial 1) and per-algorithm leaf certificates
// (serials 2, 3, ...) signed by that CA. Key generation and signing are
// delegated to external tooling; issued leaves are verified in-process
// against the CA certificate before being written back into the token.
package chain

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeremyhahn/go-tokenharness/pkg/logging"
	"github.com/jeremyhahn/go-tokenharness/pkg/token"
	"github.com/jeremyhahn/go-tokenharness/pkg/uri"
)

// Algorithm selects the key type generated for a certificate.
type Algorithm string

const (
	AlgRSA2048    Algorithm = "rsa2048"
	AlgECP256     Algorithm = "ecp256"
	AlgECP384     Algorithm = "ecp384"
	AlgEd25519    Algorithm = "ed25519"
	AlgECExplicit Algorithm = "ecexplicit"
)

// keyTypeArg maps an algorithm onto the key generation tool's --key-type
// syntax. Explicit-parameter curves are absent: the tool cannot generate
// them, they are imported from files instead (see ImportExplicitEC).
func (a Algorithm) keyTypeArg() (string, error) {
	switch a {
	case AlgRSA2048:
		return "rsa:2048", nil
	case AlgECP256:
		return "EC:prime256v1", nil
	case AlgECP384:
		return "EC:secp384r1", nil
	case AlgEd25519:
		return "EC:edwards25519", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, a)
}

// Certificate is an issued certificate together with the token object it
// shares id and label with.
type Certificate struct {
	Object uri.Object
	Cert   *x509.Certificate
	DER    []byte
	Path   string
}

// Builder issues the CA and leaf certificates for one token. Not safe for
// concurrent use; issuance order defines serial order.
type Builder struct {
	tok    *token.Token
	tools  token.Tools
	run    token.Runner
	log    *logging.Logger
	base   Subject
	org    string
	serial int
	leaves int
	ca     *Certificate
}

// NewBuilder creates a chain builder for a provisioned token. org is the
// organization field appended to every leaf subject after the first; the CA
// subject never carries it.
func NewBuilder(tok *token.Token, tools token.Tools, base Subject, org string, run token.Runner, log *logging.Logger) *Builder {
	if log == nil {
		log = logging.DefaultLogger()
	}
	return &Builder{
		tok:   tok,
		tools: tools,
		run:   run,
		log:   log.With("suite", tok.Suite),
		base:  base,
		org:   org,
	}
}

// CA returns the issued CA certificate, or nil before IssueCA.
func (b *Builder) CA() *Certificate {
	return b.ca
}

// IssueCA generates a key pair and self-signs the CA certificate with
// serial 1, then stores the certificate in the token under the key pair's
// id and label.
func (b *Builder) IssueCA(ctx context.Context, alg Algorithm, id []byte, label, cn string) (*Certificate, error) {
	obj, err := uri.NewObject(id, label)
	if err != nil {
		return nil, err
	}
	if err := b.generateKeyPair(ctx, alg, id, label); err != nil {
		return nil, err
	}

	b.serial = 1
	tmpl := renderTemplate(b.base, overlay{cn: cn, serial: b.serial, isCA: true})
	tmplPath := filepath.Join(b.tok.Dir, "ca.tmpl")
	if err := os.WriteFile(tmplPath, []byte(tmpl), 0o644); err != nil {
		return nil, fmt.Errorf("write ca template: %w", err)
	}

	certPath := filepath.Join(b.tok.Dir, "ca.der")
	cmd := token.Command{
		Name: b.certTool(),
		Args: []string{
			"--generate-self-signed",
			"--template", tmplPath,
			"--load-privkey", obj.WithPINValue(b.tok.PIN),
			"--outder",
			"--outfile", certPath,
		},
		Env: b.toolEnv(),
	}
	if _, err := b.run.Run(ctx, cmd); err != nil {
		return nil, err
	}

	cert, der, err := readCert(certPath)
	if err != nil {
		return nil, err
	}
	if err := b.storeCert(ctx, certPath, id, label); err != nil {
		return nil, err
	}

	b.ca = &Certificate{Object: obj, Cert: cert, DER: der, Path: certPath}
	b.log.Info("ca issued", "cn", cn, "serial", b.serial, "label", label)
	return b.ca, nil
}

// IssueLeaf generates a key pair and issues a certificate signed by the CA.
// Serials pre-increment, so the first leaf is serial 2. Every leaf after
// the first carries the builder's organization in its subject. The issued
// certificate is verified against the CA before it is stored.
func (b *Builder) IssueLeaf(ctx context.Context, alg Algorithm, id []byte, label, cn string) (*Certificate, error) {
	if b.ca == nil {
		return nil, ErrNoCA
	}
	obj, err := uri.NewObject(id, label)
	if err != nil {
		return nil, err
	}
	if err := b.generateKeyPair(ctx, alg, id, label); err != nil {
		return nil, err
	}

	b.serial++
	o := overlay{cn: cn, serial: b.serial}
	if b.leaves >= 1 {
		o.org = b.org
	}
	tmpl := renderTemplate(b.base, o)
	tmplPath := filepath.Join(b.tok.Dir, label+".tmpl")
	if err := os.WriteFile(tmplPath, []byte(tmpl), 0o644); err != nil {
		return nil, fmt.Errorf("write leaf template: %w", err)
	}

	certPath := filepath.Join(b.tok.Dir, label+".der")
	cmd := token.Command{
		Name: b.certTool(),
		Args: []string{
			"--generate-certificate",
			"--template", tmplPath,
			"--load-privkey", obj.WithPINValue(b.tok.PIN),
			"--load-ca-privkey", b.ca.Object.WithPINValue(b.tok.PIN),
			"--load-ca-certificate", b.ca.Path,
			"--outder",
			"--outfile", certPath,
		},
		Env: b.toolEnv(),
	}
	if _, err := b.run.Run(ctx, cmd); err != nil {
		return nil, err
	}

	cert, der, err := readCert(certPath)
	if err != nil {
		return nil, err
	}
	if err := cert.CheckSignatureFrom(b.ca.Cert); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrVerification, label, err)
	}
	if err := b.storeCert(ctx, certPath, id, label); err != nil {
		return nil, err
	}

	b.leaves++
	b.log.Info("leaf issued", "cn", cn, "serial", b.serial, "label", label)
	return &Certificate{Object: obj, Cert: cert, DER: der, Path: certPath}, nil
}

// DeletePublicKey removes the public-key object for an issued certificate,
// leaving the private key and certificate behind. This models the HSM
// deployment where only the private half and certificate are present.
func (b *Builder) DeletePublicKey(ctx context.Context, cert *Certificate) error {
	cmd := token.Command{
		Name: b.p11Tool(),
		Args: []string{
			"--module", b.tok.Module,
			"--delete-object",
			"--type", "pubkey",
			"--id", hex.EncodeToString(cert.Object.ID()),
			"--pin", b.tok.PIN,
		},
		Env: b.toolEnv(),
	}
	if _, err := b.run.Run(ctx, cmd); err != nil {
		return err
	}
	b.log.Info("public key deleted", "label", cert.Object.Label())
	return nil
}

// generateKeyPair creates a key pair on the token under id/label.
func (b *Builder) generateKeyPair(ctx context.Context, alg Algorithm, id []byte, label string) error {
	keyType, err := alg.keyTypeArg()
	if err != nil {
		return err
	}
	cmd := token.Command{
		Name: b.p11Tool(),
		Args: []string{
			"--module", b.tok.Module,
			"--keypairgen",
			"--key-type", keyType,
			"--id", hex.EncodeToString(id),
			"--label", label,
			"--pin", b.tok.PIN,
		},
		Env: b.toolEnv(),
	}
	_, err = b.run.Run(ctx, cmd)
	return err
}

// storeCert writes an issued certificate back into the token under the same
// id and label as its key pair, so lookups by id or label both resolve.
func (b *Builder) storeCert(ctx context.Context, certPath string, id []byte, label string) error {
	cmd := token.Command{
		Name: b.p11Tool(),
		Args: []string{
			"--module", b.tok.Module,
			"--write-object", certPath,
			"--type", "cert",
			"--id", hex.EncodeToString(id),
			"--label", label,
			"--pin", b.tok.PIN,
		},
		Env: b.toolEnv(),
	}
	_, err := b.run.Run(ctx, cmd)
	return err
}

func (b *Builder) p11Tool() string  { return b.tools.P11 }
func (b *Builder) certTool() string { return b.tools.Cert }

func (b *Builder) toolEnv() map[string]string {
	return b.tok.ScopedEnv()
}

func readCert(path string) (*x509.Certificate, []byte, error) {
	der, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrBadCertificate, path, err)
	}
	return cert, der, nil
}
