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

// Package token provisions PKCS#11 software-token backends for conformance
// testing: it resolves the backend module from a ranked candidate list,
// resets the on-disk token store, and initializes token identity and PINs
// through external tooling.
//
// Absence of an optional backend or its tooling is an explicit skipped
// outcome, distinct from success and from hard failure. A skipped backend
// must never fail a run; a broken one must never be silently skipped.
package token

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-tokenharness/pkg/logging"
)

// Status classifies the result of a provisioning step.
type Status int

const (
	// StatusOK means the token is initialized and ready for objects.
	StatusOK Status = iota

	// StatusSkipped means an optional backend or tool is not installed.
	// The run proceeds (or exits successfully) without this suite.
	StatusSkipped

	// StatusFailed means an external tool failed; the suite is unusable.
	StatusFailed
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Outcome pairs a status with a human-readable reason for skip/failure.
type Outcome struct {
	Status Status
	Reason string
}

// Tools names the external executables the provisioner drives. Both are
// opaque collaborators; the harness never links against them.
type Tools struct {
	// P11 manipulates tokens and objects (init, keygen, write, delete).
	P11 string

	// Cert generates and signs certificates against token-held keys.
	Cert string
}

// Config describes one suite's token backend.
type Config struct {
	// Suite is the backend name (softokn, softhsm, kryoptic).
	Suite string

	// ModuleCandidates is the ordered list of filesystem paths probed for
	// the loadable backend module; the first existing regular file wins.
	ModuleCandidates []string

	// Dir is the working directory for this suite's token store. It is
	// removed and recreated on every provisioning run.
	Dir string

	// Label is the token label set at initialization.
	Label string

	// SOPIN is the Security-Officer PIN, PIN the user PIN.
	SOPIN string
	PIN   string

	Tools Tools

	// StoreConfName, when set, names a backend configuration file written
	// into Dir before initialization (e.g. softhsm2.conf). The template
	// is rendered with {{.TokensDir}} and {{.Dir}}.
	StoreConfName     string
	StoreConfTemplate string

	// ConfEnv is the environment variable the backend reads to find its
	// store configuration (e.g. SOFTHSM2_CONF). It is injected only into
	// the individual tool invocations that need it.
	ConfEnv string
}

// Validate checks the configuration fields provisioning cannot proceed
// without.
func (c *Config) Validate() error {
	if c.Suite == "" {
		return fmt.Errorf("%w: suite name required", ErrInvalidConfig)
	}
	if c.Dir == "" {
		return fmt.Errorf("%w: working directory required", ErrInvalidConfig)
	}
	if c.Label == "" {
		return fmt.Errorf("%w: token label required", ErrInvalidConfig)
	}
	if len(c.SOPIN) < 4 || len(c.PIN) < 4 {
		return fmt.Errorf("%w: pins must be at least 4 characters", ErrInvalidConfig)
	}
	if c.Tools.P11 == "" {
		return fmt.Errorf("%w: token tool required", ErrInvalidConfig)
	}
	return nil
}

// Token is an initialized, PIN-protected credential store plus the derived
// paths downstream consumers need to reach it.
type Token struct {
	Suite     string
	RunID     string
	Module    string
	Dir       string
	TokensDir string
	ConfPath  string
	ConfEnv   string
	PINFile   string
	Label     string
	SOPIN     string
	PIN       string
}

// ScopedEnv returns the environment the backend needs to locate this
// token's store, for injection into individual tool invocations. Without a
// rendered store config there is nothing to point the backend at, so no
// variable is injected rather than an empty-valued one.
func (t *Token) ScopedEnv() map[string]string {
	if t.ConfEnv == "" || t.ConfPath == "" {
		return nil
	}
	return map[string]string{t.ConfEnv: t.ConfPath}
}

// Provisioner initializes a fresh token for one suite.
type Provisioner struct {
	cfg Config
	run Runner
	log *logging.Logger
}

// NewProvisioner creates a provisioner for the given suite configuration.
func NewProvisioner(cfg Config, run Runner, log *logging.Logger) (*Provisioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.DefaultLogger()
	}
	return &Provisioner{cfg: cfg, run: run, log: log.With("suite", cfg.Suite)}, nil
}

// Provision resolves the backend module, resets the working directory and
// initializes the token. A missing module or missing tool yields a skipped
// outcome with a nil Token and nil error; tool failures yield a failed
// outcome and the underlying error.
func (p *Provisioner) Provision(ctx context.Context) (*Token, Outcome, error) {
	module, err := LocateModule(p.cfg.ModuleCandidates)
	if err != nil {
		p.log.Info("backend module not installed, skipping suite")
		return nil, Outcome{StatusSkipped, "backend module not found"}, nil
	}
	if err := LookTool(p.cfg.Tools.P11); err != nil {
		p.log.Info("token tool not installed, skipping suite", "tool", p.cfg.Tools.P11)
		return nil, Outcome{StatusSkipped, "token tool not found: " + p.cfg.Tools.P11}, nil
	}

	tok, err := p.initStore(module)
	if err != nil {
		return nil, Outcome{StatusFailed, "store setup failed"}, err
	}

	// Token identity first, then the user PIN. The store config path and
	// PINs ride only on these two invocations.
	initToken := Command{
		Name: p.cfg.Tools.P11,
		Args: []string{
			"--module", module,
			"--init-token",
			"--label", p.cfg.Label,
			"--so-pin", p.cfg.SOPIN,
		},
		Env: tok.ScopedEnv(),
	}
	if _, err := p.run.Run(ctx, initToken); err != nil {
		return nil, Outcome{StatusFailed, "token initialization failed"}, err
	}

	initPIN := Command{
		Name: p.cfg.Tools.P11,
		Args: []string{
			"--module", module,
			"--init-pin",
			"--so-pin", p.cfg.SOPIN,
			"--pin", p.cfg.PIN,
			"--token-label", p.cfg.Label,
		},
		Env: tok.ScopedEnv(),
	}
	if _, err := p.run.Run(ctx, initPIN); err != nil {
		return nil, Outcome{StatusFailed, "user pin initialization failed"}, err
	}

	p.log.Info("token provisioned", "module", module, "dir", tok.Dir, "run_id", tok.RunID)
	return tok, Outcome{Status: StatusOK}, nil
}

// initStore resets the working directory and writes the store config and
// PIN file. Prior run state is fully removed first so provisioning is
// idempotent.
func (p *Provisioner) initStore(module string) (*Token, error) {
	dir := p.cfg.Dir
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("reset working directory: %w", err)
	}
	tokensDir := filepath.Join(dir, "tokens")
	if err := os.MkdirAll(tokensDir, 0o750); err != nil {
		return nil, fmt.Errorf("create token store: %w", err)
	}

	tok := &Token{
		Suite:     p.cfg.Suite,
		RunID:     uuid.NewString(),
		Module:    module,
		Dir:       dir,
		TokensDir: tokensDir,
		ConfEnv:   p.cfg.ConfEnv,
		Label:     p.cfg.Label,
		SOPIN:     p.cfg.SOPIN,
		PIN:       p.cfg.PIN,
	}

	if p.cfg.StoreConfName != "" {
		conf, err := renderStoreConf(p.cfg.StoreConfTemplate, dir, tokensDir)
		if err != nil {
			return nil, err
		}
		tok.ConfPath = filepath.Join(dir, p.cfg.StoreConfName)
		if err := os.WriteFile(tok.ConfPath, []byte(conf), 0o644); err != nil {
			return nil, fmt.Errorf("write store config: %w", err)
		}
	}

	tok.PINFile = filepath.Join(dir, "pinfile.txt")
	if err := os.WriteFile(tok.PINFile, []byte(p.cfg.PIN), 0o600); err != nil {
		return nil, fmt.Errorf("write pin file: %w", err)
	}
	return tok, nil
}

func renderStoreConf(tmpl, dir, tokensDir string) (string, error) {
	if tmpl == "" {
		tmpl = "directories.tokendir = {{.TokensDir}}\nlog.level = INFO\n"
	}
	t, err := template.New("storeconf").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse store config template: %w", err)
	}
	var b strings.Builder
	if err := t.Execute(&b, struct{ Dir, TokensDir string }{dir, tokensDir}); err != nil {
		return "", fmt.Errorf("render store config: %w", err)
	}
	return b.String(), nil
}
