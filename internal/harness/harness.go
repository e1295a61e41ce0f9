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

// Package harness wires provisioning, environment export and matrix
// execution into one run: provision every configured suite, snapshot the
// derived state, then execute the declared (test, suite) pairs.
package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-tokenharness/internal/config"
	"github.com/jeremyhahn/go-tokenharness/pkg/chain"
	"github.com/jeremyhahn/go-tokenharness/pkg/envfile"
	"github.com/jeremyhahn/go-tokenharness/pkg/logging"
	"github.com/jeremyhahn/go-tokenharness/pkg/matrix"
	"github.com/jeremyhahn/go-tokenharness/pkg/metrics"
	"github.com/jeremyhahn/go-tokenharness/pkg/token"
	"github.com/jeremyhahn/go-tokenharness/pkg/uri"
)

// Object ids and labels are fixed so every run produces the same URI set.
// Ids are two bytes, zero padded, so all encoded ids are the same width.
var (
	caID       = []byte{0x00, 0x00}
	rsaID      = []byte{0x00, 0x01}
	ecID       = []byte{0x00, 0x02}
	ec384ID    = []byte{0x00, 0x03}
	orphanID   = []byte{0x00, 0x04}
	explicitID = []byte{0x00, 0x05}
	edID       = []byte{0x00, 0x06}
)

const (
	caLabel       = "caCert"
	rsaLabel      = "testCert"
	ecLabel       = "ecCert"
	ec384Label    = "ec384Cert"
	orphanLabel   = "orphanCert"
	explicitLabel = "ecExplicitCert"
	edLabel       = "edCert"
)

// SuiteState is everything provisioning derived for one suite.
type SuiteState struct {
	Token    *token.Token
	VarsFile string
	Registry *uri.Registry

	// URIs is every registered URI, for direct verification.
	URIs []string

	// OrphanPublic is the public-key URI whose object was deliberately
	// deleted; it must NOT resolve.
	OrphanPublic string
}

// Harness runs provisioning and the test matrix for all configured suites.
type Harness struct {
	cfg   *config.Config
	log   *logging.Logger
	met   *metrics.Metrics
	run   token.Runner
	table matrix.Matrix
	runID string

	// lookTool is swappable for tests.
	lookTool func(string) error
}

// New creates a harness. run may be nil to shell out to the real tools;
// met may be nil to disable metrics; table defaults to matrix.Default.
func New(cfg *config.Config, log *logging.Logger, met *metrics.Metrics, run token.Runner, table matrix.Matrix) *Harness {
	if log == nil {
		log = logging.NewLogger(cfg.Debug)
	}
	if run == nil {
		run = token.NewExecRunner(log)
	}
	if table == nil {
		table = matrix.Default
	}
	return &Harness{
		cfg:      cfg,
		log:      log,
		met:      met,
		run:      run,
		table:    table,
		runID:    uuid.NewString(),
		lookTool: token.LookTool,
	}
}

// RunID returns the identifier stamped on this run's artifacts.
func (h *Harness) RunID() string {
	return h.runID
}

// ProvisionSuite provisions one suite end to end: token store, chain of
// trust, seed files, provider config and the environment snapshot.
func (h *Harness) ProvisionSuite(ctx context.Context, sc config.SuiteConfig) (*SuiteState, token.Outcome, error) {
	tools := token.Tools{P11: h.cfg.Tools.P11, Cert: h.cfg.Tools.Cert}
	prov, err := token.NewProvisioner(token.Config{
		Suite:             sc.Name,
		ModuleCandidates:  sc.ModuleCandidates,
		Dir:               filepath.Join(h.cfg.WorkDir, "tokens-"+sc.Name),
		Label:             h.cfg.TokenLabel,
		SOPIN:             h.cfg.SOPIN,
		PIN:               h.cfg.PIN,
		Tools:             tools,
		StoreConfName:     sc.StoreConfName,
		StoreConfTemplate: sc.StoreConfTmpl,
		ConfEnv:           sc.ConfEnv,
	}, h.run, h.log)
	if err != nil {
		return nil, token.Outcome{Status: token.StatusFailed, Reason: "bad suite config"}, err
	}

	tok, outcome, err := prov.Provision(ctx)
	h.met.RecordProvisioning(sc.Name, outcome.Status.String())
	if err != nil || outcome.Status != token.StatusOK {
		return nil, outcome, err
	}

	state, err := h.buildChain(ctx, sc, tok, tools)
	if err != nil {
		return nil, token.Outcome{Status: token.StatusFailed, Reason: "chain build failed"}, err
	}
	return state, outcome, nil
}

// buildChain issues the chain of trust and snapshots the environment.
func (h *Harness) buildChain(ctx context.Context, sc config.SuiteConfig, tok *token.Token, tools token.Tools) (*SuiteState, error) {
	reg := uri.NewRegistry()
	builder := chain.NewBuilder(tok, tools,
		chain.Subject{OrgUnit: h.cfg.OrgUnit, Country: h.cfg.Country},
		h.cfg.Organization, h.run, h.log)

	ca, err := builder.IssueCA(ctx, chain.AlgECP256, caID, caLabel, "Issuer CA")
	if err != nil {
		return nil, fmt.Errorf("issue ca: %w", err)
	}
	if err := reg.RegisterCertified("CA", ca.Object, tok.PIN, tok.PINFile); err != nil {
		return nil, err
	}
	h.met.RecordObject(sc.Name, "ca")

	leaves := []struct {
		prefix  string
		alg     chain.Algorithm
		id      []byte
		label   string
		cn      string
		enabled bool
	}{
		{"", chain.AlgRSA2048, rsaID, rsaLabel, "My Test Cert", true},
		{"EC", chain.AlgECP256, ecID, ecLabel, "My EC Cert", true},
		{"EC3", chain.AlgECP384, ec384ID, ec384Label, "My EC384 Cert", true},
		{"ED", chain.AlgEd25519, edID, edLabel, "My Ed25519 Cert", sc.SupportsEdwards},
	}
	for _, leaf := range leaves {
		if !leaf.enabled {
			continue
		}
		cert, err := builder.IssueLeaf(ctx, leaf.alg, leaf.id, leaf.label, leaf.cn)
		if err != nil {
			return nil, fmt.Errorf("issue leaf %s: %w", leaf.label, err)
		}
		if err := reg.RegisterCertified(leaf.prefix, cert.Object, tok.PIN, tok.PINFile); err != nil {
			return nil, err
		}
		h.met.RecordObject(sc.Name, "keypair")
	}

	// A leaf whose public-key object is removed after issuance: only the
	// private key and certificate remain on the token.
	orphan, err := builder.IssueLeaf(ctx, chain.AlgRSA2048, orphanID, orphanLabel, "My Orphan Cert")
	if err != nil {
		return nil, fmt.Errorf("issue orphan leaf: %w", err)
	}
	if err := builder.DeletePublicKey(ctx, orphan); err != nil {
		return nil, fmt.Errorf("delete orphan public key: %w", err)
	}
	if err := reg.Set("ORPHANBASEURI", orphan.Object.Base()); err != nil {
		return nil, err
	}
	if err := reg.Set("ORPHANPRIURI", orphan.Object.Private()); err != nil {
		return nil, err
	}
	if err := reg.Set("ORPHANCRTURI", orphan.Object.Cert()); err != nil {
		return nil, err
	}
	h.met.RecordObject(sc.Name, "orphan")

	// Explicit-parameter EC key material is imported, never generated,
	// and only where the backend/OS combination supports it.
	explicitReg := uri.NewRegistry()
	explicitObj, explicitOut, err := builder.ImportExplicitEC(ctx, chain.ExplicitECFiles{
		Private: filepath.Join(h.cfg.ExplicitECDir, "ec-explicit-priv.der"),
		Public:  filepath.Join(h.cfg.ExplicitECDir, "ec-explicit-pub.der"),
	}, explicitID, explicitLabel, sc.SupportsExplicitEC && runtime.GOOS == "linux")
	if err != nil {
		return nil, fmt.Errorf("import explicit ec: %w", err)
	}
	if explicitOut.Status == token.StatusOK {
		if err := explicitReg.RegisterKeyPair("ECE", explicitObj, tok.PIN, tok.PINFile); err != nil {
			return nil, err
		}
		h.met.RecordObject(sc.Name, "explicit-ec")
	}

	seeds, err := envfile.WriteSeedFiles(tok.Dir)
	if err != nil {
		return nil, err
	}
	providerConf, err := token.WriteProviderConf(tok, sc.Quirks, "")
	if err != nil {
		return nil, err
	}

	state := &SuiteState{Token: tok, Registry: reg, OrphanPublic: orphan.Object.Public()}
	state.VarsFile = filepath.Join(tok.Dir, "testvars")
	if err := h.exportEnv(state, seeds, providerConf, explicitOut, explicitReg); err != nil {
		return nil, err
	}

	reg.Each(func(_, value string) {
		state.URIs = append(state.URIs, value)
	})
	return state, nil
}

// exportEnv writes the sourceable snapshot every test process consumes.
func (h *Harness) exportEnv(state *SuiteState, seeds envfile.SeedFiles, providerConf string, explicitOut token.Outcome, explicitReg *uri.Registry) error {
	tok := state.Token
	f := envfile.New(tok.RunID)

	f.Section("token")
	f.Set("TOKEN_MODULE", tok.Module)
	f.Set("TOKEN_DIR", tok.Dir)
	if tok.ConfPath != "" {
		f.Set("TOKEN_CONFIG", tok.ConfPath)
		f.Set("TOKEN_CONFIG_ENV", tok.ConfEnv)
	}
	f.Set("TOKEN_LABEL", tok.Label)
	f.Set("PIN", tok.PIN)
	f.Set("PINFILE", tok.PINFile)
	f.Set("PROVIDER_CONF", providerConf)

	f.Section("random")
	f.Set("SEEDFILE", seeds.Seed)
	f.Set("RANDOMFILE", seeds.Bulk)

	if s := h.cfg.Sanitizer; s != nil {
		san := sanitizerFromConfig(s)
		f.Section("sanitizer")
		f.Set("ASAN_PRELOAD", s.Allocator)
		if s.Suppressions != "" {
			f.Set("LSAN_SUPPRESSIONS", s.Suppressions)
		}
		f.Set("PRELOAD_CMD", "LD_PRELOAD="+san.Preload())
	}

	f.Section("uris")
	f.SetRegistry(state.Registry)

	// Present only when explicit-parameter EC material was provisioned;
	// consumers treat absence as feature-not-available.
	if explicitOut.Status == token.StatusOK {
		f.Section("explicit ec")
		f.SetRegistry(explicitReg)
		explicitReg.Each(func(_, value string) {
			state.URIs = append(state.URIs, value)
		})
	}

	return f.Write(state.VarsFile)
}

// Run provisions every configured suite and executes the matrix. The bool
// result reports a whole-run soft skip: required certificate tooling was
// absent or no backend was installed, and the process should exit zero
// without having run anything.
//
// A provisioning failure in one suite is confined to that suite: its
// declared matrix entries are recorded as failed and every other suite
// still provisions and runs.
func (h *Harness) Run(ctx context.Context) (*matrix.Report, bool, error) {
	if err := h.table.Validate(h.cfg.SuiteNames()); err != nil {
		return nil, false, err
	}
	if err := h.lookTool(h.cfg.Tools.Cert); err != nil {
		h.log.Info("certificate tool not installed, skipping run", "tool", h.cfg.Tools.Cert)
		return &matrix.Report{RunID: h.runID}, true, nil
	}

	envs := make(map[string]matrix.SuiteEnv)
	var suites, failed []string
	for _, sc := range h.cfg.Suites {
		state, outcome, err := h.ProvisionSuite(ctx, sc)
		if err != nil {
			h.log.Errorf("suite %s provisioning failed: %v", sc.Name, err)
			failed = append(failed, sc.Name)
			continue
		}
		suites = append(suites, sc.Name)
		if outcome.Status != token.StatusOK {
			continue
		}
		envs[sc.Name] = matrix.SuiteEnv{VarsFile: state.VarsFile}
	}
	if len(envs) == 0 && len(failed) == 0 {
		h.log.Info("no backend available, skipping run")
		return &matrix.Report{RunID: h.runID}, true, nil
	}

	runner := matrix.NewRunner(matrix.Config{
		TestDir:   h.cfg.Runner.TestDir,
		Timeout:   h.cfg.Runner.Timeout,
		Jobs:      h.cfg.Runner.Jobs,
		Sanitizer: sanitizerFromConfig(h.cfg.Sanitizer),
	}, h.log, h.met)

	report := runner.Run(ctx, suites, h.table, envs)
	report.RunID = h.runID
	for _, suite := range failed {
		for _, tc := range h.table.ForSuite(suite) {
			h.met.RecordTest(suite, string(matrix.StatusFail), 0)
			report.Results = append(report.Results, matrix.Result{
				Test:   tc.Name,
				Suite:  suite,
				Status: matrix.StatusFail,
				Reason: "suite provisioning failed",
			})
		}
	}

	if err := report.WriteJSON(filepath.Join(h.cfg.WorkDir, "report.json")); err != nil {
		return nil, false, err
	}
	if err := h.met.WriteTextfile(filepath.Join(h.cfg.WorkDir, "metrics.prom")); err != nil {
		return nil, false, err
	}
	return report, false, nil
}

func sanitizerFromConfig(s *config.Sanitizer) *matrix.Sanitizer {
	if s == nil {
		return nil
	}
	return &matrix.Sanitizer{
		Allocator:    s.Allocator,
		NoUnloadShim: s.NoUnloadShim,
		Suppressions: s.Suppressions,
		TimeoutScale: s.TimeoutScale,
	}
}
