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

// Package config loads the harness configuration: suite definitions, tool
// names, runner limits and sanitizer wrapping. Values come from built-in
// defaults, overlaid by an optional YAML file, overlaid by TOKENHARNESS_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "TOKENHARNESS"

// Config is the complete harness configuration.
type Config struct {
	// Debug enables debug logging.
	Debug bool `yaml:"debug"`

	// WorkDir is the base directory; each suite gets WorkDir/tokens-<suite>.
	WorkDir string `yaml:"workdir"`

	// PIN and SOPIN protect every provisioned token.
	PIN   string `yaml:"pin"`
	SOPIN string `yaml:"so_pin"`

	// TokenLabel is the label set on every token.
	TokenLabel string `yaml:"token_label"`

	// Organization is the subject organization appended to leaf
	// certificates after the first.
	Organization string `yaml:"organization"`

	// OrgUnit and Country are the shared subject fields.
	OrgUnit string `yaml:"org_unit"`
	Country string `yaml:"country"`

	Tools     ToolsConfig   `yaml:"tools"`
	Runner    RunnerConfig  `yaml:"runner"`
	Sanitizer *Sanitizer    `yaml:"sanitizer"`
	Suites    []SuiteConfig `yaml:"suites"`

	// ExplicitECDir holds pre-generated explicit-parameter EC key files.
	ExplicitECDir string `yaml:"explicit_ec_dir"`
}

// ToolsConfig names the external executables.
type ToolsConfig struct {
	P11  string `yaml:"p11"`
	Cert string `yaml:"cert"`
}

// RunnerConfig bounds test execution.
type RunnerConfig struct {
	TestDir string        `yaml:"test_dir"`
	Timeout time.Duration `yaml:"timeout"`
	Jobs    int           `yaml:"jobs"`
}

// Sanitizer mirrors the runner's sanitizer wrapping settings.
type Sanitizer struct {
	Allocator    string `yaml:"allocator"`
	NoUnloadShim string `yaml:"no_unload_shim"`
	Suppressions string `yaml:"suppressions"`
	TimeoutScale int    `yaml:"timeout_scale"`
}

// SuiteConfig describes one token backend.
type SuiteConfig struct {
	Name             string   `yaml:"name"`
	ModuleCandidates []string `yaml:"module_candidates"`
	StoreConfName    string   `yaml:"store_conf_name"`
	StoreConfTmpl    string   `yaml:"store_conf_template"`
	ConfEnv          string   `yaml:"conf_env"`
	Quirks           []string `yaml:"quirks"`

	// SupportsExplicitEC gates the explicit-parameter curve import.
	SupportsExplicitEC bool `yaml:"supports_explicit_ec"`

	// SupportsEdwards gates Edwards-curve key generation.
	SupportsEdwards bool `yaml:"supports_edwards"`
}

// Default returns the built-in configuration for the three software-token
// backends.
func Default() *Config {
	return &Config{
		WorkDir:      "/tmp/tokenharness",
		PIN:          "12345678",
		SOPIN:        "12345678",
		TokenLabel:   "tokenharness",
		Organization: "Example Org",
		OrgUnit:      "Conformance",
		Country:      "US",
		Tools:        ToolsConfig{P11: "pkcs11-tool", Cert: "certtool"},
		Runner: RunnerConfig{
			TestDir: "tests",
			Timeout: 5 * time.Minute,
			Jobs:    4,
		},
		Suites: []SuiteConfig{
			{
				Name: "softokn",
				ModuleCandidates: []string{
					"/usr/lib64/libsoftokn3.so",
					"/usr/lib/x86_64-linux-gnu/nss/libsoftokn3.so",
					"/usr/lib/libsoftokn3.so",
				},
				Quirks: []string{"no-deinit", "no-operation-state"},
			},
			{
				Name: "softhsm",
				ModuleCandidates: []string{
					"/usr/local/lib/softhsm/libsofthsm2.so",
					"/usr/lib64/pkcs11/libsofthsm2.so",
					"/usr/lib/softhsm/libsofthsm2.so",
					"/usr/lib/x86_64-linux-gnu/softhsm/libsofthsm2.so",
				},
				StoreConfName:      "softhsm2.conf",
				ConfEnv:            "SOFTHSM2_CONF",
				SupportsExplicitEC: true,
			},
			{
				Name: "kryoptic",
				ModuleCandidates: []string{
					"/usr/lib64/pkcs11/libkryoptic_pkcs11.so",
					"/usr/local/lib/kryoptic/libkryoptic_pkcs11.so",
				},
				StoreConfName:      "kryoptic.conf",
				StoreConfTmpl:      "[[slots]]\nslot = 0\ndbtype = \"sqlite\"\ndbargs = \"{{.TokensDir}}/kryoptic.sql\"\n",
				ConfEnv:            "KRYOPTIC_CONF",
				SupportsExplicitEC: true,
				SupportsEdwards:    true,
			},
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays TOKENHARNESS_* variables on scalar settings.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range []string{"debug", "workdir", "pin", "so_pin", "token_label", "test_dir", "jobs"} {
		// BindEnv maps so_pin to TOKENHARNESS_SO_PIN
		_ = v.BindEnv(key)
	}
	if v.IsSet("debug") {
		cfg.Debug = v.GetBool("debug")
	}
	if s := v.GetString("workdir"); s != "" {
		cfg.WorkDir = s
	}
	if s := v.GetString("pin"); s != "" {
		cfg.PIN = s
	}
	if s := v.GetString("so_pin"); s != "" {
		cfg.SOPIN = s
	}
	if s := v.GetString("token_label"); s != "" {
		cfg.TokenLabel = s
	}
	if s := v.GetString("test_dir"); s != "" {
		cfg.Runner.TestDir = s
	}
	if n := v.GetInt("jobs"); n > 0 {
		cfg.Runner.Jobs = n
	}
}

// Validate rejects configurations provisioning cannot run with.
func (c *Config) Validate() error {
	if c.WorkDir == "" {
		return fmt.Errorf("config: workdir required")
	}
	if len(c.PIN) < 4 || len(c.SOPIN) < 4 {
		return fmt.Errorf("config: pins must be at least 4 characters")
	}
	if len(c.Suites) == 0 {
		return fmt.Errorf("config: at least one suite required")
	}
	seen := make(map[string]bool, len(c.Suites))
	for _, s := range c.Suites {
		if s.Name == "" {
			return fmt.Errorf("config: unnamed suite")
		}
		if seen[s.Name] {
			return fmt.Errorf("config: duplicate suite %q", s.Name)
		}
		seen[s.Name] = true
		if len(s.ModuleCandidates) == 0 {
			return fmt.Errorf("config: suite %q has no module candidates", s.Name)
		}
	}
	return nil
}

// SuiteNames returns the configured suite names in order.
func (c *Config) SuiteNames() []string {
	names := make([]string, len(c.Suites))
	for i, s := range c.Suites {
		names[i] = s.Name
	}
	return names
}
