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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"softokn", "softhsm", "kryoptic"}, cfg.SuiteNames())
	assert.Equal(t, "pkcs11-tool", cfg.Tools.P11)
	assert.Equal(t, 5*time.Minute, cfg.Runner.Timeout)
	assert.Nil(t, cfg.Sanitizer)

	// Edwards curves on exactly one backend
	edwards := 0
	for _, s := range cfg.Suites {
		if s.SupportsEdwards {
			edwards++
			assert.Equal(t, "kryoptic", s.Name)
		}
	}
	assert.Equal(t, 1, edwards)
}

func TestDefault_ConfEnvSuitesRenderStoreConf(t *testing.T) {
	// Every suite located through a config env var must also render a
	// store config for that var to point at.
	for _, sc := range Default().Suites {
		if sc.ConfEnv == "" {
			continue
		}
		assert.NotEmptyf(t, sc.StoreConfName,
			"suite %s has %s but no store config", sc.Name, sc.ConfEnv)
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workdir: /var/tmp/harness
pin: "87654321"
runner:
  test_dir: /opt/tests
  timeout: 30s
  jobs: 2
sanitizer:
  allocator: /usr/lib64/libasan.so.8
  no_unload_shim: /opt/noload.so
  timeout_scale: 4
suites:
  - name: softhsm
    module_candidates: ["/usr/lib/softhsm/libsofthsm2.so"]
    store_conf_name: softhsm2.conf
    conf_env: SOFTHSM2_CONF
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/tmp/harness", cfg.WorkDir)
	assert.Equal(t, "87654321", cfg.PIN)
	assert.Equal(t, 30*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, 2, cfg.Runner.Jobs)
	require.NotNil(t, cfg.Sanitizer)
	assert.Equal(t, 4, cfg.Sanitizer.TimeoutScale)
	assert.Equal(t, []string{"softhsm"}, cfg.SuiteNames())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TOKENHARNESS_PIN", "11112222")
	t.Setenv("TOKENHARNESS_WORKDIR", "/env/override")
	t.Setenv("TOKENHARNESS_JOBS", "8")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "11112222", cfg.PIN)
	assert.Equal(t, "/env/override", cfg.WorkDir)
	assert.Equal(t, 8, cfg.Runner.Jobs)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty workdir", func(c *Config) { c.WorkDir = "" }},
		{"short pin", func(c *Config) { c.PIN = "12" }},
		{"no suites", func(c *Config) { c.Suites = nil }},
		{"unnamed suite", func(c *Config) { c.Suites[0].Name = "" }},
		{"duplicate suite", func(c *Config) { c.Suites[1].Name = c.Suites[0].Name }},
		{"no candidates", func(c *Config) { c.Suites[0].ModuleCandidates = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
