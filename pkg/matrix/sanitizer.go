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

package matrix

import (
	"strings"
	"time"
)

// Sanitizer configures memory-sanitizer process wrapping. When active,
// every test process is started with the instrumented allocator preloaded
// ahead of all other dynamic dependencies, followed by a shim that keeps
// dynamically loaded libraries resident so leak reports can still resolve
// symbols from modules the system under test would otherwise unload.
//
// A nil *Sanitizer means tests run unwrapped.
type Sanitizer struct {
	// Allocator is the instrumented allocator runtime (e.g. libasan).
	Allocator string `yaml:"allocator"`

	// NoUnloadShim prevents dlclose from evicting loaded modules.
	NoUnloadShim string `yaml:"no_unload_shim"`

	// Suppressions is an optional leak-suppression file.
	Suppressions string `yaml:"suppressions"`

	// TimeoutScale multiplies the per-test timeout, since instrumented
	// code runs slower. Values below 2 are raised to 2.
	TimeoutScale int `yaml:"timeout_scale"`
}

// Preload composes the LD_PRELOAD value. The allocator must lead.
func (s *Sanitizer) Preload() string {
	if s == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	if s.Allocator != "" {
		parts = append(parts, s.Allocator)
	}
	if s.NoUnloadShim != "" {
		parts = append(parts, s.NoUnloadShim)
	}
	return strings.Join(parts, ":")
}

// Env returns the wrapper environment applied to every test process.
func (s *Sanitizer) Env() map[string]string {
	if s == nil {
		return nil
	}
	env := make(map[string]string, 2)
	if preload := s.Preload(); preload != "" {
		env["LD_PRELOAD"] = preload
	}
	if s.Suppressions != "" {
		env["LSAN_OPTIONS"] = "suppressions=" + s.Suppressions
	}
	return env
}

// Scale stretches a base timeout for instrumented execution.
func (s *Sanitizer) Scale(d time.Duration) time.Duration {
	if s == nil {
		return d
	}
	scale := s.TimeoutScale
	if scale < 2 {
		scale = 2
	}
	return d * time.Duration(scale)
}
