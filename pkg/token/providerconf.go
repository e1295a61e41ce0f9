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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

// ProviderConf describes the substitutions made into the provider
// configuration template consumed by the crypto provider under test.
type ProviderConf struct {
	// Module is the resolved backend library path.
	Module string

	// Dir is the suite working directory.
	Dir string

	// PINFile is the path to the user PIN file.
	PINFile string

	// ShlibExt is the platform shared-library extension without the dot.
	ShlibExt string

	// Quirks are backend-specific provider toggles, one directive per
	// entry, emitted verbatim.
	Quirks []string
}

const defaultProviderTemplate = `# generated by tokenharness; do not edit
[provider]
module = {{.Module}}
pkcs11-module-path = {{.Module}}
pkcs11-module-cache-pins = cache
pkcs11-module-token-pin = file:{{.PINFile}}
pkcs11-module-shlib-ext = {{.ShlibExt}}
workdir = {{.Dir}}
{{- range .Quirks}}
pkcs11-module-quirks = {{.}}
{{- end}}
`

// ShlibExt returns the shared-library extension for the current platform.
func ShlibExt() string {
	if runtime.GOOS == "darwin" {
		return "dylib"
	}
	return "so"
}

// WriteProviderConf renders the provider configuration for tok into
// tok.Dir and returns the written path. An empty tmpl selects the built-in
// template.
func WriteProviderConf(tok *Token, quirks []string, tmpl string) (string, error) {
	if tmpl == "" {
		tmpl = defaultProviderTemplate
	}
	t, err := template.New("providerconf").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse provider config template: %w", err)
	}

	conf := ProviderConf{
		Module:   tok.Module,
		Dir:      tok.Dir,
		PINFile:  tok.PINFile,
		ShlibExt: ShlibExt(),
		Quirks:   quirks,
	}
	var b strings.Builder
	if err := t.Execute(&b, conf); err != nil {
		return "", fmt.Errorf("render provider config: %w", err)
	}

	path := filepath.Join(tok.Dir, "provider.conf")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write provider config: %w", err)
	}
	return path, nil
}
