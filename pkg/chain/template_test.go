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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate_CA(t *testing.T) {
	out := renderTemplate(Subject{OrgUnit: "Testing", Country: "US"},
		overlay{cn: "Test CA", serial: 1, isCA: true})

	assert.Contains(t, out, "cn = \"Test CA\"\n")
	assert.Contains(t, out, "serial = 1\n")
	assert.Contains(t, out, "\nca\n")
	assert.Contains(t, out, "cert_signing_key\n")
	assert.NotContains(t, out, "organization")
}

func TestRenderTemplate_LeafWithOrg(t *testing.T) {
	out := renderTemplate(Subject{},
		overlay{cn: "localhost", serial: 3, org: "Example Org"})

	assert.Contains(t, out, "organization = \"Example Org\"\n")
	assert.Contains(t, out, "serial = 3\n")
	assert.NotContains(t, out, "\nca\n")
	assert.NotContains(t, out, "cert_signing_key")
}

func TestRenderTemplate_Deterministic(t *testing.T) {
	o := overlay{cn: "x", serial: 2}
	s := Subject{OrgUnit: "ou", Country: "US"}
	assert.Equal(t, renderTemplate(s, o), renderTemplate(s, o))

	// cn always leads so tooling diffs are stable
	assert.True(t, strings.HasPrefix(renderTemplate(s, o), "cn = "))
}
