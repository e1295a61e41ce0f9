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
	"fmt"
	"strings"
)

// Subject holds the immutable base subject fields shared by every
// certificate in one provisioning run. Per-issuance fields (common name,
// serial, CA marker, organization) are composed through an overlay at each
// call; the base is never edited in place.
type Subject struct {
	OrgUnit string
	Country string
}

// overlay carries the per-issuance fields composed over the base subject.
type overlay struct {
	cn     string
	serial int
	isCA   bool
	org    string
}

// renderTemplate produces the certificate template file consumed by the
// external certificate tool. Field order is fixed so the output is
// byte-stable for a given input.
func renderTemplate(base Subject, o overlay) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cn = %q\n", o.cn)
	if o.org != "" {
		fmt.Fprintf(&b, "organization = %q\n", o.org)
	}
	if base.OrgUnit != "" {
		fmt.Fprintf(&b, "unit = %q\n", base.OrgUnit)
	}
	if base.Country != "" {
		fmt.Fprintf(&b, "country = %s\n", base.Country)
	}
	fmt.Fprintf(&b, "serial = %d\n", o.serial)
	b.WriteString("expiration_days = 365\n")
	if o.isCA {
		b.WriteString("ca\n")
		b.WriteString("cert_signing_key\n")
	} else {
		b.WriteString("signing_key\n")
		b.WriteString("encryption_key\n")
	}
	return b.String()
}
