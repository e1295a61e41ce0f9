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

package uri

import (
	"fmt"
	"strings"
)

// Parsed holds the attributes recognized from a pkcs11: object URI.
// Attributes the harness never emits are ignored rather than rejected.
type Parsed struct {
	// Type is the object class, empty for base (untyped) URIs.
	Type ObjectType

	// ID is the decoded raw id bytes, nil when the URI is label-addressed.
	ID []byte

	// Object is the label, set for label-addressed (certificate) URIs.
	Object string

	// PINValue is the literal PIN from a pin-value query attribute.
	PINValue string

	// PINSource is the PIN file path from a pin-source query attribute,
	// with any file: prefix stripped.
	PINSource string
}

// Parse decodes a pkcs11: object URI produced by this package. A pin-source
// value without a file: prefix is accepted for compatibility, but emitters
// in this package always include the prefix.
func Parse(s string) (*Parsed, error) {
	if !strings.HasPrefix(s, Scheme) {
		return nil, fmt.Errorf("%w: %q", ErrNotPKCS11, s)
	}
	rest := s[len(Scheme):]

	var query string
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest, query = rest[:i], rest[i+1:]
	}

	p := &Parsed{}
	for _, attr := range strings.Split(rest, ";") {
		name, value, found := strings.Cut(attr, "=")
		if !found {
			continue
		}
		switch name {
		case "type":
			p.Type = ObjectType(value)
		case "id":
			id, err := DecodeID(value)
			if err != nil {
				return nil, err
			}
			p.ID = id
		case "object":
			p.Object = value
		}
	}
	for _, attr := range strings.Split(query, "&") {
		name, value, found := strings.Cut(attr, "=")
		if !found {
			continue
		}
		switch name {
		case "pin-value":
			p.PINValue = value
		case "pin-source":
			p.PINSource = strings.TrimPrefix(value, "file:")
		}
	}
	return p, nil
}
