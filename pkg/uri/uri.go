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

// Package uri builds and parses PKCS#11 object-reference URIs (RFC 7512
// subset) for objects provisioned into a token, and maintains an ordered
// registry of named URIs for export to downstream test processes.
//
// Key-pair halves are referenced by id (type=public / type=private);
// certificates are referenced by label (object=...) because labels are
// unique per object class while ids are shared between a certificate and
// its key pair.
package uri

import (
	"fmt"
	"strings"
)

// Scheme is the URI scheme for PKCS#11 object references.
const Scheme = "pkcs11:"

// ObjectType identifies which half (or associated certificate) of a
// provisioned object a URI refers to.
type ObjectType string

const (
	TypePublic  ObjectType = "public"
	TypePrivate ObjectType = "private"
	TypeCert    ObjectType = "cert"
)

// Object describes a provisioned token object by its raw id bytes and
// human-readable label. The zero value is not usable; construct with
// NewObject so the id width is validated once.
type Object struct {
	id    []byte
	label string
}

// NewObject creates an object reference for the given id bytes and label.
// The id must be non-empty; labels may be empty for key-only objects.
func NewObject(id []byte, label string) (Object, error) {
	if len(id) == 0 {
		return Object{}, ErrEmptyID
	}
	return Object{id: append([]byte(nil), id...), label: label}, nil
}

// ID returns a copy of the raw object id bytes.
func (o Object) ID() []byte {
	return append([]byte(nil), o.id...)
}

// Label returns the object label.
func (o Object) Label() string {
	return o.label
}

// Base returns the untyped URI for the object: id only, no type attribute.
// The result is ambiguous across object classes and is intended for generic
// lookup by consumers that accept any matching object.
func (o Object) Base() string {
	return Scheme + "id=" + EncodeID(o.id)
}

// Public returns the type-qualified URI for the public-key half.
func (o Object) Public() string {
	return fmt.Sprintf("%stype=%s;id=%s", Scheme, TypePublic, EncodeID(o.id))
}

// Private returns the type-qualified URI for the private-key half.
func (o Object) Private() string {
	return fmt.Sprintf("%stype=%s;id=%s", Scheme, TypePrivate, EncodeID(o.id))
}

// Cert returns the certificate URI, addressed by label rather than id.
func (o Object) Cert() string {
	return fmt.Sprintf("%stype=%s;object=%s", Scheme, TypeCert, o.label)
}

// WithPINValue returns the base URI with the PIN embedded in the query.
func (o Object) WithPINValue(pin string) string {
	return o.Base() + "?pin-value=" + pin
}

// WithPINSource returns the base URI with the PIN delivered via a file path.
// The pin-source value always carries an explicit file: scheme prefix.
func (o Object) WithPINSource(path string) string {
	return o.Base() + "?pin-source=file:" + path
}

// EncodeID percent-encodes raw id bytes as %NN per byte, uppercase hex,
// byte order preserved.
func EncodeID(id []byte) string {
	var b strings.Builder
	b.Grow(len(id) * 3)
	for _, c := range id {
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

// DecodeID reverses EncodeID. It accepts lowercase hex digits but rejects
// any input that is not a whole sequence of %NN triplets.
func DecodeID(s string) ([]byte, error) {
	if len(s)%3 != 0 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	id := make([]byte, 0, len(s)/3)
	for i := 0; i < len(s); i += 3 {
		if s[i] != '%' {
			return nil, fmt.Errorf("%w: %q", ErrMalformedID, s)
		}
		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedID, s)
		}
		id = append(id, hi<<4|lo)
	}
	return id, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
