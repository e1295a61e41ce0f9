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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeID(t *testing.T) {
	tests := []struct {
		name string
		id   []byte
		want string
	}{
		{"two bytes zero padded", []byte{0x00, 0x01}, "%00%01"},
		{"single byte", []byte{0xAB}, "%AB"},
		{"uppercase hex", []byte{0xde, 0xad, 0xbe, 0xef}, "%DE%AD%BE%EF"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeID(tt.id))
		})
	}
}

func TestDecodeID_RoundTrip(t *testing.T) {
	ids := [][]byte{
		{0x00, 0x01},
		{0x00, 0x02},
		{0xFF, 0xFE},
		{0x01, 0x02, 0x03, 0x04},
	}
	for _, id := range ids {
		decoded, err := DecodeID(EncodeID(id))
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
}

func TestDecodeID_Lowercase(t *testing.T) {
	decoded, err := DecodeID("%ab%cd")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0xCD}, decoded)
}

func TestDecodeID_Malformed(t *testing.T) {
	for _, s := range []string{"%0", "00%01", "%GG", "%00x01", "%00%"} {
		_, err := DecodeID(s)
		assert.ErrorIs(t, err, ErrMalformedID, "input %q", s)
	}
}

func TestObject_URIs(t *testing.T) {
	obj, err := NewObject([]byte{0x00, 0x01}, "testCert")
	require.NoError(t, err)

	assert.Equal(t, "pkcs11:id=%00%01", obj.Base())
	assert.Equal(t, "pkcs11:type=public;id=%00%01", obj.Public())
	assert.Equal(t, "pkcs11:type=private;id=%00%01", obj.Private())
	assert.Equal(t, "pkcs11:type=cert;object=testCert", obj.Cert())
	assert.Equal(t, "pkcs11:id=%00%01?pin-value=12345678", obj.WithPINValue("12345678"))
	assert.Equal(t, "pkcs11:id=%00%01?pin-source=file:/tmp/pinfile",
		obj.WithPINSource("/tmp/pinfile"))
}

func TestNewObject_EmptyID(t *testing.T) {
	_, err := NewObject(nil, "label")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestParse(t *testing.T) {
	p, err := Parse("pkcs11:type=private;id=%00%01")
	require.NoError(t, err)
	assert.Equal(t, TypePrivate, p.Type)
	assert.Equal(t, []byte{0x00, 0x01}, p.ID)
	assert.Empty(t, p.Object)

	p, err = Parse("pkcs11:type=cert;object=testCert")
	require.NoError(t, err)
	assert.Equal(t, TypeCert, p.Type)
	assert.Nil(t, p.ID)
	assert.Equal(t, "testCert", p.Object)

	p, err = Parse("pkcs11:id=%00%01?pin-value=12345678")
	require.NoError(t, err)
	assert.Equal(t, ObjectType(""), p.Type)
	assert.Equal(t, "12345678", p.PINValue)

	p, err = Parse("pkcs11:id=%00%01?pin-source=file:/run/pin")
	require.NoError(t, err)
	assert.Equal(t, "/run/pin", p.PINSource)

	// pin-source without the file: prefix is tolerated on parse
	p, err = Parse("pkcs11:id=%00%01?pin-source=/run/pin")
	require.NoError(t, err)
	assert.Equal(t, "/run/pin", p.PINSource)
}

func TestParse_NotPKCS11(t *testing.T) {
	_, err := Parse("https://example.com")
	assert.ErrorIs(t, err, ErrNotPKCS11)
}

func TestParse_BadID(t *testing.T) {
	_, err := Parse("pkcs11:id=0001")
	assert.ErrorIs(t, err, ErrMalformedID)
}

func TestRegistry_Order(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Set("B", "2"))
	require.NoError(t, r.Set("A", "1"))
	require.NoError(t, r.Set("C", "3"))

	var names []string
	r.Each(func(name, value string) {
		names = append(names, name)
	})
	assert.Equal(t, []string{"B", "A", "C"}, names)
}

func TestRegistry_Duplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Set("X", "1"))
	assert.ErrorIs(t, r.Set("X", "2"), ErrDuplicateName)
}

func TestRegistry_RegisterCertified(t *testing.T) {
	obj, err := NewObject([]byte{0x00, 0x01}, "testCert")
	require.NoError(t, err)

	r := NewRegistry()
	require.NoError(t, r.RegisterCertified("TST", obj, "12345678", "/tmp/pin"))

	got, ok := r.Get("TSTBASEURI")
	require.True(t, ok)
	assert.Equal(t, "pkcs11:id=%00%01", got)

	got, ok = r.Get("TSTCRTURI")
	require.True(t, ok)
	assert.Equal(t, "pkcs11:type=cert;object=testCert", got)

	got, ok = r.Get("TSTBASEURIWITHPINSOURCE")
	require.True(t, ok)
	assert.Equal(t, "pkcs11:id=%00%01?pin-source=file:/tmp/pin", got)

	// key-pair registration must not leak a cert URI
	obj2, err := NewObject([]byte{0x00, 0x02}, "noCert")
	require.NoError(t, err)
	require.NoError(t, r.RegisterKeyPair("EXP", obj2, "12345678", "/tmp/pin"))
	_, ok = r.Get("EXPCRTURI")
	assert.False(t, ok)
}
