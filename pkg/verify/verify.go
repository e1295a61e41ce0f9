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

//go:build pkcs11

package verify

import (
	"errors"
	"fmt"

	"github.com/miekg/pkcs11"

	"github.com/jeremyhahn/go-tokenharness/pkg/uri"
)

var (
	// ErrTokenNotFound is returned when no slot carries the token label.
	ErrTokenNotFound = errors.New("verify: token not found")

	// ErrUnresolvable is returned by CheckURIs when at least one URI does
	// not resolve to an object.
	ErrUnresolvable = errors.New("verify: unresolvable object reference")
)

// Problem describes one URI that failed to resolve.
type Problem struct {
	URI    string
	Reason string
}

// Checker resolves object references against one token.
type Checker struct {
	Module string
	Label  string
	PIN    string
}

// CheckURIs resolves every URI with a raw object search and returns the
// references that do not resolve. A base (untyped) URI resolves if any
// object carries its id. The error is ErrUnresolvable when problems exist.
func (c *Checker) CheckURIs(uris []string) ([]Problem, error) {
	ctx := pkcs11.New(c.Module)
	if ctx == nil {
		return nil, fmt.Errorf("verify: cannot load module %s", c.Module)
	}
	defer ctx.Destroy()
	if err := ctx.Initialize(); err != nil {
		return nil, fmt.Errorf("verify: initialize: %w", err)
	}
	defer ctx.Finalize()

	session, err := c.openSession(ctx)
	if err != nil {
		return nil, err
	}
	defer ctx.CloseSession(session)

	var problems []Problem
	for _, raw := range uris {
		parsed, err := uri.Parse(raw)
		if err != nil {
			problems = append(problems, Problem{URI: raw, Reason: err.Error()})
			continue
		}
		found, err := c.find(ctx, session, parsed)
		if err != nil {
			return nil, err
		}
		if !found {
			problems = append(problems, Problem{URI: raw, Reason: "no matching object"})
		}
	}
	if len(problems) > 0 {
		return problems, fmt.Errorf("%w: %d of %d", ErrUnresolvable, len(problems), len(uris))
	}
	return nil, nil
}

// Resolves reports whether a single URI resolves to at least one object.
func (c *Checker) Resolves(raw string) (bool, error) {
	problems, err := c.CheckURIs([]string{raw})
	if errors.Is(err, ErrUnresolvable) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(problems) == 0, nil
}

func (c *Checker) openSession(ctx *pkcs11.Ctx) (pkcs11.SessionHandle, error) {
	slots, err := ctx.GetSlotList(true)
	if err != nil {
		return 0, fmt.Errorf("verify: slot list: %w", err)
	}
	for _, slot := range slots {
		info, err := ctx.GetTokenInfo(slot)
		if err != nil {
			continue
		}
		if info.Label != c.Label {
			continue
		}
		session, err := ctx.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION)
		if err != nil {
			return 0, fmt.Errorf("verify: open session: %w", err)
		}
		if err := ctx.Login(session, pkcs11.CKU_USER, c.PIN); err != nil {
			ctx.CloseSession(session)
			return 0, fmt.Errorf("verify: login: %w", err)
		}
		return session, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrTokenNotFound, c.Label)
}

// find searches for an object matching the parsed reference attributes.
func (c *Checker) find(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, p *uri.Parsed) (bool, error) {
	var attrs []*pkcs11.Attribute
	switch p.Type {
	case uri.TypePublic:
		attrs = append(attrs, pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY))
	case uri.TypePrivate:
		attrs = append(attrs, pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY))
	case uri.TypeCert:
		attrs = append(attrs, pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_CERTIFICATE))
	}
	if len(p.ID) > 0 {
		attrs = append(attrs, pkcs11.NewAttribute(pkcs11.CKA_ID, p.ID))
	}
	if p.Object != "" {
		attrs = append(attrs, pkcs11.NewAttribute(pkcs11.CKA_LABEL, p.Object))
	}
	if len(attrs) == 0 {
		return false, nil
	}

	if err := ctx.FindObjectsInit(session, attrs); err != nil {
		return false, fmt.Errorf("verify: find init: %w", err)
	}
	handles, _, err := ctx.FindObjects(session, 1)
	if ferr := ctx.FindObjectsFinal(session); err == nil {
		err = ferr
	}
	if err != nil {
		return false, fmt.Errorf("verify: find: %w", err)
	}
	return len(handles) > 0, nil
}
