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

import "fmt"

// Registry accumulates named URIs (and other derived identifiers) in
// insertion order, so the exported environment is deterministic across
// runs. Not safe for concurrent use; provisioning is single-threaded.
type Registry struct {
	names  []string
	values map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{values: make(map[string]string)}
}

// Set records a named value. Names are exported verbatim as environment
// variables, so callers use SCREAMING_SNAKE prefixes. Setting the same name
// twice is a provisioning bug.
func (r *Registry) Set(name, value string) error {
	if _, ok := r.values[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.names = append(r.names, name)
	r.values[name] = value
	return nil
}

// Get returns the value for name and whether it was registered.
func (r *Registry) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	return len(r.names)
}

// Each calls fn for every registered name/value pair in insertion order.
func (r *Registry) Each(fn func(name, value string)) {
	for _, n := range r.names {
		fn(n, r.values[n])
	}
}

// RegisterKeyPair records the base, public and private URIs for a key pair
// under the given variable prefix, plus the two PIN-delivery variants of
// the base URI.
func (r *Registry) RegisterKeyPair(prefix string, obj Object, pin, pinFile string) error {
	entries := []struct{ suffix, value string }{
		{"BASEURI", obj.Base()},
		{"PUBURI", obj.Public()},
		{"PRIURI", obj.Private()},
		{"BASEURIWITHPINVALUE", obj.WithPINValue(pin)},
		{"BASEURIWITHPINSOURCE", obj.WithPINSource(pinFile)},
	}
	for _, e := range entries {
		if err := r.Set(prefix+e.suffix, e.value); err != nil {
			return err
		}
	}
	return nil
}

// RegisterCertified records the full URI set for a key pair that also has a
// certificate object stored under the same id/label.
func (r *Registry) RegisterCertified(prefix string, obj Object, pin, pinFile string) error {
	if err := r.RegisterKeyPair(prefix, obj, pin, pinFile); err != nil {
		return err
	}
	return r.Set(prefix+"CRTURI", obj.Cert())
}
