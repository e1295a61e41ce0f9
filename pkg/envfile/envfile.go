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

// Package envfile snapshots provisioning state into a sourceable shell
// file. Test processes only ever read this snapshot; nothing downstream
// re-derives paths, URIs or credentials.
package envfile

import (
	"fmt"
	"os"
	"strings"

	"github.com/jeremyhahn/go-tokenharness/pkg/uri"
)

// File is an ordered set of environment variable assignments.
type File struct {
	runID  string
	names  []string
	values map[string]string
}

// New creates an empty environment file for the given run.
func New(runID string) *File {
	return &File{runID: runID, values: make(map[string]string)}
}

// Set records a variable. Later Set calls for the same name overwrite the
// value but keep the original position.
func (f *File) Set(name, value string) {
	if _, ok := f.values[name]; !ok {
		f.names = append(f.names, name)
	}
	f.values[name] = value
}

// Get returns a recorded value and whether it exists.
func (f *File) Get(name string) (string, bool) {
	v, ok := f.values[name]
	return v, ok
}

// Section inserts a comment line before subsequent variables, grouping the
// output by provisioning phase.
func (f *File) Section(title string) {
	f.names = append(f.names, "# "+title)
}

// SetRegistry copies every registered URI into the file in registry order.
func (f *File) SetRegistry(r *uri.Registry) {
	r.Each(f.Set)
}

// Render produces the sourceable file content.
func (f *File) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# generated by tokenharness (run %s); source, do not edit\n", f.runID)
	for _, name := range f.names {
		if strings.HasPrefix(name, "# ") {
			b.WriteString("\n" + name + "\n")
			continue
		}
		fmt.Fprintf(&b, "export %s=%s\n", name, shellQuote(f.values[name]))
	}
	return b.String()
}

// Write renders the file to path. The file carries the PIN, so it is not
// world-readable.
func (f *File) Write(path string) error {
	if err := os.WriteFile(path, []byte(f.Render()), 0o640); err != nil {
		return fmt.Errorf("write environment file: %w", err)
	}
	return nil
}

// shellQuote wraps a value in double quotes, escaping the characters the
// shell expands inside them.
func shellQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
