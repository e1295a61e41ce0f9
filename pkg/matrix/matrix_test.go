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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrix_Validate(t *testing.T) {
	known := []string{"a", "b"}
	tests := []struct {
		name string
		m    Matrix
		ok   bool
	}{
		{"valid", Matrix{{Name: "t1", Suites: []string{"a"}}}, true},
		{"unnamed", Matrix{{Suites: []string{"a"}}}, false},
		{"duplicate", Matrix{
			{Name: "t1", Suites: []string{"a"}},
			{Name: "t1", Suites: []string{"b"}},
		}, false},
		{"no suites", Matrix{{Name: "t1"}}, false},
		{"unknown suite", Matrix{{Name: "t1", Suites: []string{"c"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate(known)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrBadMatrix)
			}
		})
	}
}

func TestMatrix_ForSuite(t *testing.T) {
	m := Matrix{
		{Name: "t1", Suites: []string{"a", "b"}},
		{Name: "t2", Suites: []string{"b"}},
		{Name: "t3", Suites: []string{"a"}},
	}
	var names []string
	for _, c := range m.ForSuite("a") {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"t1", "t3"}, names)
	assert.Empty(t, m.ForSuite("c"))
}

func TestMatrix_Declares(t *testing.T) {
	m := Matrix{{Name: "t1", Suites: []string{"a"}}}
	assert.True(t, m.Declares("t1", "a"))
	assert.False(t, m.Declares("t1", "b"))
	assert.False(t, m.Declares("t2", "a"))
}

func TestDefault_Table(t *testing.T) {
	require.NoError(t, Default.Validate(allSuites))

	// Edwards curves exist on exactly one backend
	for _, c := range Default {
		if c.Name == "edwards" {
			assert.Equal(t, []string{SuiteKryoptic}, c.Suites)
		}
	}

	// state-mutating tests are serial
	for _, name := range []string{"crosscert", "tls", "ca"} {
		found := false
		for _, c := range Default {
			if c.Name == name {
				found = true
				assert.False(t, c.Parallel, "%s must not be parallel-safe", name)
			}
		}
		assert.True(t, found, "expected case %s", name)
	}
}

func TestSanitizer_Preload(t *testing.T) {
	s := &Sanitizer{Allocator: "/usr/lib64/libasan.so.8", NoUnloadShim: "/opt/noload.so"}
	assert.Equal(t, "/usr/lib64/libasan.so.8:/opt/noload.so", s.Preload())

	// allocator always leads
	env := s.Env()
	assert.Equal(t, "/usr/lib64/libasan.so.8:/opt/noload.so", env["LD_PRELOAD"])
}

func TestSanitizer_Suppressions(t *testing.T) {
	s := &Sanitizer{Allocator: "/a.so", Suppressions: "/tmp/lsan.supp"}
	assert.Equal(t, "suppressions=/tmp/lsan.supp", s.Env()["LSAN_OPTIONS"])
}

func TestSanitizer_Scale(t *testing.T) {
	var nilSan *Sanitizer
	assert.Equal(t, time.Minute, nilSan.Scale(time.Minute))
	assert.Nil(t, nilSan.Env())
	assert.Empty(t, nilSan.Preload())

	s := &Sanitizer{TimeoutScale: 4}
	assert.Equal(t, 4*time.Minute, s.Scale(time.Minute))

	// floor of 2x for instrumented runs
	s = &Sanitizer{}
	assert.Equal(t, 2*time.Minute, s.Scale(time.Minute))
}

func TestReport_Counts(t *testing.T) {
	r := &Report{Results: []Result{
		{Status: StatusPass}, {Status: StatusPass},
		{Status: StatusFail}, {Status: StatusSkip},
	}}
	pass, fail, skip := r.Counts()
	assert.Equal(t, 2, pass)
	assert.Equal(t, 1, fail)
	assert.Equal(t, 1, skip)
	assert.True(t, r.Failed())

	assert.False(t, (&Report{Results: []Result{{Status: StatusSkip}}}).Failed())
}
