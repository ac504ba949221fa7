// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package module

import "testing"

func TestModuleAtAddress(t *testing.T) {
	r := NewRegistry([]*Module{
		{Name: "a.out", BaseAddress: 0x1000, Size: 0x1000},
		{Name: "libc.so", BaseAddress: 0x3000, Size: 0x500},
	})

	tests := []struct {
		addr uint64
		want string
	}{
		{0x1000, "a.out"},  // range start, inclusive
		{0x1fff, "a.out"},  // last byte in range
		{0x2000, ""},       // one past end, exclusive
		{0x3000, "libc.so"},
		{0x3500, ""},       // one past libc.so's end
		{0, ""},
	}
	for _, tt := range tests {
		m := r.ModuleAtAddress(tt.addr)
		got := ""
		if m != nil {
			got = m.Name
		}
		if got != tt.want {
			t.Errorf("ModuleAtAddress(%#x) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestModuleAtAddressEmptyRegistry(t *testing.T) {
	r := NewRegistry(nil)
	if m := r.ModuleAtAddress(0x1000); m != nil {
		t.Errorf("ModuleAtAddress on empty registry = %+v, want nil", m)
	}
}

func TestOverlapDetectionKeepsFirstInserted(t *testing.T) {
	first := &Module{Name: "first", BaseAddress: 0x1000, Size: 0x2000}  // [0x1000, 0x3000)
	second := &Module{Name: "second", BaseAddress: 0x2000, Size: 0x1000} // [0x2000, 0x3000), overlaps first

	r := NewRegistry([]*Module{first, second})

	if len(r.Overlaps) != 1 {
		t.Fatalf("len(Overlaps) = %d, want 1: %+v", len(r.Overlaps), r.Overlaps)
	}
	if r.Overlaps[0].First != first || r.Overlaps[0].Second != second {
		t.Errorf("Overlaps[0] = %+v, want {first, second}", r.Overlaps[0])
	}

	// The first-inserted module wins address lookups in the overlap.
	if got := r.ModuleAtAddress(0x2500); got != first {
		t.Errorf("ModuleAtAddress(0x2500) = %v, want first (load-order precedence)", got.Name)
	}
}

func TestMainModuleAndSequence(t *testing.T) {
	m0 := &Module{Name: "main", BaseAddress: 0x1000, Size: 0x1000}
	m1 := &Module{Name: "libc.so", BaseAddress: 0x3000, Size: 0x1000}
	r := NewRegistry([]*Module{m0, m1})

	if r.MainModule() != m0 {
		t.Errorf("MainModule() = %v, want m0", r.MainModule())
	}
	if r.ModuleCount() != 2 {
		t.Errorf("ModuleCount() = %d, want 2", r.ModuleCount())
	}
	got, err := r.ModuleAtSequence(1)
	if err != nil || got != m1 {
		t.Errorf("ModuleAtSequence(1) = %v, %v, want m1, nil", got, err)
	}
	if _, err := r.ModuleAtSequence(5); err == nil {
		t.Error("ModuleAtSequence(5) = nil error, want out-of-range error")
	}
}

func TestMainModuleEmptyRegistry(t *testing.T) {
	r := NewRegistry(nil)
	if r.MainModule() != nil {
		t.Errorf("MainModule() on empty registry = %v, want nil", r.MainModule())
	}
}

func TestModuleEnd(t *testing.T) {
	m := &Module{BaseAddress: 0x1000, Size: 0x500}
	if got, want := m.End(), uint64(0x1500); got != want {
		t.Errorf("End() = %#x, want %#x", got, want)
	}
}
