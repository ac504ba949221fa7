// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package module holds the loaded-module registry: an ordered,
// range-indexed set of modules with debug identifiers (spec.md §4.2).
package module

import (
	"fmt"
	"sort"
)

// FixedFileInfo mirrors the subset of a module's version resource the
// spec cares about (spec.md §3 "Module").
type FixedFileInfo struct {
	FileVersionMS, FileVersionLS uint32
	ProductVersionMS, ProductVersionLS uint32
}

// Module is one loaded executable or shared library image.
type Module struct {
	BaseAddress uint64
	Size        uint32
	Checksum    uint32
	Timestamp   uint32
	Name        string
	Version     FixedFileInfo
	DebugFile       string
	DebugIdentifier string
	CodeIdentifier  string

	// OS/Arch are filled in from the symbol file's MODULE record by
	// procstate.Assemble, for each module a walked stack touched whose
	// symbol file loaded, mirroring breakpad's ModuleInfo record
	// (spec.md expansion, §3 "Supplemented features"). DebugIdentifier
	// already serves as the unique key a ModuleInfo's id field would,
	// so no separate ID field is carried.
	OS   string
	Arch string
}

// End returns the address just past the module's mapped range.
func (m *Module) End() uint64 { return m.BaseAddress + uint64(m.Size) }

// Overlap records two modules whose [base, base+size) ranges intersect.
// Overlaps are diagnosed, never silently dropped (spec.md §3, §8).
type Overlap struct {
	First, Second *Module
}

// Registry is the ordered sequence of modules plus an auxiliary
// interval index for O(log n) address lookup (spec.md §4.2). The
// teacher's core.Process uses a four-level radix page table sized for
// full process address spaces; a module registry has at most a few
// hundred entries; a sorted slice with binary search gives the same
// asymptotic lookup at a fraction of the complexity.
type Registry struct {
	modules  []*Module // load order, for MainModule/ModuleAtSequence
	byStart  []*Module // sorted by BaseAddress
	Overlaps []Overlap
}

// NewRegistry builds a Registry from modules in load order. Overlapping
// ranges are detected and recorded but do not abort construction
// (spec.md §3 "violations are reported but do not abort parsing").
func NewRegistry(modules []*Module) *Registry {
	r := &Registry{modules: modules}
	r.byStart = make([]*Module, 0, len(modules))
	for _, m := range modules {
		r.insert(m)
	}
	return r
}

func (r *Registry) insert(m *Module) {
	i := sort.Search(len(r.byStart), func(i int) bool {
		return r.byStart[i].BaseAddress >= m.BaseAddress
	})
	// Check neighbors for overlap before inserting.
	if i > 0 {
		prev := r.byStart[i-1]
		if prev.End() > m.BaseAddress {
			r.Overlaps = append(r.Overlaps, Overlap{First: prev, Second: m})
		}
	}
	if i < len(r.byStart) {
		next := r.byStart[i]
		if m.End() > next.BaseAddress {
			r.Overlaps = append(r.Overlaps, Overlap{First: m, Second: next})
		}
	}
	r.byStart = append(r.byStart, nil)
	copy(r.byStart[i+1:], r.byStart[i:])
	r.byStart[i] = m
}

// MainModule returns the first module by load order, or nil if the
// registry is empty.
func (r *Registry) MainModule() *Module {
	if len(r.modules) == 0 {
		return nil
	}
	return r.modules[0]
}

// ModuleAtAddress returns the module containing addr, if any. When two
// modules' ranges overlap at addr, the first-inserted module (by load
// order) wins, per the Open Question resolution in spec.md §9. Without
// overlaps the lookup is a binary search; once any overlap is recorded
// it scans the modules in load order.
func (r *Registry) ModuleAtAddress(addr uint64) *Module {
	i := sort.Search(len(r.byStart), func(i int) bool {
		return r.byStart[i].BaseAddress > addr
	})
	if len(r.Overlaps) == 0 {
		if i > 0 && addr < r.byStart[i-1].End() {
			return r.byStart[i-1]
		}
		return nil
	}
	for _, m := range r.modules {
		if addr >= m.BaseAddress && addr < m.End() {
			return m
		}
	}
	return nil
}

// ModuleAtSequence returns the i'th module in load order.
func (r *Registry) ModuleAtSequence(i int) (*Module, error) {
	if i < 0 || i >= len(r.modules) {
		return nil, fmt.Errorf("module: sequence index %d out of range [0,%d)", i, len(r.modules))
	}
	return r.modules[i], nil
}

// ModuleCount returns the number of modules in the registry.
func (r *Registry) ModuleCount() int { return len(r.modules) }

// Modules returns all modules in load order. The returned slice must
// not be mutated by the caller.
func (r *Registry) Modules() []*Module { return r.modules }
