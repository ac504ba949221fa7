// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import "sort"

// Address is a virtual address in the crashed process.
type Address uint64

// Add returns a+delta.
func (a Address) Add(delta int64) Address { return Address(int64(a) + delta) }

// Sub returns a-b.
func (a Address) Sub(b Address) int64 { return int64(a) - int64(b) }

// MemoryDescriptor denotes a byte range copied from the crashed address
// space (spec.md §3).
type MemoryDescriptor struct {
	StartAddress Address
	Size         uint32
	RVA          uint32
}

// MemoryRegion is a borrowed view over bytes copied out of the crashed
// process. It is valid only for the Reader's lifetime (spec.md §5).
type MemoryRegion struct {
	Start Address
	Bytes []byte
}

// Contains reports whether a falls inside the region.
func (m MemoryRegion) Contains(a Address) bool {
	return a >= m.Start && a < m.Start.Add(int64(len(m.Bytes)))
}

// slice returns the n bytes of the region's view starting at address a,
// or false when the range isn't fully contained (Reader.ReadMemory turns
// that into an error).
func (m MemoryRegion) slice(a Address, n int) ([]byte, bool) {
	off := a.Sub(m.Start)
	if off < 0 || off+int64(n) > int64(len(m.Bytes)) {
		return nil, false
	}
	return m.Bytes[off : off+int64(n)], true
}

// memoryRanges is a set of regions sorted by start address, supporting O(log n) containment lookup. Overlap between two
// MemoryList/Memory64List entries is not itself a spec'd error case (the
// two lists are populated by the dumper, not adversarial input) so we
// simply keep insertion order on tie and let binary search pick
// whichever sorts first; spec.md only requires determinism for a given
// input, which sort.Search provides.
type memoryRanges struct {
	regions []MemoryRegion
}

func (m *memoryRanges) add(r MemoryRegion) {
	m.regions = append(m.regions, r)
}

func (m *memoryRanges) finish() {
	sort.SliceStable(m.regions, func(i, j int) bool {
		return m.regions[i].Start < m.regions[j].Start
	})
}

// find returns the region containing a, if any.
func (m *memoryRanges) find(a Address) (MemoryRegion, bool) {
	i := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].Start.Add(int64(len(m.regions[i].Bytes))) > a
	})
	if i == len(m.regions) {
		return MemoryRegion{}, false
	}
	r := m.regions[i]
	if !r.Contains(a) {
		return MemoryRegion{}, false
	}
	return r, true
}
