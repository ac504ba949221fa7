// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import "fmt"

func parseMemoryList(r *Reader, data []byte) (*memoryRanges, error) {
	c := newCursor(data)
	count, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("%w: memory list count", ErrTruncated)
	}
	const entrySize = 16 // {start_address u64, size u32, rva u32}
	if int64(count)*entrySize+4 > int64(len(data)) {
		return nil, fmt.Errorf("%w: memory list declares %d entries", ErrStreamOverrun, count)
	}
	mr := &memoryRanges{}
	for i := uint32(0); i < count; i++ {
		start, err := c.u64()
		if err != nil {
			return nil, err
		}
		size, err := c.u32()
		if err != nil {
			return nil, err
		}
		rva, err := c.u32()
		if err != nil {
			return nil, err
		}
		b := r.sliceAt(rva, size)
		if b == nil {
			continue
		}
		mr.add(MemoryRegion{Start: Address(start), Bytes: b})
	}
	mr.finish()
	return mr, nil
}

// parseMemory64List decodes the MINIDUMP_MEMORY64_LIST stream, whose
// regions are laid out contiguously starting at a single base RVA
// rather than each carrying its own RVA (used for large dumps).
func parseMemory64List(r *Reader, data []byte) (*memoryRanges, error) {
	c := newCursor(data)
	count, err := c.u64()
	if err != nil {
		return nil, fmt.Errorf("%w: memory64 list count", ErrTruncated)
	}
	baseRVA, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("%w: memory64 list base rva", ErrTruncated)
	}
	mr := &memoryRanges{}
	rva := baseRVA
	for i := uint64(0); i < count; i++ {
		start, err := c.u64()
		if err != nil {
			return nil, err
		}
		size, err := c.u64()
		if err != nil {
			return nil, err
		}
		if size > 1<<32 {
			return nil, fmt.Errorf("%w: memory64 region %d too large", ErrStreamOverrun, i)
		}
		b := r.sliceAt(rva, uint32(size))
		if b != nil {
			mr.add(MemoryRegion{Start: Address(start), Bytes: b})
		}
		rva += uint32(size)
	}
	mr.finish()
	return mr, nil
}
