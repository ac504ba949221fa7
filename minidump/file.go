// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// File is a Reader backed by a memory-mapped dump file. The teacher's
// core.Process left its file-mapping helper unimplemented ("file
// mapping is not implemented yet"); this completes exactly that stub
// using the mmap library the wider example corpus already depends on
// (see SPEC_FULL.md "Domain stack").
type File struct {
	*Reader
	f *os.File
	m mmap.MMap
}

// OpenFile maps path into memory and parses it as a minidump. The
// returned File must be closed to release the mapping; all views
// derived from its Reader become invalid once Close returns (spec.md
// §5 "Ownership").
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("minidump: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("minidump: %w", err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, ErrTruncated
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("minidump: mmap %s: %w", path, err)
	}
	r, err := Open([]byte(m))
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}
	return &File{Reader: r, f: f, m: m}, nil
}

// Close releases the memory mapping and the underlying file descriptor.
// Any MemoryRegion, Stream, or other byte-slice view obtained from this
// File's Reader must not be used after Close.
func (d *File) Close() error {
	uerr := d.m.Unmap()
	cerr := d.f.Close()
	if uerr != nil {
		return uerr
	}
	return cerr
}
