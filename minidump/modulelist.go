// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import (
	"fmt"

	"github.com/minidebug/minidump/module"
)

const moduleRecordSize = 108 // fixed portion of MINIDUMP_MODULE, excluding the VS_FIXEDFILEINFO's variable CV/misc records

func parseModuleList(r *Reader, data []byte) ([]*module.Module, error) {
	c := newCursor(data)
	count, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("%w: module list count", ErrTruncated)
	}
	if int64(count)*moduleRecordSize+4 > int64(len(data)) {
		return nil, fmt.Errorf("%w: module list declares %d entries", ErrStreamOverrun, count)
	}
	mods := make([]*module.Module, 0, count)
	for i := uint32(0); i < count; i++ {
		m, err := parseModuleRecord(r, c)
		if err != nil {
			return nil, fmt.Errorf("module %d: %w", i, err)
		}
		mods = append(mods, m)
	}
	return mods, nil
}

func parseModuleRecord(r *Reader, c *cursor) (*module.Module, error) {
	m := &module.Module{}
	base, err := c.u64()
	if err != nil {
		return nil, err
	}
	m.BaseAddress = base
	if m.Size, err = c.u32(); err != nil {
		return nil, err
	}
	if m.Checksum, err = c.u32(); err != nil {
		return nil, err
	}
	if m.Timestamp, err = c.u32(); err != nil {
		return nil, err
	}
	moduleNameRVA, err := c.u32()
	if err != nil {
		return nil, err
	}
	// VS_FIXEDFILEINFO (13 x u32 fields).
	var ffi [13]uint32
	for i := range ffi {
		if ffi[i], err = c.u32(); err != nil {
			return nil, err
		}
	}
	m.Version.FileVersionMS = ffi[2]
	m.Version.FileVersionLS = ffi[3]
	m.Version.ProductVersionMS = ffi[4]
	m.Version.ProductVersionLS = ffi[5]
	// CvRecord and MiscRecord location descriptors (2 x {size,rva}), plus
	// two reserved u64s.
	var cvSize, cvRVA, miscSize, miscRVA uint32
	if cvSize, err = c.u32(); err != nil {
		return nil, err
	}
	if cvRVA, err = c.u32(); err != nil {
		return nil, err
	}
	if miscSize, err = c.u32(); err != nil {
		return nil, err
	}
	if miscRVA, err = c.u32(); err != nil {
		return nil, err
	}
	if err = c.skip(16); err != nil { // Reserved0, Reserved1
		return nil, err
	}

	if name, err := r.readUTF16StringAt(moduleNameRVA); err == nil {
		m.Name = name
	}
	if cvSize > 0 {
		m.DebugFile, m.DebugIdentifier = parseCodeViewRecord(r.sliceAt(cvRVA, cvSize))
	}
	if miscSize > 0 {
		m.CodeIdentifier = fmt.Sprintf("%x-%x", m.Timestamp, m.Size)
		_ = miscRVA // MISC_INFO record's contents aren't consumed beyond presence.
	}
	return m, nil
}

// parseCodeViewRecord extracts {debug_file, debug_identifier} from a
// CodeView debug record. Only the common "RSDS" (PDB 7.0 / breakpad's
// equivalent GUID+age scheme) signature is decoded; other signatures
// are recorded with an empty identifier rather than failing the module.
func parseCodeViewRecord(b []byte) (debugFile, debugIdentifier string) {
	if len(b) < 4 {
		return "", ""
	}
	sig := string(b[:4])
	if sig != "RSDS" || len(b) < 24 {
		return "", ""
	}
	guid := b[4:20]
	age := uint32(b[20]) | uint32(b[21])<<8 | uint32(b[22])<<16 | uint32(b[23])<<24
	name, _ := cStringAt(b, 24)
	id := fmt.Sprintf("%08X%04X%04X%02X%02X%02X%02X%02X%02X%02X%02X%X",
		be32(guid[0:4]), be16(guid[4:6]), be16(guid[6:8]),
		guid[8], guid[9], guid[10], guid[11], guid[12], guid[13], guid[14], guid[15], age)
	return name, id
}

func be32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func be16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func cStringAt(b []byte, off int) (string, bool) {
	if off > len(b) {
		return "", false
	}
	for i := off; i < len(b); i++ {
		if b[i] == 0 {
			return string(b[off:i]), true
		}
	}
	return string(b[off:]), true
}
