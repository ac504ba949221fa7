// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import "fmt"

// parseMiscInfo reads only the fields whose offsets fit within the
// stream's declared SizeOfInfo, per spec.md §4.1 and the "Truncated
// MiscInfo" scenario in spec.md §8. A short stream is not an error: the
// fields that SizeOfInfo does not reach are simply left nil.
func parseMiscInfo(data []byte) (*MiscInfo, error) {
	c := newCursor(data)
	sizeOfInfo, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("%w: misc info", ErrTruncated)
	}
	mi := &MiscInfo{SizeOfInfo: sizeOfInfo}
	size := int(sizeOfInfo)
	if size > len(data) {
		size = len(data)
	}
	if mi.Flags1, err = c.u32(); err != nil {
		return mi, nil
	}
	if size < 4+4+4 {
		return mi, nil
	}
	if pid, err := c.u32(); err == nil {
		mi.ProcessID = &pid
	}
	// ProcessCreateTime/UserTime/KernelTime, when present, follow at
	// fixed offsets in MINIDUMP_MISC_INFO; each is only trusted if
	// SizeOfInfo reaches its offset.
	offsets := []struct {
		end int
		set func(uint32)
	}{
		{16, func(v uint32) { mi.ProcessCreateTime = &v }},
		{20, func(v uint32) { mi.ProcessUserTime = &v }},
		{24, func(v uint32) { mi.ProcessKernelTime = &v }},
	}
	for _, o := range offsets {
		if size < o.end {
			break
		}
		v, err := c.u32()
		if err != nil {
			break
		}
		o.set(v)
	}
	return mi, nil
}
