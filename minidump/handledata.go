// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import "fmt"

// Three known SizeOfDescriptor values for MINIDUMP_HANDLE_DATA_STREAM
// (spec.md §4.1 "Variant streams").
const (
	handleDescriptorSizeV1 = 28
	handleDescriptorSizeV2 = 32
	handleDescriptorSizeV3 = 40
)

func parseHandleData(data []byte) (*HandleData, error) {
	c := newCursor(data)
	sizeOfHeader, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("%w: handle data stream", ErrTruncated)
	}
	sizeOfDescriptor, err := c.u32()
	if err != nil {
		return nil, err
	}
	hd := &HandleData{Raw: data}
	switch sizeOfDescriptor {
	case handleDescriptorSizeV1:
		hd.Variant = HandleDataV1
	case handleDescriptorSizeV2:
		hd.Variant = HandleDataV2
	case handleDescriptorSizeV3:
		hd.Variant = HandleDataV3
	default:
		hd.Variant = HandleDataUnknown
		hd.Warning = fmt.Sprintf("unknown HandleDataStream descriptor size %d; retaining raw bytes", sizeOfDescriptor)
	}
	_ = sizeOfHeader
	return hd, nil
}

// BreakpadInfo carries the vendor-extension thread overrides breakpad
// writes when the default "exception stream names the crashed thread"
// rule isn't sufficient (e.g. a dump generated by an explicit request
// rather than an actual fault).
type BreakpadInfo struct {
	DumpThreadValid       bool
	DumpThreadID          uint32
	RequestingThreadValid bool
	RequestingThreadID    uint32
}

const (
	breakpadDumpThreadIDValid       = 0x1
	breakpadRequestingThreadIDValid = 0x2
)

func parseBreakpadInfo(data []byte) (*BreakpadInfo, error) {
	c := newCursor(data)
	validity, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("%w: breakpad info", ErrTruncated)
	}
	bi := &BreakpadInfo{}
	dumpTID, err := c.u32()
	if err != nil {
		return nil, err
	}
	reqTID, err := c.u32()
	if err != nil {
		return nil, err
	}
	if validity&breakpadDumpThreadIDValid != 0 {
		bi.DumpThreadValid = true
		bi.DumpThreadID = dumpTID
	}
	if validity&breakpadRequestingThreadIDValid != 0 {
		bi.RequestingThreadValid = true
		bi.RequestingThreadID = reqTID
	}
	return bi, nil
}
