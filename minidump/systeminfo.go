// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import (
	"fmt"

	"github.com/minidebug/minidump/cpuctx"
)

// SystemInfo.ProcessorArch values: the low range is the Windows
// PROCESSOR_ARCHITECTURE_* enum; values at 0x8000 and above are
// breakpad's vendor extensions for architectures that enum has no room
// for (spec.md §6 cross-reference).
const (
	procArchX86      = 0
	procArchMIPS32   = 1
	procArchPPC      = 3
	procArchARM      = 5
	procArchAMD64    = 9
	procArchARM64    = 12
	procArchSPARC    = 0x8001
	procArchMIPS64   = 0x8002
	procArchPPC64    = 0x8004
	procArchARM64Ext = 0x8005
	procArchRISCV32  = 0x8006
	procArchRISCV64  = 0x8007
)

var processorArchTable = map[uint16]cpuctx.Arch{
	procArchX86:      cpuctx.ArchX86,
	procArchMIPS32:   cpuctx.ArchMIPS32,
	procArchPPC:      cpuctx.ArchPPC,
	procArchARM:      cpuctx.ArchARM,
	procArchAMD64:    cpuctx.ArchAMD64,
	procArchARM64:    cpuctx.ArchARM64,
	procArchSPARC:    cpuctx.ArchSPARC,
	procArchMIPS64:   cpuctx.ArchMIPS64,
	procArchPPC64:    cpuctx.ArchPPC64,
	procArchARM64Ext: cpuctx.ArchARM64,
	procArchRISCV32:  cpuctx.ArchRISCV32,
	procArchRISCV64:  cpuctx.ArchRISCV64,
}

// archFromProcessorArch maps a SystemInfo.ProcessorArch value to its
// cpuctx.Arch, or ArchUnknown if the value isn't one of the above.
func archFromProcessorArch(v uint16) cpuctx.Arch {
	if a, ok := processorArchTable[v]; ok {
		return a
	}
	return cpuctx.ArchUnknown
}

// systemInfoArch returns the architecture SystemInfo declares, or
// (ArchUnknown, false) if the stream is absent or failed to parse — in
// which case a context-size cross-check against it is skipped rather
// than treated as a mismatch.
func (r *Reader) systemInfoArch() (cpuctx.Arch, bool) {
	si, err := r.SystemInfo()
	if err != nil || si == nil {
		return cpuctx.ArchUnknown, false
	}
	return archFromProcessorArch(si.ProcessorArch), true
}

func parseSystemInfo(r *Reader, data []byte) (*SystemInfo, error) {
	c := newCursor(data)
	s := &SystemInfo{}
	var err error
	var arch16, level16 uint16
	if arch16, err = c.u16(); err != nil {
		return nil, fmt.Errorf("%w: system info", ErrTruncated)
	}
	s.ProcessorArch = arch16
	if level16, err = c.u16(); err != nil {
		return nil, err
	}
	s.ProcessorLevel = level16
	if err = c.skip(2 + 2); err != nil { // ProcessorRevision, NumberOfProcessors+ProductType
		return nil, err
	}
	if s.PlatformID, err = c.u32(); err != nil {
		return nil, err
	}
	csdRVA, err := c.u32()
	if err != nil {
		return nil, err
	}
	if name, err := r.readUTF16StringAt(csdRVA); err == nil {
		s.CSDVersion = name
	}
	return s, nil
}
