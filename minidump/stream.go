// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import "fmt"

// StreamType identifies the kind of data a directory entry points at.
// Values are defined by the on-disk minidump format (spec.md §6).
type StreamType uint32

const (
	StreamThreadList         StreamType = 3
	StreamModuleList         StreamType = 4
	StreamMemoryList         StreamType = 5
	StreamException          StreamType = 6
	StreamSystemInfo         StreamType = 7
	StreamMemory64List       StreamType = 9
	StreamHandleData         StreamType = 12
	StreamUnloadedModuleList StreamType = 14
	StreamMiscInfo           StreamType = 15
	StreamMemoryInfoList     StreamType = 16
	StreamThreadNames        StreamType = 24
	StreamBreakpadInfo       StreamType = 0x47670001
	StreamAssertionInfo      StreamType = 0x47670002
	StreamLinuxCPUInfo       StreamType = 0x47670003
	StreamLinuxProcStatus    StreamType = 0x47670004
	StreamLinuxLSBRelease    StreamType = 0x47670005
	StreamLinuxCmdLine       StreamType = 0x47670006
	StreamLinuxEnviron       StreamType = 0x47670007
	StreamLinuxAuxv          StreamType = 0x47670008
	StreamLinuxMaps          StreamType = 0x47670009
	StreamLinuxDSODebug      StreamType = 0x4767000A
	StreamCrashpadInfo       StreamType = 0x43500001
)

func (t StreamType) String() string {
	if name, ok := streamNames[t]; ok {
		return name
	}
	return fmt.Sprintf("StreamType(0x%x)", uint32(t))
}

var streamNames = map[StreamType]string{
	StreamThreadList:         "ThreadList",
	StreamModuleList:         "ModuleList",
	StreamMemoryList:         "MemoryList",
	StreamException:          "Exception",
	StreamSystemInfo:         "SystemInfo",
	StreamMemory64List:       "Memory64List",
	StreamHandleData:         "HandleData",
	StreamUnloadedModuleList: "UnloadedModuleList",
	StreamMiscInfo:           "MiscInfo",
	StreamMemoryInfoList:     "MemoryInfoList",
	StreamThreadNames:        "ThreadNames",
	StreamBreakpadInfo:       "BreakpadInfo",
	StreamAssertionInfo:      "AssertionInfo",
	StreamLinuxCPUInfo:       "LinuxCpuInfo",
	StreamLinuxProcStatus:    "LinuxProcStatus",
	StreamLinuxLSBRelease:    "LinuxLsbRelease",
	StreamLinuxCmdLine:       "LinuxCmdLine",
	StreamLinuxEnviron:       "LinuxEnviron",
	StreamLinuxAuxv:          "LinuxAuxv",
	StreamLinuxMaps:          "LinuxMaps",
	StreamLinuxDSODebug:      "LinuxDsoDebug",
	StreamCrashpadInfo:       "CrashpadInfo",
}

// directoryEntry is the on-disk 12-byte directory record.
type directoryEntry struct {
	streamType StreamType
	dataSize   uint32
	rva        uint32
}

// Stream is a validated, bounds-checked view of one directory entry's
// bytes. It never outlives the Reader it was produced from.
type Stream struct {
	Type StreamType
	Data []byte
}
