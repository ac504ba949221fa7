// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import (
	"github.com/minidebug/minidump/cpuctx"
	"github.com/minidebug/minidump/module"
)

// Thread is one OS thread captured in the dump (spec.md §3).
type Thread struct {
	ThreadID      uint32
	SuspendCount  uint32
	PriorityClass uint32
	Priority      uint32
	TEB           uint64
	StackRange    MemoryDescriptor
	Context       *cpuctx.Context
	// ContextErr is ErrUnknownArchitecture when Context is nil because
	// its on-disk size didn't map to a known architecture, or mapped to
	// one that disagreed with SystemInfo.ProcessorArch.
	ContextErr error
}

// SystemInfo carries the platform/architecture tag used to select the
// context decoder and the stackwalker (spec.md §3).
type SystemInfo struct {
	ProcessorArch  uint16
	ProcessorLevel uint16
	PlatformID     uint32
	CSDVersion     string
}

// PlatformID values (spec.md §6).
const (
	PlatformWindows PlatformID = 2
	PlatformMacOS   PlatformID = 0x8101
	PlatformIOS     PlatformID = 0x8102
	PlatformLinux   PlatformID = 0x8201
	PlatformAndroid PlatformID = 0x8203
	PlatformFuchsia PlatformID = 0x8206
)

type PlatformID uint32

// Exception describes the crash, when present (spec.md §3).
type Exception struct {
	ThreadID        uint32
	ExceptionCode   uint32
	ExceptionFlags  uint32
	ExceptionAddress uint64
	Parameters      []uint64 // up to 15
	ThreadContext   *cpuctx.Context
	// ContextErr is ErrUnknownArchitecture when ThreadContext is nil;
	// see Thread.ContextErr.
	ContextErr error
}

// MiscInfo is progressively extended by version; fields beyond what the
// stream's declared SizeOfInfo covers are left at their zero value
// rather than erroring (spec.md §4.1).
type MiscInfo struct {
	SizeOfInfo        uint32
	Flags1            uint32
	ProcessID         *uint32
	ProcessCreateTime *uint32
	ProcessUserTime   *uint32
	ProcessKernelTime *uint32
}

// HandleDataVariant identifies which of the three on-disk
// HandleDataStream layouts was present (spec.md §4.1).
type HandleDataVariant int

const (
	HandleDataUnknown HandleDataVariant = iota
	HandleDataV1
	HandleDataV2
	HandleDataV3
)

// HandleData is retained as raw bytes when its descriptor size doesn't
// match a known variant (spec.md §4.1 "rejects unknown sizes with a
// warning; the stream is retained as raw bytes").
type HandleData struct {
	Variant HandleDataVariant
	Raw     []byte
	Warning string
}

// moduleList holds decoded modules before they are handed to
// module.NewRegistry.
type moduleList struct {
	modules []*module.Module
}
