// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package minidump parses the on-disk minidump container: the fixed
// header, the stream directory, and each well-known stream (spec.md
// §4.1). It never reinterprets raw bytes as host structs; every field
// is decoded explicitly and little-endian, so behavior is identical on
// big-endian hosts (spec.md §4.1 "Endianness").
//
// A Reader exclusively owns the bytes backing every view it returns;
// those views (MemoryRegion, Stream, decoded records that still point
// into the buffer) must not outlive the Reader (spec.md §5
// "Ownership").
package minidump

import (
	"fmt"
	"io"

	"github.com/minidebug/minidump/module"
)

// ByteSource is a seekable byte source offering random access by
// offset. Nothing in this package takes a ByteSource: Reader works on
// the whole file held as a []byte.
type ByteSource interface {
	io.ReaderAt
}

// Reader exposes typed accessors over a parsed minidump file.
type Reader struct {
	data []byte // the whole file; all RVAs are offsets into this slice

	header    Header
	streams   map[StreamType]Stream
	streamErr error // set if the directory itself failed to parse

	modules  *module.Registry
	threads  []*Thread
	memory   *memoryRanges
	sysInfo  *SystemInfo
	exc      *Exception
	misc     *MiscInfo
	handle   *HandleData
	breakpad *BreakpadInfo

	parsedModules, parsedThreads, parsedMemory bool
	parsedSysInfo, parsedExc, parsedMisc       bool
	parsedHandle, parsedBreakpad               bool
}

// Open parses the header and directory of the minidump held in data.
// The whole file must already be in memory (mmap'd or read); Open
// itself performs no I/O beyond slicing.
func Open(data []byte) (*Reader, error) {
	r := &Reader{data: data, streams: make(map[StreamType]Stream)}

	if len(data) < 32 {
		return nil, ErrTruncated
	}
	c := newCursor(data)
	h, err := parseHeader(c)
	if err != nil {
		return nil, err
	}
	r.header = h

	const dirEntrySize = 12
	dirEnd := int64(h.DirectoryRVA) + int64(h.StreamCount)*dirEntrySize
	if h.DirectoryRVA > uint32(len(data)) || dirEnd > int64(len(data)) {
		return nil, fmt.Errorf("%w: directory", ErrStreamOverrun)
	}
	dc := newCursor(data[h.DirectoryRVA:])
	for i := uint32(0); i < h.StreamCount; i++ {
		var entry directoryEntry
		st, err := dc.u32()
		if err != nil {
			return nil, fmt.Errorf("%w: directory entry %d", ErrTruncated, i)
		}
		entry.streamType = StreamType(st)
		if entry.dataSize, err = dc.u32(); err != nil {
			return nil, fmt.Errorf("%w: directory entry %d", ErrTruncated, i)
		}
		if entry.rva, err = dc.u32(); err != nil {
			return nil, fmt.Errorf("%w: directory entry %d", ErrTruncated, i)
		}
		if int64(entry.rva)+int64(entry.dataSize) > int64(len(data)) {
			return nil, fmt.Errorf("%w: stream %s", ErrStreamOverrun, entry.streamType)
		}
		r.streams[entry.streamType] = Stream{
			Type: entry.streamType,
			Data: data[entry.rva : entry.rva+entry.dataSize],
		}
	}
	return r, nil
}

// Header returns the parsed file header.
func (r *Reader) Header() Header { return r.header }

// Streams returns every stream present in the file, keyed by type. The
// slice backing each Stream's Data is a view into the Reader's buffer.
func (r *Reader) Streams() map[StreamType]Stream { return r.streams }

// sliceAt returns a bounds-checked view of size bytes at rva, or nil if
// out of range. rva==0 with size==0 is the conventional "absent"
// encoding and also yields nil.
func (r *Reader) sliceAt(rva, size uint32) []byte {
	if size == 0 {
		return nil
	}
	end := int64(rva) + int64(size)
	if end > int64(len(r.data)) {
		return nil
	}
	return r.data[rva:end]
}

func (r *Reader) readUTF16StringAt(rva uint32) (string, error) {
	if rva == 0 || int64(rva)+4 > int64(len(r.data)) {
		return "", ErrStreamOverrun
	}
	c := newCursor(r.data[rva:])
	return c.mdString()
}

// Modules returns the module registry, or nil if no ModuleList stream
// is present.
func (r *Reader) Modules() (*module.Registry, error) {
	if r.parsedModules {
		return r.modules, nil
	}
	r.parsedModules = true
	s, ok := r.streams[StreamModuleList]
	if !ok {
		return nil, nil
	}
	mods, err := parseModuleList(r, s.Data)
	if err != nil {
		return nil, err
	}
	r.modules = module.NewRegistry(mods)
	return r.modules, nil
}

// Threads returns the thread list, or nil if no ThreadList stream is
// present.
func (r *Reader) Threads() ([]*Thread, error) {
	if r.parsedThreads {
		return r.threads, nil
	}
	r.parsedThreads = true
	s, ok := r.streams[StreamThreadList]
	if !ok {
		return nil, nil
	}
	threads, err := parseThreadList(r, s.Data)
	if err != nil {
		return nil, err
	}
	r.threads = threads
	return threads, nil
}

func (r *Reader) loadMemory() error {
	if r.parsedMemory {
		return nil
	}
	r.parsedMemory = true
	mr := &memoryRanges{}
	if s, ok := r.streams[StreamMemoryList]; ok {
		m, err := parseMemoryList(r, s.Data)
		if err != nil {
			return err
		}
		mr.regions = append(mr.regions, m.regions...)
	}
	if s, ok := r.streams[StreamMemory64List]; ok {
		m, err := parseMemory64List(r, s.Data)
		if err != nil {
			return err
		}
		mr.regions = append(mr.regions, m.regions...)
	}
	mr.finish()
	r.memory = mr
	return nil
}

// MemoryList returns the regions of both on-disk memory lists
// (MINIDUMP_MEMORY_LIST and MINIDUMP_MEMORY64_LIST), merged.
func (r *Reader) MemoryList() (*memoryRanges, error) {
	if err := r.loadMemory(); err != nil {
		return nil, err
	}
	return r.memory, nil
}

// Memory64List is an alias of MemoryList since the Reader merges both
// on-disk lists into a single lookup structure for GetMemory; exposed
// separately to satisfy callers probing for presence.
func (r *Reader) Memory64List() (*memoryRanges, error) { return r.MemoryList() }

// GetMemory searches both memory lists and returns the region
// containing address, with O(log n) lookup (spec.md §4.1).
func (r *Reader) GetMemory(address Address) (MemoryRegion, bool) {
	if err := r.loadMemory(); err != nil || r.memory == nil {
		return MemoryRegion{}, false
	}
	return r.memory.find(address)
}

// ReadMemory reads n bytes at address, searching both memory lists.
func (r *Reader) ReadMemory(address Address, n int) ([]byte, error) {
	region, ok := r.GetMemory(address)
	if !ok {
		return nil, fmt.Errorf("minidump: memory read failed at %#x: no mapping", uint64(address))
	}
	b, ok := region.slice(address, n)
	if !ok {
		return nil, fmt.Errorf("minidump: memory read failed at %#x: out of range", uint64(address))
	}
	return b, nil
}

// SystemInfo returns the SystemInfo stream, or nil if absent.
func (r *Reader) SystemInfo() (*SystemInfo, error) {
	if r.parsedSysInfo {
		return r.sysInfo, nil
	}
	r.parsedSysInfo = true
	s, ok := r.streams[StreamSystemInfo]
	if !ok {
		return nil, nil
	}
	si, err := parseSystemInfo(r, s.Data)
	if err != nil {
		return nil, err
	}
	r.sysInfo = si
	return si, nil
}

// Exception returns the Exception stream, or nil if absent.
func (r *Reader) Exception() (*Exception, error) {
	if r.parsedExc {
		return r.exc, nil
	}
	r.parsedExc = true
	s, ok := r.streams[StreamException]
	if !ok {
		return nil, nil
	}
	e, err := parseException(r, s.Data)
	if err != nil {
		return nil, err
	}
	r.exc = e
	return e, nil
}

// MiscInfo returns the MiscInfo stream, or nil if absent.
func (r *Reader) MiscInfo() (*MiscInfo, error) {
	if r.parsedMisc {
		return r.misc, nil
	}
	r.parsedMisc = true
	s, ok := r.streams[StreamMiscInfo]
	if !ok {
		return nil, nil
	}
	mi, err := parseMiscInfo(s.Data)
	if err != nil {
		return nil, err
	}
	r.misc = mi
	return mi, nil
}

// HandleData returns the HandleData stream, or nil if absent.
func (r *Reader) HandleData() (*HandleData, error) {
	if r.parsedHandle {
		return r.handle, nil
	}
	r.parsedHandle = true
	s, ok := r.streams[StreamHandleData]
	if !ok {
		return nil, nil
	}
	hd, err := parseHandleData(s.Data)
	if err != nil {
		return nil, err
	}
	r.handle = hd
	return hd, nil
}

// BreakpadInfo returns the vendor-extension BreakpadInfo stream, or nil
// if absent.
func (r *Reader) BreakpadInfo() (*BreakpadInfo, error) {
	if r.parsedBreakpad {
		return r.breakpad, nil
	}
	r.parsedBreakpad = true
	s, ok := r.streams[StreamBreakpadInfo]
	if !ok {
		return nil, nil
	}
	bi, err := parseBreakpadInfo(s.Data)
	if err != nil {
		return nil, err
	}
	r.breakpad = bi
	return bi, nil
}

// LinuxMaps returns the raw contents of /proc/pid/maps as captured in
// the LinuxMaps stream, or nil if absent. The core does not parse this
// beyond exposing it: it is informational, never consulted by the
// stackwalker.
func (r *Reader) LinuxMaps() []byte {
	if s, ok := r.streams[StreamLinuxMaps]; ok {
		return s.Data
	}
	return nil
}

// Raw returns the unparsed bytes of any stream, including vendor
// extensions and unknown types the Reader preserves but does not
// interpret (spec.md §3 "unknown types are preserved but unused").
func (r *Reader) Raw(t StreamType) ([]byte, bool) {
	s, ok := r.streams[t]
	if !ok {
		return nil, false
	}
	return s.Data, true
}

// UnloadedModules, ThreadNames, MemoryInfoList, CrashpadInfo, and
// AssertionInfo are retrieved the same way: the spec treats them as
// plain typed-but-optional accessors the caller may or may not consult
// (spec.md §4.1). The processor core's own Assembler never reads them,
// so they are intentionally returned as raw bytes rather than fully
// modeled.
func (r *Reader) UnloadedModuleList() ([]byte, bool)  { return r.Raw(StreamUnloadedModuleList) }
func (r *Reader) ThreadNamesRaw() ([]byte, bool)       { return r.Raw(StreamThreadNames) }
func (r *Reader) MemoryInfoListRaw() ([]byte, bool)    { return r.Raw(StreamMemoryInfoList) }
func (r *Reader) CrashpadInfoRaw() ([]byte, bool)      { return r.Raw(StreamCrashpadInfo) }
func (r *Reader) AssertionInfoRaw() ([]byte, bool)     { return r.Raw(StreamAssertionInfo) }
