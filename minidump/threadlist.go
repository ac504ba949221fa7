// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import (
	"fmt"

	"github.com/minidebug/minidump/cpuctx"
)

const threadRecordSize = 48 // whole MINIDUMP_THREAD record, including its stack and context location descriptors

func parseThreadList(r *Reader, data []byte) ([]*Thread, error) {
	c := newCursor(data)
	count, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("%w: thread list count", ErrTruncated)
	}
	if int64(count)*threadRecordSize+4 > int64(len(data)) {
		return nil, fmt.Errorf("%w: thread list declares %d entries", ErrStreamOverrun, count)
	}
	threads := make([]*Thread, 0, count)
	for i := uint32(0); i < count; i++ {
		t, err := parseThreadRecord(r, c)
		if err != nil {
			return nil, fmt.Errorf("thread %d: %w", i, err)
		}
		threads = append(threads, t)
	}
	return threads, nil
}

func parseThreadRecord(r *Reader, c *cursor) (*Thread, error) {
	t := &Thread{}
	var err error
	if t.ThreadID, err = c.u32(); err != nil {
		return nil, err
	}
	if t.SuspendCount, err = c.u32(); err != nil {
		return nil, err
	}
	if t.PriorityClass, err = c.u32(); err != nil {
		return nil, err
	}
	if t.Priority, err = c.u32(); err != nil {
		return nil, err
	}
	if t.TEB, err = c.u64(); err != nil {
		return nil, err
	}
	var stackStart uint64
	var stackSize, stackRVA uint32
	if stackStart, err = c.u64(); err != nil {
		return nil, err
	}
	if stackSize, err = c.u32(); err != nil {
		return nil, err
	}
	if stackRVA, err = c.u32(); err != nil {
		return nil, err
	}
	t.StackRange = MemoryDescriptor{StartAddress: Address(stackStart), Size: stackSize, RVA: stackRVA}

	var ctxSize, ctxRVA uint32
	if ctxSize, err = c.u32(); err != nil {
		return nil, err
	}
	if ctxRVA, err = c.u32(); err != nil {
		return nil, err
	}
	ctxBytes := r.sliceAt(ctxRVA, ctxSize)
	if len(ctxBytes) > 0 {
		arch := cpuctx.ArchForContextSize(len(ctxBytes))
		if arch == cpuctx.ArchUnknown {
			t.ContextErr = fmt.Errorf("%w: thread %d context is %d bytes", ErrUnknownArchitecture, t.ThreadID, len(ctxBytes))
			return t, nil
		}
		if sysArch, ok := r.systemInfoArch(); ok && sysArch != cpuctx.ArchUnknown && sysArch != arch {
			t.ContextErr = fmt.Errorf("%w: thread %d context size implies %v but SystemInfo declares %v", ErrUnknownArchitecture, t.ThreadID, arch, sysArch)
			return t, nil
		}
		ctx, err := cpuctx.Decode(arch, ctxBytes)
		if err == nil {
			t.Context = ctx
		}
	}
	return t, nil
}
