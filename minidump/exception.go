// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import (
	"fmt"

	"github.com/minidebug/minidump/cpuctx"
)

func parseException(r *Reader, data []byte) (*Exception, error) {
	c := newCursor(data)
	e := &Exception{}
	var err error
	if e.ThreadID, err = c.u32(); err != nil {
		return nil, fmt.Errorf("%w: exception stream", ErrTruncated)
	}
	if err = c.skip(4); err != nil { // __align
		return nil, err
	}
	if e.ExceptionCode, err = c.u32(); err != nil {
		return nil, err
	}
	if e.ExceptionFlags, err = c.u32(); err != nil {
		return nil, err
	}
	if err = c.skip(8); err != nil { // ExceptionRecord (nested record chain, unused)
		return nil, err
	}
	if e.ExceptionAddress, err = c.u64(); err != nil {
		return nil, err
	}
	numParams, err := c.u32()
	if err != nil {
		return nil, err
	}
	if numParams > 15 {
		numParams = 15
	}
	if err = c.skip(4); err != nil { // __unusedAlignment
		return nil, err
	}
	e.Parameters = make([]uint64, numParams)
	for i := range e.Parameters {
		if e.Parameters[i], err = c.u64(); err != nil {
			return nil, err
		}
	}
	// Skip remaining unused parameter slots to reach the thread context
	// location descriptor (fixed at 15 total slots on disk).
	if err = c.skip(int(15-numParams) * 8); err != nil {
		return nil, err
	}
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
			e.ContextErr = fmt.Errorf("%w: exception context is %d bytes", ErrUnknownArchitecture, len(ctxBytes))
		} else if sysArch, ok := r.systemInfoArch(); ok && sysArch != cpuctx.ArchUnknown && sysArch != arch {
			e.ContextErr = fmt.Errorf("%w: exception context size implies %v but SystemInfo declares %v", ErrUnknownArchitecture, arch, sysArch)
		} else if ctx, err := cpuctx.Decode(arch, ctxBytes); err == nil {
			e.ThreadContext = ctx
		}
	}
	return e, nil
}
