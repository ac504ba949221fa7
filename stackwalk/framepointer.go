// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stackwalk

import "github.com/minidebug/minidump/cpuctx"

// framePointerWalk implements strategy 3 of spec.md §4.4: load [FP] as
// the saved frame pointer and [FP+word] as the return address. MIPS has
// no fixed FP convention (spec.md §4.4) and is excluded; amd64 requires
// Options.Amd64UseFP since the source's hint for whether a module was
// built with frame pointers is ad-hoc (spec.md §9 "Open questions").
func framePointerWalk(callee *Frame, mem MemorySource, opts Options) *Frame {
	arch := callee.Context.Arch
	if arch == cpuctx.ArchMIPS32 || arch == cpuctx.ArchMIPS64 {
		return nil
	}
	if arch == cpuctx.ArchAMD64 && !opts.Amd64UseFP {
		return nil
	}

	fp := frameRegister(callee.Context)
	if fp == 0 {
		return nil
	}
	word := int(arch.WordSize())
	if word == 0 {
		return nil
	}

	savedFP, ok := readWord(mem, fp, word)
	if !ok {
		return nil
	}
	ra, ok := readWord(mem, fp+uint64(word), word)
	if !ok {
		return nil
	}

	caller := callee.Context.Clone()
	caller.SetFP(savedFP)
	caller.SetPC(ra)
	caller.SetSP(fp + uint64(2*word))
	return &Frame{Context: caller, Trust: TrustFramePointer}
}

// frameRegister returns the frame-pointer value to walk from, honoring
// ARM's R7-vs-R11 ABI hint (spec.md §4.4).
func frameRegister(c *cpuctx.Context) uint64 {
	if c.Arch == cpuctx.ArchARM && c.ARM.UsesR7FP {
		return uint64(c.ARM.R[7])
	}
	fp, ok := c.FP()
	if !ok {
		return 0
	}
	return fp
}

func readWord(mem MemorySource, addr uint64, word int) (uint64, bool) {
	v, ok := memAdapter{mem}.ReadUint(addr, word)
	return v, ok
}
