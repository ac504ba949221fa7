// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stackwalk

import (
	"github.com/minidebug/minidump/module"
	"github.com/minidebug/minidump/symfile"
)

// winUnwind implements strategy 2 of spec.md §4.4 for x86: look up a
// STACK WIN record and recover the caller's registers from the frame
// layout it describes.
//
// Only the frame-data ("FPO", HasProgram == false) form is evaluated
// directly here: caller RA sits just past the callee's locals and saved
// registers, and the caller's SP sits just past RA and the callee's
// declared parameters. The program-string form (HasProgram == true)
// encodes an arbitrary postfix-assignment sequence breakpad's own
// unwinder interprets with a small stack machine distinct from the CFI
// grammar (spec.md §4.3 only specifies CFI's own operators); we don't
// have a worked example of that grammar in the retrieved pack to ground
// an evaluator on, so a record with a program string falls through to
// the frame-pointer strategy instead of returning a synthesized frame
// here (see DESIGN.md).
func winUnwind(callee *Frame, mem MemorySource, modules *module.Registry, resolver *symfile.Resolver, ist *interruptState) *Frame {
	if modules == nil || resolver == nil {
		return nil
	}
	mod := modules.ModuleAtAddress(callee.Context.PC())
	if mod == nil {
		return nil
	}
	tbl, outcome, err := resolver.Resolve(mod.DebugFile, mod.DebugIdentifier)
	if outcome == symfile.Interrupted {
		ist.hit = true
		return nil
	}
	if err != nil || outcome != symfile.Resolved || tbl == nil {
		return nil
	}
	rva := callee.Context.PC() - mod.BaseAddress
	w := tbl.WinRecordForAddress(rva)
	if w == nil || w.HasProgram {
		return nil
	}

	const word = 4
	calleeSP := callee.Context.SP()
	raAddr := calleeSP + uint64(w.LocalsSize) + uint64(w.SavedRegsSize)
	ra, ok := readWord(mem, raAddr, word)
	if !ok {
		return nil
	}
	callerSP := raAddr + word + uint64(w.ParamsSize)

	caller := callee.Context.Clone()
	caller.SetPC(ra)
	caller.SetSP(callerSP)
	return &Frame{Context: caller, Trust: TrustCFI}
}
