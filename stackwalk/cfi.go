// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stackwalk

import (
	"github.com/minidebug/minidump/cpuctx"
	"github.com/minidebug/minidump/minidump"
	"github.com/minidebug/minidump/module"
	"github.com/minidebug/minidump/symfile"
)

// memAdapter lets symfile's postfix evaluator dereference crashed-process
// memory through whatever MemorySource the walk was given.
type memAdapter struct {
	mem MemorySource
}

func (a memAdapter) ReadUint(address uint64, wordSize int) (uint64, bool) {
	b, err := a.mem.ReadMemory(minidump.Address(address), wordSize)
	if err != nil || len(b) < wordSize {
		return 0, false
	}
	switch wordSize {
	case 4:
		return uint64(cpuctx.ByteOrder.Uint32(b)), true
	case 8:
		return cpuctx.ByteOrder.Uint64(b), true
	default:
		return 0, false
	}
}

// cfiUnwind implements strategy 1 of spec.md §4.4: look up CFI rules for
// the callee's PC and evaluate them against the callee's registers.
func cfiUnwind(callee *Frame, mem MemorySource, modules *module.Registry, resolver *symfile.Resolver, ist *interruptState) *Frame {
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
	rules := tbl.CfiRulesForAddress(rva)
	if rules == nil {
		return nil
	}

	vars := callee.Context.RegisterValues()
	out, _ := symfile.EvalCfiRules(rules, vars, memAdapter{mem}, int(callee.Context.Arch.WordSize()))
	cfa, haveCFA := out[".cfa"]
	ra, haveRA := out[".ra"]
	if !haveCFA || !haveRA {
		return nil
	}

	caller := callee.Context.Clone()
	caller.SetSP(cfa)
	caller.SetPC(ra)
	for reg, v := range out {
		if reg == ".cfa" || reg == ".ra" {
			continue
		}
		caller.SetRegister(reg, v)
	}
	return &Frame{Context: caller, Trust: TrustCFI}
}
