// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stackwalk

import (
	"github.com/minidebug/minidump/minidump"
	"github.com/minidebug/minidump/module"
)

// callInstructionSize is a per-architecture heuristic guess at how many
// bytes precede a return address for a CALL-like instruction, used only
// to bias the scan's acceptance test; it is never exact (variable-length
// encodings on x86/amd64 make an exact check impossible without a
// disassembler, which is out of scope — spec.md §4.4 calls this a
// "heuristic" explicitly).
func callInstructionSize(arch string) int {
	switch arch {
	case "arm", "arm64", "mips32", "mips64", "ppc", "ppc64", "sparc", "riscv32", "riscv64":
		return 4 // fixed-width encodings
	default:
		return 1 // x86/amd64: no reliable fixed width, treat as "non-zero preceding byte"
	}
}

// stackScan implements strategy 4 of spec.md §4.4: step word-by-word up
// the stack looking for a value that plausibly is a return address.
// amd64's SysV red zone means the scan may begin up to 128 bytes below
// RSP (spec.md §4.4 "amd64... Red-zone handling").
func stackScan(callee *Frame, frameIndex int, mem MemorySource, modules *module.Registry, opts Options) *Frame {
	if modules == nil {
		return nil
	}
	word := int(callee.Context.Arch.WordSize())
	if word == 0 {
		return nil
	}

	start := callee.Context.SP()
	if callee.Context.Arch.String() == "amd64" {
		const redZone = 128
		if start > redZone {
			start -= redZone
		}
	}

	maxWords := opts.maxSearchWords(frameIndex)
	for i := 0; i < maxWords; i++ {
		addr := start + uint64(i*word)
		candidate, ok := readWord(mem, addr, word)
		if !ok || candidate == 0 {
			continue
		}
		mod := modules.ModuleAtAddress(candidate)
		if mod == nil {
			continue
		}
		if !plausibleCallSite(mem, candidate, callee.Context.Arch.String()) {
			continue
		}
		caller := callee.Context.Clone()
		caller.SetPC(candidate)
		caller.SetSP(addr + uint64(word))
		return &Frame{Context: caller, Trust: TrustScan}
	}
	return nil
}

// plausibleCallSite applies the "preceded by a call-site instruction"
// heuristic: the byte(s) immediately before candidate must not be all
// zero, which is the cheapest signal available without a disassembler
// and is what distinguishes a real return address from scanned garbage
// that merely happens to land inside a module's range.
func plausibleCallSite(mem MemorySource, candidate uint64, arch string) bool {
	n := callInstructionSize(arch)
	if candidate < uint64(n) {
		return false
	}
	b, err := mem.ReadMemory(minidump.Address(candidate-uint64(n)), n)
	if err != nil {
		return true // unreadable code section: don't penalize, we can't check
	}
	for _, v := range b {
		if v != 0 {
			return true
		}
	}
	return false
}
