// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpuctx

import (
	"encoding/binary"
	"fmt"
)

// Decode parses a THREAD_CONTEXT blob whose architecture has already
// been determined (by size, per ArchForContextSize, cross-checked
// against SystemInfo — spec.md §3). Decoding is explicit field-by-field
// little-endian, matching the rest of the reader (spec.md §4.1).
func Decode(arch Arch, b []byte) (*Context, error) {
	c := &Context{Arch: arch}
	switch arch {
	case ArchX86:
		c.X86 = decodeX86(b)
	case ArchAMD64:
		c.AMD64 = decodeAMD64(b)
	case ArchARM:
		c.ARM = decodeARM(b)
	case ArchARM64:
		c.ARM64 = decodeARM64(b)
	case ArchMIPS32:
		c.MIPS32 = decodeMIPS(b, 4)
	case ArchMIPS64:
		c.MIPS64 = decodeMIPS(b, 8)
	case ArchPPC:
		c.PPC = decodePPC(b, 4)
	case ArchPPC64:
		c.PPC64 = decodePPC(b, 8)
	case ArchSPARC:
		c.SPARC = decodeSPARC(b)
	case ArchRISCV32:
		c.RISCV32 = decodeRISCV(b, 4)
	case ArchRISCV64:
		c.RISCV64 = decodeRISCV(b, 8)
	default:
		return nil, fmt.Errorf("cpuctx: unknown architecture for %d-byte context", len(b))
	}
	return c, nil
}

// word reads a little-endian integer of width 4 or 8 bytes at offset off.
func word(b []byte, off, width int) uint64 {
	if off < 0 || off+width > len(b) {
		return 0
	}
	if width == 4 {
		return uint64(binary.LittleEndian.Uint32(b[off:]))
	}
	return binary.LittleEndian.Uint64(b[off:])
}

func u32At(b []byte, off int) uint32 { return uint32(word(b, off, 4)) }

// The exact byte offsets below are the documented MDRawContext{X86,
// AMD64,...} / Breakpad vendor-extension layouts (spec.md §6). Only the
// fields the stackwalker and assembler consume are extracted; padding
// and floating-point blocks are skipped over.

func decodeX86(b []byte) *X86Context {
	c := &X86Context{Validity: ValidGPRs | ValidPC | ValidSP | ValidFP | ValidFlags}
	// context_flags(4) + 6 debug regs(24) + float save area(112) +
	// gs/fs/es/ds(16) precede the GPR block, which starts with edi.
	const gprBase = 4 + 24 + 112 + 16
	c.EDI = u32At(b, gprBase+0)
	c.ESI = u32At(b, gprBase+4)
	c.EBX = u32At(b, gprBase+8)
	c.EDX = u32At(b, gprBase+12)
	c.ECX = u32At(b, gprBase+16)
	c.EAX = u32At(b, gprBase+20)
	c.EBP = u32At(b, gprBase+24)
	c.EIP = u32At(b, gprBase+28)
	c.EFlags = u32At(b, gprBase+36) // after cs(4)
	c.ESP = u32At(b, gprBase+40)
	return c
}

func decodeAMD64(b []byte) *AMD64Context {
	c := &AMD64Context{Validity: ValidGPRs | ValidPC | ValidSP | ValidFP | ValidFlags}
	// p1_home..p6_home(48) + context_flags(4) + mxcsr(4) + six segment
	// selectors(12) + eflags(4) + six debug regs(48).
	const gprBase = 48 + 4 + 4 + 12 + 4 + 48
	c.RAX = word(b, gprBase+0, 8)
	c.RCX = word(b, gprBase+8, 8)
	c.RDX = word(b, gprBase+16, 8)
	c.RBX = word(b, gprBase+24, 8)
	c.RSP = word(b, gprBase+32, 8)
	c.RBP = word(b, gprBase+40, 8)
	c.RSI = word(b, gprBase+48, 8)
	c.RDI = word(b, gprBase+56, 8)
	c.R8 = word(b, gprBase+64, 8)
	c.R9 = word(b, gprBase+72, 8)
	c.R10 = word(b, gprBase+80, 8)
	c.R11 = word(b, gprBase+88, 8)
	c.R12 = word(b, gprBase+96, 8)
	c.R13 = word(b, gprBase+104, 8)
	c.R14 = word(b, gprBase+112, 8)
	c.R15 = word(b, gprBase+120, 8)
	c.RIP = word(b, gprBase+128, 8)
	c.EFlags = u32At(b, 48+4+4+12) // EFlags follows the segment selectors
	return c
}

func decodeARM(b []byte) *ARMContext {
	c := &ARMContext{Validity: ValidGPRs | ValidPC | ValidSP | ValidFP}
	const gprBase = 4 // context_flags(4): regs start at 4
	for i := 0; i < 16; i++ {
		c.R[i] = u32At(b, gprBase+i*4)
	}
	c.CPSR = u32At(b, gprBase+16*4)
	return c
}

func decodeARM64(b []byte) *ARM64Context {
	c := &ARM64Context{Validity: ValidGPRs | ValidPC | ValidSP | ValidFP}
	const gprBase = 8 // context_flags(4) + cpsr(4)
	for i := 0; i < 31; i++ {
		c.X[i] = word(b, gprBase+i*8, 8)
	}
	c.SP = word(b, gprBase+31*8, 8)
	c.PC = word(b, gprBase+32*8, 8)
	c.PSTATE = u32At(b, 4)
	return c
}

func decodeMIPS(b []byte, word_ int) *MIPSContext {
	c := &MIPSContext{Validity: ValidGPRs | ValidPC | ValidSP}
	const base = 8
	for i := 0; i < 32; i++ {
		c.GPR[i] = word(b, base+i*8, 8)
	}
	c.EPC = word(b, base+32*8, 8)
	c.SP = c.GPR[29]
	c.RA = c.GPR[31]
	return c
}

func decodePPC(b []byte, word_ int) *PPCContext {
	c := &PPCContext{Validity: ValidGPRs | ValidPC | ValidSP}
	const base = 8
	for i := 0; i < 32; i++ {
		c.GPR[i] = word(b, base+i*8, 8)
	}
	c.SRR0 = word(b, base+32*8, 8)
	c.LR = word(b, base+33*8, 8)
	c.CR = u32At(b, base+34*8)
	return c
}

func decodeSPARC(b []byte) *SPARCContext {
	c := &SPARCContext{Validity: ValidGPRs | ValidPC | ValidSP | ValidFP}
	const base = 8
	for i := 0; i < 32; i++ {
		c.GPR[i] = word(b, base+i*8, 8)
	}
	c.PC = word(b, base+32*8, 8)
	c.NPC = word(b, base+33*8, 8)
	return c
}

func decodeRISCV(b []byte, word_ int) *RISCVContext {
	c := &RISCVContext{Validity: ValidGPRs | ValidPC | ValidSP | ValidFP}
	const base = 8
	for i := 0; i < 32; i++ {
		c.X[i] = word(b, base+i*8, 8)
	}
	c.PC = word(b, base+32*8, 8)
	return c
}
