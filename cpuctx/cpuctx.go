// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpuctx defines the tagged CpuContext variant shared by the
// minidump reader (which decodes it from the THREAD_CONTEXT / exception
// streams) and the per-architecture stackwalkers (which interpret it).
//
// The upstream breakpad sources model one context class per architecture
// under a common base class; the idiomatic replacement used here is a
// single tagged union plus a small capability interface implemented once
// per architecture (design note in spec.md §9, "Polymorphism across
// architectures").
package cpuctx

import "encoding/binary"

// Arch identifies one of the eleven supported CPU architectures.
type Arch uint8

const (
	ArchUnknown Arch = iota
	ArchX86
	ArchAMD64
	ArchARM
	ArchARM64
	ArchMIPS32
	ArchMIPS64
	ArchPPC
	ArchPPC64
	ArchSPARC
	ArchRISCV32
	ArchRISCV64
)

func (a Arch) String() string {
	switch a {
	case ArchX86:
		return "x86"
	case ArchAMD64:
		return "amd64"
	case ArchARM:
		return "arm"
	case ArchARM64:
		return "arm64"
	case ArchMIPS32:
		return "mips32"
	case ArchMIPS64:
		return "mips64"
	case ArchPPC:
		return "ppc"
	case ArchPPC64:
		return "ppc64"
	case ArchSPARC:
		return "sparc"
	case ArchRISCV32:
		return "riscv32"
	case ArchRISCV64:
		return "riscv64"
	default:
		return "unknown"
	}
}

// WordSize returns the size in bytes of a general-purpose register/
// pointer on this architecture.
func (a Arch) WordSize() int64 {
	switch a {
	case ArchX86, ArchARM, ArchMIPS32, ArchPPC, ArchRISCV32:
		return 4
	case ArchAMD64, ArchARM64, ArchMIPS64, ArchPPC64, ArchSPARC, ArchRISCV64:
		return 8
	default:
		return 0
	}
}

// ByteOrder is always little-endian on disk for every architecture the
// minidump format records (spec.md §6 "Little-endian throughout").
// SPARC dumps are the one case breakpad itself records big-endian-native
// register words already byteswapped into the little-endian container
// at capture time, so the reader never needs to special-case it here.
var ByteOrder binary.ByteOrder = binary.LittleEndian

// Context is the tagged variant over all supported architectures. Only
// the field matching Arch is meaningful; the others are zero.
type Context struct {
	Arch Arch

	X86    *X86Context
	AMD64  *AMD64Context
	ARM    *ARMContext
	ARM64  *ARM64Context
	MIPS32 *MIPSContext
	MIPS64 *MIPSContext
	PPC    *PPCContext
	PPC64  *PPCContext
	SPARC  *SPARCContext
	RISCV32 *RISCVContext
	RISCV64 *RISCVContext
}

// PC returns the program counter, regardless of architecture.
func (c *Context) PC() uint64 {
	switch c.Arch {
	case ArchX86:
		return uint64(c.X86.EIP)
	case ArchAMD64:
		return c.AMD64.RIP
	case ArchARM:
		return uint64(c.ARM.R[15])
	case ArchARM64:
		return c.ARM64.PC
	case ArchMIPS32:
		return uint64(c.MIPS32.EPC)
	case ArchMIPS64:
		return c.MIPS64.EPC
	case ArchPPC:
		return uint64(c.PPC.SRR0)
	case ArchPPC64:
		return c.PPC64.SRR0
	case ArchSPARC:
		return c.SPARC.PC
	case ArchRISCV32:
		return uint64(c.RISCV32.PC)
	case ArchRISCV64:
		return c.RISCV64.PC
	default:
		return 0
	}
}

// SP returns the stack pointer, regardless of architecture.
func (c *Context) SP() uint64 {
	switch c.Arch {
	case ArchX86:
		return uint64(c.X86.ESP)
	case ArchAMD64:
		return c.AMD64.RSP
	case ArchARM:
		return uint64(c.ARM.R[13])
	case ArchARM64:
		return c.ARM64.SP
	case ArchMIPS32:
		return uint64(c.MIPS32.SP)
	case ArchMIPS64:
		return c.MIPS64.SP
	case ArchPPC:
		return uint64(c.PPC.GPR[1])
	case ArchPPC64:
		return c.PPC64.GPR[1]
	case ArchSPARC:
		return uint64(c.SPARC.GPR[14]) // O6
	case ArchRISCV32:
		return c.RISCV32.SP()
	case ArchRISCV64:
		return c.RISCV64.SP()
	default:
		return 0
	}
}

// FP returns the conventional frame-pointer register value and whether
// this architecture has one captured. mips has no fixed FP convention
// the walker can rely on unconditionally and reports false; callers fall
// back to CFI in that case (spec.md §4.4).
func (c *Context) FP() (uint64, bool) {
	switch c.Arch {
	case ArchX86:
		return uint64(c.X86.EBP), true
	case ArchAMD64:
		return c.AMD64.RBP, true
	case ArchARM:
		return uint64(c.ARM.R[11]), true
	case ArchARM64:
		return c.ARM64.FP(), true
	case ArchPPC:
		return uint64(c.PPC.GPR[1]), true // back-chain at [SP]
	case ArchPPC64:
		return c.PPC64.GPR[1], true
	case ArchSPARC:
		return uint64(c.SPARC.GPR[30]), true // I6
	case ArchRISCV32:
		return c.RISCV32.S0(), true
	case ArchRISCV64:
		return c.RISCV64.S0(), true
	default:
		return 0, false
	}
}

// Clone returns a deep-enough copy of c: a new Context whose active
// per-architecture struct is itself a copy, so SetPC/SetSP/SetFP on the
// clone never mutate the original (the stackwalker derives each new
// frame's context from its callee's without disturbing it).
func (c *Context) Clone() *Context {
	nc := &Context{Arch: c.Arch}
	switch c.Arch {
	case ArchX86:
		v := *c.X86
		nc.X86 = &v
	case ArchAMD64:
		v := *c.AMD64
		nc.AMD64 = &v
	case ArchARM:
		v := *c.ARM
		nc.ARM = &v
	case ArchARM64:
		v := *c.ARM64
		nc.ARM64 = &v
	case ArchMIPS32:
		v := *c.MIPS32
		nc.MIPS32 = &v
	case ArchMIPS64:
		v := *c.MIPS64
		nc.MIPS64 = &v
	case ArchPPC:
		v := *c.PPC
		nc.PPC = &v
	case ArchPPC64:
		v := *c.PPC64
		nc.PPC64 = &v
	case ArchSPARC:
		v := *c.SPARC
		nc.SPARC = &v
	case ArchRISCV32:
		v := *c.RISCV32
		nc.RISCV32 = &v
	case ArchRISCV64:
		v := *c.RISCV64
		nc.RISCV64 = &v
	}
	return nc
}

// SetPC overwrites the program counter on the active per-architecture
// struct.
func (c *Context) SetPC(v uint64) {
	switch c.Arch {
	case ArchX86:
		c.X86.EIP = uint32(v)
	case ArchAMD64:
		c.AMD64.RIP = v
	case ArchARM:
		c.ARM.R[15] = uint32(v)
	case ArchARM64:
		c.ARM64.PC = stripPAC(v)
	case ArchMIPS32:
		c.MIPS32.EPC = v
	case ArchMIPS64:
		c.MIPS64.EPC = v
	case ArchPPC:
		c.PPC.SRR0 = v
	case ArchPPC64:
		c.PPC64.SRR0 = v
	case ArchSPARC:
		c.SPARC.PC = v
	case ArchRISCV32:
		c.RISCV32.PC = v
	case ArchRISCV64:
		c.RISCV64.PC = v
	}
}

// SetSP overwrites the stack pointer on the active per-architecture
// struct.
func (c *Context) SetSP(v uint64) {
	switch c.Arch {
	case ArchX86:
		c.X86.ESP = uint32(v)
	case ArchAMD64:
		c.AMD64.RSP = v
	case ArchARM:
		c.ARM.R[13] = uint32(v)
	case ArchARM64:
		c.ARM64.SP = v
	case ArchMIPS32:
		c.MIPS32.SP = v
	case ArchMIPS64:
		c.MIPS64.SP = v
	case ArchPPC:
		c.PPC.GPR[1] = v
	case ArchPPC64:
		c.PPC64.GPR[1] = v
	case ArchSPARC:
		c.SPARC.GPR[14] = v
	case ArchRISCV32:
		c.RISCV32.SetSP(v)
	case ArchRISCV64:
		c.RISCV64.SetSP(v)
	}
}

// SetFP overwrites the conventional frame-pointer register on the
// active per-architecture struct, where one exists.
func (c *Context) SetFP(v uint64) {
	switch c.Arch {
	case ArchX86:
		c.X86.EBP = uint32(v)
	case ArchAMD64:
		c.AMD64.RBP = v
	case ArchARM:
		c.ARM.R[11] = uint32(v)
	case ArchARM64:
		c.ARM64.X[29] = v
	case ArchPPC:
		c.PPC.GPR[1] = v
	case ArchPPC64:
		c.PPC64.GPR[1] = v
	case ArchSPARC:
		c.SPARC.GPR[30] = v
	case ArchRISCV32:
		c.RISCV32.SetS0(v)
	case ArchRISCV64:
		c.RISCV64.SetS0(v)
	}
}

// RegisterValues returns every general-purpose register visible on this
// architecture as a name->value map, keyed the way breakpad-format CFI
// rules reference them (spec.md §4.3): bare register names, plus the
// pseudo-registers ".cfa" and ".ra" which the caller overlays separately.
func (c *Context) RegisterValues() map[string]uint64 {
	switch c.Arch {
	case ArchX86:
		return map[string]uint64{
			"eax": uint64(c.X86.EAX), "ebx": uint64(c.X86.EBX), "ecx": uint64(c.X86.ECX),
			"edx": uint64(c.X86.EDX), "esi": uint64(c.X86.ESI), "edi": uint64(c.X86.EDI),
			"ebp": uint64(c.X86.EBP), "esp": uint64(c.X86.ESP), "eip": uint64(c.X86.EIP),
		}
	case ArchAMD64:
		return map[string]uint64{
			"rax": c.AMD64.RAX, "rbx": c.AMD64.RBX, "rcx": c.AMD64.RCX, "rdx": c.AMD64.RDX,
			"rsi": c.AMD64.RSI, "rdi": c.AMD64.RDI, "rbp": c.AMD64.RBP, "rsp": c.AMD64.RSP,
			"r8": c.AMD64.R8, "r9": c.AMD64.R9, "r10": c.AMD64.R10, "r11": c.AMD64.R11,
			"r12": c.AMD64.R12, "r13": c.AMD64.R13, "r14": c.AMD64.R14, "r15": c.AMD64.R15,
			"rip": c.AMD64.RIP,
		}
	case ArchARM:
		m := map[string]uint64{"sp": uint64(c.ARM.R[13]), "lr": uint64(c.ARM.R[14]), "pc": uint64(c.ARM.R[15])}
		for i, v := range c.ARM.R {
			m[fmt_r(i)] = uint64(v)
		}
		return m
	case ArchARM64:
		m := map[string]uint64{"sp": c.ARM64.SP, "fp": c.ARM64.FP(), "lr": c.ARM64.LR(), "pc": c.ARM64.PC}
		for i, v := range c.ARM64.X {
			m[fmt_r(i)] = v
		}
		return m
	case ArchMIPS32:
		m := map[string]uint64{"sp": c.MIPS32.SP, "epc": c.MIPS32.EPC}
		for i, v := range c.MIPS32.GPR {
			m[fmt_r(i)] = v
		}
		return m
	case ArchMIPS64:
		m := map[string]uint64{"sp": c.MIPS64.SP, "epc": c.MIPS64.EPC}
		for i, v := range c.MIPS64.GPR {
			m[fmt_r(i)] = v
		}
		return m
	case ArchPPC:
		m := map[string]uint64{"srr0": uint64(c.PPC.SRR0)}
		for i, v := range c.PPC.GPR {
			m[fmt_r(i)] = uint64(v)
		}
		return m
	case ArchPPC64:
		m := map[string]uint64{"srr0": c.PPC64.SRR0}
		for i, v := range c.PPC64.GPR {
			m[fmt_r(i)] = v
		}
		return m
	case ArchSPARC:
		m := map[string]uint64{"pc": c.SPARC.PC}
		for i, v := range c.SPARC.GPR {
			m[fmt_r(i)] = uint64(v)
		}
		return m
	case ArchRISCV32:
		return map[string]uint64{"sp": c.RISCV32.SP(), "ra": c.RISCV32.RA(), "s0": c.RISCV32.S0(), "pc": uint64(c.RISCV32.PC)}
	case ArchRISCV64:
		return map[string]uint64{"sp": c.RISCV64.SP(), "ra": c.RISCV64.RA(), "s0": c.RISCV64.S0(), "pc": c.RISCV64.PC}
	default:
		return nil
	}
}

// SetRegister writes a named general-purpose register recovered by CFI
// evaluation (spec.md §4.3 "STACK CFI rules name registers by their
// conventional assembly names"). Unrecognized names are ignored: a
// symbol file may name a register this package doesn't model (e.g. a
// vector register), and the walker should keep whatever else it
// recovered rather than fail the whole frame over it.
func (c *Context) SetRegister(name string, v uint64) {
	switch c.Arch {
	case ArchX86:
		switch name {
		case "eax":
			c.X86.EAX = uint32(v)
		case "ebx":
			c.X86.EBX = uint32(v)
		case "ecx":
			c.X86.ECX = uint32(v)
		case "edx":
			c.X86.EDX = uint32(v)
		case "esi":
			c.X86.ESI = uint32(v)
		case "edi":
			c.X86.EDI = uint32(v)
		case "ebp":
			c.X86.EBP = uint32(v)
		case "esp":
			c.X86.ESP = uint32(v)
		case "eip":
			c.X86.EIP = uint32(v)
		}
	case ArchAMD64:
		switch name {
		case "rax":
			c.AMD64.RAX = v
		case "rbx":
			c.AMD64.RBX = v
		case "rcx":
			c.AMD64.RCX = v
		case "rdx":
			c.AMD64.RDX = v
		case "rsi":
			c.AMD64.RSI = v
		case "rdi":
			c.AMD64.RDI = v
		case "rbp":
			c.AMD64.RBP = v
		case "rsp":
			c.AMD64.RSP = v
		case "r8":
			c.AMD64.R8 = v
		case "r9":
			c.AMD64.R9 = v
		case "r10":
			c.AMD64.R10 = v
		case "r11":
			c.AMD64.R11 = v
		case "r12":
			c.AMD64.R12 = v
		case "r13":
			c.AMD64.R13 = v
		case "r14":
			c.AMD64.R14 = v
		case "r15":
			c.AMD64.R15 = v
		case "rip":
			c.AMD64.RIP = v
		}
	case ArchARM, ArchARM64, ArchMIPS32, ArchMIPS64, ArchPPC, ArchPPC64, ArchSPARC, ArchRISCV32, ArchRISCV64:
		// No register is written by name on these architectures: the
		// caller's SP and PC come from the evaluator's ".cfa"/".ra"
		// outputs via SetSP/SetPC, and every other recovered register,
		// the frame pointer included, is dropped.
	}
}

func fmt_r(i int) string {
	return "r" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [8]byte
	n := len(buf)
	for i > 0 {
		n--
		buf[n] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[n:])
}

// ArchForContextSize maps a THREAD_CONTEXT stream's byte size to the
// architecture it encodes, per spec.md §6. Returns ArchUnknown if the
// size matches none of the known layouts.
func ArchForContextSize(size int) Arch {
	switch size {
	case x86ContextSize:
		return ArchX86
	case amd64ContextSize:
		return ArchAMD64
	case armContextSize:
		return ArchARM
	case arm64ContextSize:
		return ArchARM64
	case mips32ContextSize:
		return ArchMIPS32
	case mips64ContextSize:
		return ArchMIPS64
	case ppcContextSize:
		return ArchPPC
	case ppc64ContextSize:
		return ArchPPC64
	case sparcContextSize:
		return ArchSPARC
	case riscv32ContextSize:
		return ArchRISCV32
	case riscv64ContextSize:
		return ArchRISCV64
	default:
		return ArchUnknown
	}
}

// Context record sizes, as captured by the dumper on each platform.
// x86 and amd64 sizes are bit-exact with the documented Windows
// CONTEXT structure (spec.md §6); the others follow the analogous
// minidump vendor extensions used by Breakpad/Crashpad for
// non-Windows architectures.
const (
	x86ContextSize     = 716
	amd64ContextSize   = 1232
	armContextSize     = 368
	arm64ContextSize   = 912
	mips32ContextSize  = 160
	mips64ContextSize  = 320
	ppcContextSize     = 320
	ppc64ContextSize   = 640
	sparcContextSize   = 400
	riscv32ContextSize = 160
	riscv64ContextSize = 320
)

// stripPAC clears the top 16 bits of an ARM64 return address, removing
// both the address-space top byte and any Pointer Authentication Code
// the hardware packs below it (spec.md §4.4: "top byte and PAC bits
// zeroed"). Only applied to addresses recovered off the stack as a
// caller PC — a thread's own live PC register is never PAC-signed.
func stripPAC(v uint64) uint64 {
	return v &^ (uint64(0xFFFF) << 48)
}
