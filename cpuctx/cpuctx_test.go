// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpuctx

import "testing"

func TestPCSPFPDispatchPerArchitecture(t *testing.T) {
	tests := []struct {
		name   string
		ctx    *Context
		pc, sp uint64
		fp     uint64
		hasFP  bool
	}{
		{
			name: "amd64",
			ctx:  &Context{Arch: ArchAMD64, AMD64: &AMD64Context{RIP: 0x401000, RSP: 0x7000, RBP: 0x7010}},
			pc:   0x401000, sp: 0x7000, fp: 0x7010, hasFP: true,
		},
		{
			name: "arm64",
			ctx: &Context{Arch: ArchARM64, ARM64: &ARM64Context{
				PC: 0x401000, SP: 0x7000,
				X: [31]uint64{29: 0x7010},
			}},
			pc: 0x401000, sp: 0x7000, fp: 0x7010, hasFP: true,
		},
		{
			name: "mips64 has no FP convention",
			ctx:  &Context{Arch: ArchMIPS64, MIPS64: &MIPSContext{EPC: 0x401000, SP: 0x7000}},
			pc:   0x401000, sp: 0x7000, fp: 0, hasFP: false,
		},
		{
			name: "riscv64",
			ctx:  &Context{Arch: ArchRISCV64, RISCV64: &RISCVContext{PC: 0x401000, X: [32]uint64{2: 0x7000, 8: 0x7010}}},
			pc:   0x401000, sp: 0x7000, fp: 0x7010, hasFP: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.PC(); got != tt.pc {
				t.Errorf("PC() = %#x, want %#x", got, tt.pc)
			}
			if got := tt.ctx.SP(); got != tt.sp {
				t.Errorf("SP() = %#x, want %#x", got, tt.sp)
			}
			fp, ok := tt.ctx.FP()
			if ok != tt.hasFP {
				t.Fatalf("FP() ok = %v, want %v", ok, tt.hasFP)
			}
			if ok && fp != tt.fp {
				t.Errorf("FP() = %#x, want %#x", fp, tt.fp)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	ctx := &Context{Arch: ArchAMD64, AMD64: &AMD64Context{RIP: 0x1000, RSP: 0x2000}}
	clone := ctx.Clone()
	clone.SetPC(0x9999)
	clone.SetSP(0x8888)

	if ctx.PC() != 0x1000 || ctx.SP() != 0x2000 {
		t.Errorf("original mutated by clone: PC=%#x SP=%#x", ctx.PC(), ctx.SP())
	}
	if clone.PC() != 0x9999 || clone.SP() != 0x8888 {
		t.Errorf("clone not updated: PC=%#x SP=%#x", clone.PC(), clone.SP())
	}
}

func TestSetPCStripsARM64PAC(t *testing.T) {
	ctx := &Context{Arch: ArchARM64, ARM64: &ARM64Context{}}
	ctx.SetPC(0xabcd000000401234)
	if got, want := ctx.PC(), uint64(0x401234); got != want {
		t.Errorf("PC() = %#x, want %#x", got, want)
	}
}

func TestSetPCLeavesOtherArchitecturesUnmasked(t *testing.T) {
	ctx := &Context{Arch: ArchAMD64, AMD64: &AMD64Context{}}
	ctx.SetPC(0xabcd000000401234)
	if got, want := ctx.PC(), uint64(0xabcd000000401234); got != want {
		t.Errorf("PC() = %#x, want %#x (amd64 must not be PAC-masked)", got, want)
	}
}

func TestRegisterValuesAndSetRegisterRoundTripAMD64(t *testing.T) {
	ctx := &Context{Arch: ArchAMD64, AMD64: &AMD64Context{RBX: 1, R12: 2}}
	vals := ctx.RegisterValues()
	if vals["rbx"] != 1 || vals["r12"] != 2 {
		t.Fatalf("RegisterValues() = %+v, want rbx=1 r12=2", vals)
	}

	ctx.SetRegister("rbx", 0x42)
	if ctx.AMD64.RBX != 0x42 {
		t.Errorf("SetRegister(rbx) = %#x, want 0x42", ctx.AMD64.RBX)
	}
	ctx.SetRegister("not_a_real_register", 0xff) // must be silently ignored
}

func TestWordSize(t *testing.T) {
	tests := []struct {
		arch Arch
		want int64
	}{
		{ArchX86, 4}, {ArchARM, 4}, {ArchMIPS32, 4}, {ArchPPC, 4}, {ArchRISCV32, 4},
		{ArchAMD64, 8}, {ArchARM64, 8}, {ArchMIPS64, 8}, {ArchPPC64, 8}, {ArchSPARC, 8}, {ArchRISCV64, 8},
		{ArchUnknown, 0},
	}
	for _, tt := range tests {
		if got := tt.arch.WordSize(); got != tt.want {
			t.Errorf("%v.WordSize() = %d, want %d", tt.arch, got, tt.want)
		}
	}
}

func TestArchFromContextSize(t *testing.T) {
	tests := []struct {
		size int
		want Arch
	}{
		{x86ContextSize, ArchX86},
		{amd64ContextSize, ArchAMD64},
		{armContextSize, ArchARM},
		{arm64ContextSize, ArchARM64},
		{999999, ArchUnknown},
	}
	for _, tt := range tests {
		if got := ArchForContextSize(tt.size); got != tt.want {
			t.Errorf("ArchForContextSize(%d) = %v, want %v", tt.size, got, tt.want)
		}
	}
}
