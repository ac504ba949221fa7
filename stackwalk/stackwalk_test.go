// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stackwalk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/minidebug/minidump/cpuctx"
	"github.com/minidebug/minidump/minidump"
	"github.com/minidebug/minidump/module"
	"github.com/minidebug/minidump/symfile"
)

// alwaysInterruptSupplier simulates a Supplier whose lookup is always
// cancelled mid-call (e.g. a caller-enforced deadline firing before any
// network round trip completes).
type alwaysInterruptSupplier struct{}

func (alwaysInterruptSupplier) Locate(debugFile, debugIdentifier string) symfile.Lookup {
	return symfile.Lookup{Result: symfile.Interrupt}
}

// fakeMemory is a flat byte-addressable memory fixture for tests.
type fakeMemory map[uint64][]byte

func (m fakeMemory) ReadMemory(address minidump.Address, n int) ([]byte, error) {
	b, ok := m[uint64(address)]
	if !ok || len(b) < n {
		return nil, fmt.Errorf("no memory at %#x", uint64(address))
	}
	return b[:n], nil
}

func putWord64(m fakeMemory, addr, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	m[addr] = b
}

func amd64Context(rsp, rbp, rip uint64) *cpuctx.Context {
	return &cpuctx.Context{
		Arch: cpuctx.ArchAMD64,
		AMD64: &cpuctx.AMD64Context{
			RSP: rsp, RBP: rbp, RIP: rip,
		},
	}
}

func TestWalkFramePointerChain(t *testing.T) {
	mem := fakeMemory{}
	// Frame 0: RSP=0x1000, RBP=0x1000, RIP=main+0x10.
	// [RBP] = saved RBP (0x1100), [RBP+8] = return address (caller+0x20).
	putWord64(mem, 0x1000, 0x1100)
	putWord64(mem, 0x1008, 0x402020)
	// Frame 1's own frame pointer chain terminates: RBP=0x1100 points to a
	// zero saved-FP/zero-RA pair, which the walker should refuse to
	// follow further (PC==0 is a termination condition).
	putWord64(mem, 0x1100, 0)
	putWord64(mem, 0x1108, 0)

	mods := module.NewRegistry([]*module.Module{
		{BaseAddress: 0x400000, Size: 0x10000, Name: "main"},
	})

	ctx := amd64Context(0x1000, 0x1000, 0x401010)
	stack, err := Walk(ctx, mem, mods, nil, Options{Amd64UseFP: true})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(stack) != 2 {
		t.Fatalf("len(stack) = %d, want 2: %+v", len(stack), stack)
	}
	if stack[0].Trust != TrustContext {
		t.Errorf("frame0 trust = %v, want Context", stack[0].Trust)
	}
	if stack[1].Trust != TrustFramePointer {
		t.Errorf("frame1 trust = %v, want FramePointer", stack[1].Trust)
	}
	if stack[1].Context.PC() != 0x402020 {
		t.Errorf("frame1 PC = %#x, want 0x402020", stack[1].Context.PC())
	}
	if stack[1].Context.SP() != 0x1010 {
		t.Errorf("frame1 SP = %#x, want 0x1010", stack[1].Context.SP())
	}
}

func TestWalkAmd64FramePointerDisabledByDefault(t *testing.T) {
	mem := fakeMemory{}
	putWord64(mem, 0x1000, 0x1100)
	putWord64(mem, 0x1008, 0x402020)

	ctx := amd64Context(0x1000, 0x1000, 0x401010)
	stack, err := Walk(ctx, mem, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(stack) != 1 {
		t.Fatalf("len(stack) = %d, want 1 (fp strategy must require Amd64UseFP)", len(stack))
	}
}

func TestWalkEmptyModuleListReturnsFrameZeroOnly(t *testing.T) {
	ctx := amd64Context(0x1000, 0, 0x401010)
	stack, err := Walk(ctx, fakeMemory{}, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(stack) != 1 || stack[0].Module != nil {
		t.Fatalf("stack = %+v, want one module-less frame", stack)
	}
}

func TestWalkStackScanFallback(t *testing.T) {
	mods := module.NewRegistry([]*module.Module{
		{BaseAddress: 0x400000, Size: 0x10000, Name: "main"},
	})
	mem := fakeMemory{}
	// No frame-pointer chain (RBP=0 means [0] unreadable); plant a
	// plausible return address a few words up the stack.
	putWord64(mem, 0x1000, 0xdeadbeef) // garbage, not in any module
	putWord64(mem, 0x1008, 0x401234)   // looks like a return address
	mem[0x401233] = []byte{0xe8}       // non-zero byte preceding it

	ctx := amd64Context(0x1000, 0, 0x401010)
	stack, err := Walk(ctx, mem, mods, nil, Options{AllowScan: true})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(stack) != 2 {
		t.Fatalf("len(stack) = %d, want 2: %+v", len(stack), stack)
	}
	if stack[1].Trust != TrustScan {
		t.Errorf("frame1 trust = %v, want Scan", stack[1].Trust)
	}
	if stack[1].Context.PC() != 0x401234 {
		t.Errorf("frame1 PC = %#x, want 0x401234", stack[1].Context.PC())
	}
}

func TestWalkARM64FramePointerStripsPAC(t *testing.T) {
	mem := fakeMemory{}
	// [FP] = saved FP (0), [FP+8] = a PAC-signed return address.
	putWord64(mem, 0x2000, 0)
	putWord64(mem, 0x2008, 0xabcd000000401234)

	ctx := &cpuctx.Context{
		Arch: cpuctx.ArchARM64,
		ARM64: &cpuctx.ARM64Context{
			SP: 0x2000,
			PC: 0x401010,
		},
	}
	ctx.ARM64.X[29] = 0x2000 // FP

	stack, err := Walk(ctx, mem, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(stack) != 2 {
		t.Fatalf("len(stack) = %d, want 2: %+v", len(stack), stack)
	}
	if got, want := stack[1].Context.PC(), uint64(0x401234); got != want {
		t.Errorf("frame1 PC = %#x, want %#x (PAC bits stripped)", got, want)
	}
}

func TestWalkSPARCNeverScans(t *testing.T) {
	mem := fakeMemory{}
	// Plant a plausible-looking return address above SP, exactly as
	// TestWalkStackScanFallback does, so a finding here would only be
	// possible through the (disallowed) scan strategy.
	putWord64(mem, 0x1000, 0xdeadbeef)
	putWord64(mem, 0x1008, 0x401234)
	mem[0x401233] = []byte{0xe8}

	mods := module.NewRegistry([]*module.Module{
		{BaseAddress: 0x400000, Size: 0x10000, Name: "main"},
	})

	ctx := &cpuctx.Context{
		Arch: cpuctx.ArchSPARC,
		SPARC: &cpuctx.SPARCContext{
			PC: 0x401010,
		},
	}
	ctx.SPARC.GPR[14] = 0x1000 // SP (O6)
	ctx.SPARC.GPR[30] = 0      // FP (I6): unreadable, no frame-pointer chain

	stack, err := Walk(ctx, mem, mods, nil, Options{AllowScan: true})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(stack) != 1 {
		t.Fatalf("len(stack) = %d, want 1 (scan must be disabled on SPARC): %+v", len(stack), stack)
	}
}

// TestWalkTruncatesAtInterruptedModule covers spec.md §8 scenario 6: a
// Supplier interruption truncates the stack at the frame whose module
// triggered it, leaving every earlier frame intact.
func TestWalkTruncatesAtInterruptedModule(t *testing.T) {
	mem := fakeMemory{}
	putWord64(mem, 0x1000, 0x1100)
	putWord64(mem, 0x1008, 0x402020)

	// Frame 0's PC (0x401010) sits outside every registered module, so
	// recovering and annotating it never touches the resolver; only
	// frame 1's PC (0x402020) falls inside "main" and triggers the
	// interrupt once the walker tries to symbolicate it.
	mods := module.NewRegistry([]*module.Module{
		{BaseAddress: 0x402000, Size: 0x1000, Name: "main", DebugFile: "main", DebugIdentifier: "ID1"},
	})
	resolver, err := symfile.NewResolver(alwaysInterruptSupplier{}, 0)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	ctx := amd64Context(0x1000, 0x1000, 0x401010)
	stack, err := Walk(ctx, mem, mods, resolver, Options{Amd64UseFP: true})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Walk err = %v, want ErrInterrupted", err)
	}
	if len(stack) != 2 {
		t.Fatalf("len(stack) = %d, want 2 (truncated at the interrupting frame, not before it): %+v", len(stack), stack)
	}
	if stack[0].Context.PC() != 0x401010 {
		t.Errorf("frame0 PC = %#x, want 0x401010 (earlier frames intact)", stack[0].Context.PC())
	}
	if stack[1].Module == nil || stack[1].Module.Name != "main" {
		t.Errorf("frame1 Module = %+v, want main (the frame whose module triggered the interrupt)", stack[1].Module)
	}
	if stack[1].FunctionName != "" {
		t.Errorf("frame1 FunctionName = %q, want unset: symbolication never completed", stack[1].FunctionName)
	}
}

func TestWalkRespectsMaxFrames(t *testing.T) {
	// A frame-pointer chain that loops forever (RBP always points back
	// at the same slot, RA always nonzero and always > prior SP) would
	// hang without a budget; craft a strictly-increasing chain instead
	// and cap MaxFrames low to confirm the budget, not termination
	// logic, is what stops the walk.
	mem := fakeMemory{}
	for i := uint64(0); i < 20; i++ {
		base := 0x1000 + i*0x100
		putWord64(mem, base, base+0x100)
		putWord64(mem, base+8, 0x402000+i)
	}
	ctx := amd64Context(0x1000, 0x1000, 0x401010)
	stack, err := Walk(ctx, mem, nil, nil, Options{Amd64UseFP: true, MaxFrames: 5})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(stack) != 5 {
		t.Fatalf("len(stack) = %d, want 5 (MaxFrames budget)", len(stack))
	}
}
