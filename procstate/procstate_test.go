// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package procstate

import (
	"errors"
	"testing"

	"github.com/minidebug/minidump/cpuctx"
	"github.com/minidebug/minidump/minidump"
	"github.com/minidebug/minidump/module"
	"github.com/minidebug/minidump/stackwalk"
	"github.com/minidebug/minidump/symfile"
)

// noMemory is a stackwalk.MemorySource that never has anything to
// offer; the interrupt-propagation tests below never need to read
// crashed-process memory, since the interrupt fires while annotating
// frame 0 itself.
type noMemory struct{}

func (noMemory) ReadMemory(address minidump.Address, n int) ([]byte, error) {
	return nil, errors.New("no memory")
}

// alwaysInterruptSupplier simulates a Supplier whose lookup is always
// cancelled mid-call.
type alwaysInterruptSupplier struct{}

func (alwaysInterruptSupplier) Locate(debugFile, debugIdentifier string) symfile.Lookup {
	return symfile.Lookup{Result: symfile.Interrupt}
}

func TestCrashReasonLinuxSIGSEGV(t *testing.T) {
	tests := []struct {
		flags uint32
		want  string
	}{
		{1, "SIGSEGV /MAPERR"},
		{2, "SIGSEGV /ACCERR"},
	}
	for _, tt := range tests {
		if got := CrashReason(minidump.PlatformLinux, 11, tt.flags); got != tt.want {
			t.Errorf("CrashReason(Linux, 11, %d) = %q, want %q", tt.flags, got, tt.want)
		}
	}
}

func TestCrashReasonMacOSBadAccess(t *testing.T) {
	if got := CrashReason(minidump.PlatformMacOS, 0x1, 0); got != "EXC_BAD_ACCESS" {
		t.Errorf("CrashReason(macOS, 0x1, 0) = %q, want EXC_BAD_ACCESS", got)
	}
}

func TestCrashReasonUnknownFallsBackToHex(t *testing.T) {
	if got := CrashReason(minidump.PlatformWindows, 0xC0000005, 0); got != "0xc0000005" {
		t.Errorf("CrashReason(Windows, 0xC0000005, 0) = %q, want 0xc0000005", got)
	}
}

func TestSelectCrashContextFromException(t *testing.T) {
	threads := []*minidump.Thread{{ThreadID: 10}, {ThreadID: 20}}
	exc := &minidump.Exception{ThreadID: 20, ExceptionCode: 11, ExceptionFlags: 1, ExceptionAddress: 0xdead}
	ps := &ProcessState{SystemInfo: &minidump.SystemInfo{PlatformID: uint32(minidump.PlatformLinux)}}

	selectCrashContext(ps, threads, exc, nil)

	if !ps.Crashed {
		t.Fatal("Crashed = false, want true")
	}
	if ps.RequestingThreadIndex != 1 {
		t.Errorf("RequestingThreadIndex = %d, want 1", ps.RequestingThreadIndex)
	}
	if ps.CrashAddress != 0xdead {
		t.Errorf("CrashAddress = %#x, want 0xdead", ps.CrashAddress)
	}
	if ps.CrashReason != "SIGSEGV /MAPERR" {
		t.Errorf("CrashReason = %q, want SIGSEGV /MAPERR", ps.CrashReason)
	}
}

func TestSelectCrashContextExceptionThreadNotInList(t *testing.T) {
	threads := []*minidump.Thread{{ThreadID: 10}}
	exc := &minidump.Exception{ThreadID: 999, ExceptionCode: 11, ExceptionAddress: 0x1}
	ps := &ProcessState{}

	selectCrashContext(ps, threads, exc, nil)

	if !ps.Crashed {
		t.Error("Crashed = false, want true (exception stream present)")
	}
	if ps.RequestingThreadIndex != -1 {
		t.Errorf("RequestingThreadIndex = %d, want -1 (thread_id not present in ThreadList)", ps.RequestingThreadIndex)
	}
}

func TestSelectCrashContextFallsBackToBreakpadDumpThread(t *testing.T) {
	threads := []*minidump.Thread{{ThreadID: 10}, {ThreadID: 20}}
	bi := &minidump.BreakpadInfo{DumpThreadValid: true, DumpThreadID: 10}
	ps := &ProcessState{}

	selectCrashContext(ps, threads, nil, bi)

	if ps.Crashed {
		t.Error("Crashed = true, want false (no exception stream)")
	}
	if ps.RequestingThreadIndex != 0 {
		t.Errorf("RequestingThreadIndex = %d, want 0", ps.RequestingThreadIndex)
	}
}

func TestSelectCrashContextFallsBackToThreadZero(t *testing.T) {
	threads := []*minidump.Thread{{ThreadID: 10}}
	ps := &ProcessState{}

	selectCrashContext(ps, threads, nil, nil)

	if ps.Crashed {
		t.Error("Crashed = true, want false")
	}
	if ps.RequestingThreadIndex != 0 {
		t.Errorf("RequestingThreadIndex = %d, want 0", ps.RequestingThreadIndex)
	}
}

func TestSelectCrashContextNoThreadsAtAll(t *testing.T) {
	ps := &ProcessState{}
	selectCrashContext(ps, nil, nil, nil)
	if ps.RequestingThreadIndex != -1 {
		t.Errorf("RequestingThreadIndex = %d, want -1", ps.RequestingThreadIndex)
	}
}

func TestStatusCorruptDumpWhenSystemInfoMissing(t *testing.T) {
	ps := &ProcessState{}
	if got := status(ps, false); got != "corrupt_dump" {
		t.Errorf("status = %q, want corrupt_dump", got)
	}
}

func TestStatusInterruptedTakesPriorityOverCrashed(t *testing.T) {
	ps := &ProcessState{SystemInfo: &minidump.SystemInfo{}, Crashed: true}
	if got := status(ps, true); got != "interrupted" {
		t.Errorf("status = %q, want interrupted", got)
	}
}

func TestStatusCrashedAndNoCrashContext(t *testing.T) {
	ps := &ProcessState{SystemInfo: &minidump.SystemInfo{}, Crashed: true}
	if got := status(ps, false); got != "crashed" {
		t.Errorf("status = %q, want crashed", got)
	}
	ps.Crashed = false
	if got := status(ps, false); got != "no crash context" {
		t.Errorf("status = %q, want \"no crash context\"", got)
	}
}

const sampleSym = `MODULE Linux x86_64 000000000000000000000000000000000 a.out
FUNC 1000 10 0 main
1000 10 42 1
`

const corruptSym = `MODULE Linux x86_64 000000000000000000000000000000000 b.out
FUNC notahexnumber 10 0 broken
`

func TestInventorySymbolsClassifiesEveryOutcome(t *testing.T) {
	supplier := symfile.MapSupplier{
		"a.out/ID-FOUND":   []byte(sampleSym),
		"b.out/ID-CORRUPT": []byte(corruptSym),
	}
	resolver, err := symfile.NewResolver(supplier, 0)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	found := &module.Module{Name: "a.out", DebugFile: "a.out", DebugIdentifier: "ID-FOUND", BaseAddress: 0x1000, Size: 0x1000}
	corrupt := &module.Module{Name: "b.out", DebugFile: "b.out", DebugIdentifier: "ID-CORRUPT", BaseAddress: 0x2000, Size: 0x1000}
	missing := &module.Module{Name: "c.out", DebugFile: "c.out", DebugIdentifier: "ID-MISSING", BaseAddress: 0x3000, Size: 0x1000}

	ps := &ProcessState{
		ModulesWithoutSymbols:     map[string]string{},
		ModulesWithCorruptSymbols: map[string]string{},
		Threads: []*ThreadState{{
			ThreadID: 1,
			Stack: stackwalk.CallStack{
				{Module: found},
				{Module: corrupt},
				{Module: missing},
			},
		}},
	}

	interrupted := inventorySymbols(ps, resolver)

	if interrupted {
		t.Error("interrupted = true, want false")
	}
	if len(ps.ModulesWithoutSymbols) != 1 || ps.ModulesWithoutSymbols["c.out"] == "" {
		t.Errorf("ModulesWithoutSymbols = %+v, want entry for c.out", ps.ModulesWithoutSymbols)
	}
	if len(ps.ModulesWithCorruptSymbols) != 1 || ps.ModulesWithCorruptSymbols["b.out"] == "" {
		t.Errorf("ModulesWithCorruptSymbols = %+v, want entry for b.out", ps.ModulesWithCorruptSymbols)
	}
	if _, stillMissing := ps.ModulesWithoutSymbols["a.out"]; stillMissing {
		t.Error("a.out recorded as missing symbols, want resolved cleanly")
	}
}

// TestWalkThreadsStopsAfterSupplierInterrupt covers spec.md §5/§8
// scenario 6 at the procstate level: once one thread's walk is
// interrupted, every later thread is left absent rather than walked.
func TestWalkThreadsStopsAfterSupplierInterrupt(t *testing.T) {
	mods := module.NewRegistry([]*module.Module{
		{Name: "a.out", DebugFile: "a.out", DebugIdentifier: "ID1", BaseAddress: 0x400000, Size: 0x1000},
	})
	resolver, err := symfile.NewResolver(alwaysInterruptSupplier{}, 0)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	mkCtx := func(pc uint64) *cpuctx.Context {
		return &cpuctx.Context{Arch: cpuctx.ArchAMD64, AMD64: &cpuctx.AMD64Context{RIP: pc, RSP: 0x1000}}
	}
	threads := []*minidump.Thread{
		{ThreadID: 1, Context: mkCtx(0x400010)},
		{ThreadID: 2, Context: mkCtx(0x400020)},
	}
	ps := &ProcessState{RequestingThreadIndex: -1, Threads: make([]*ThreadState, len(threads))}

	interrupted, err := walkThreads(ps, threads, noMemory{}, mods, resolver, nil, ProcessorOptions{})
	if err != nil {
		t.Fatalf("walkThreads: %v", err)
	}
	if !interrupted {
		t.Fatal("interrupted = false, want true")
	}
	if ps.Threads[0] == nil || !errors.Is(ps.Threads[0].Err, stackwalk.ErrInterrupted) {
		t.Errorf("Threads[0] = %+v, want Err wrapping stackwalk.ErrInterrupted", ps.Threads[0])
	}
	if len(ps.Threads[0].Stack) != 1 {
		t.Errorf("Threads[0].Stack = %+v, want the one frame recovered before the interrupt", ps.Threads[0].Stack)
	}
	if ps.Threads[1] != nil {
		t.Errorf("Threads[1] = %+v, want nil (absent past the interruption point)", ps.Threads[1])
	}
}

// TestWalkThreadsSkipsUnknownArchitectureContext covers the
// minidump.ErrUnknownArchitecture path: a thread whose context couldn't
// be decoded is recorded with its error and never handed to Walk, which
// would otherwise panic dereferencing a nil *cpuctx.Context.
func TestWalkThreadsSkipsUnknownArchitectureContext(t *testing.T) {
	threads := []*minidump.Thread{
		{ThreadID: 1, Context: nil, ContextErr: minidump.ErrUnknownArchitecture},
	}
	ps := &ProcessState{RequestingThreadIndex: -1, Threads: make([]*ThreadState, len(threads))}

	interrupted, err := walkThreads(ps, threads, noMemory{}, nil, nil, nil, ProcessorOptions{})
	if err != nil {
		t.Fatalf("walkThreads: %v", err)
	}
	if interrupted {
		t.Error("interrupted = true, want false")
	}
	if ps.Threads[0] == nil || !errors.Is(ps.Threads[0].Err, minidump.ErrUnknownArchitecture) {
		t.Errorf("Threads[0] = %+v, want Err = ErrUnknownArchitecture", ps.Threads[0])
	}
	if ps.Threads[0].Stack != nil {
		t.Errorf("Threads[0].Stack = %+v, want nil (never walked)", ps.Threads[0].Stack)
	}
}

func TestMissingSymbolsMergesBothMaps(t *testing.T) {
	ps := &ProcessState{
		ModulesWithoutSymbols:     map[string]string{"a.out": "no symbols: not found"},
		ModulesWithCorruptSymbols: map[string]string{"b.out": "corrupt symbols: bad header"},
	}
	merged := ps.MissingSymbols()
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	if merged["a.out"] == "" || merged["b.out"] == "" {
		t.Errorf("merged = %+v, want both keys populated", merged)
	}
}
