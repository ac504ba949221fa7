// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stackwalk reconstructs a thread's call stack from an initial
// CPU context, a map of loaded modules, and a symbol Resolver (spec.md
// §4.4). It never blocks on I/O except through the Resolver's Supplier.
package stackwalk

import (
	"errors"

	"github.com/minidebug/minidump/cpuctx"
	"github.com/minidebug/minidump/minidump"
	"github.com/minidebug/minidump/module"
	"github.com/minidebug/minidump/symfile"
)

// ErrInterrupted is returned by Walk, alongside a valid partial
// CallStack, when the Supplier aborted a symbol lookup mid-walk
// (spec.md §5 "the walker propagates this as InterruptedByCallback").
// The returned stack is truncated at the frame whose module triggered
// the interrupt; every earlier frame is intact (spec.md §8 scenario 6).
var ErrInterrupted = errors.New("stackwalk: symbol supplier interrupted the walk")

// interruptState is threaded through the recovery strategies so any
// Resolve call that comes back Interrupted halts the walk immediately
// instead of falling through to a weaker strategy.
type interruptState struct {
	hit bool
}

// TrustLevel ranks how a frame's registers were recovered; a higher
// value is more reliable, from TrustNone up to TrustContext (spec.md
// §4.4, §8 "F.trust ∈ {Context} ⇒ frame-0").
type TrustLevel int

const (
	TrustNone TrustLevel = iota
	TrustScan
	TrustInlineExpansion
	TrustFramePointer
	TrustCFI
	TrustContext
)

func (t TrustLevel) String() string {
	switch t {
	case TrustContext:
		return "Context"
	case TrustCFI:
		return "CFI"
	case TrustFramePointer:
		return "FramePointer"
	case TrustInlineExpansion:
		return "InlineExpansion"
	case TrustScan:
		return "Scan"
	default:
		return "None"
	}
}

// Frame is one recovered stack frame, innermost (frame 0) first.
type Frame struct {
	Context *cpuctx.Context
	Trust   TrustLevel

	Module       *module.Module
	FunctionName string
	SourceFile   string
	SourceLine   int

	// Inline is true for a synthesized frame representing one level of
	// inlining at the physical frame that precedes it in the CallStack
	// (spec.md §4.4 "Inline expansion").
	Inline bool
}

// CallStack is a non-empty, ordered sequence of frames, innermost first.
type CallStack []*Frame

// MemorySource is the read access a walk needs into the crashed
// process's memory. *minidump.Reader and *minidump.File satisfy this
// directly.
type MemorySource interface {
	ReadMemory(address minidump.Address, n int) ([]byte, error)
}

// Options configures a walk (spec.md §9 "Global mutable state... replaced
// with explicit configuration structs").
type Options struct {
	// AllowScan permits the stack-scan fallback strategy.
	AllowScan bool
	// MaxFrames bounds the total frames produced, default 1024.
	MaxFrames int
	// MaxSearchWords bounds how far a stack scan looks, default 1024
	// (30 for the frame 0→1 transition specifically, per spec.md §4.4).
	MaxSearchWords int
	// Amd64UseFP enables the frame-pointer strategy on amd64, which the
	// source enables based on ad-hoc per-module build metadata; this
	// spec defaults it off (spec.md §9 "Open questions").
	Amd64UseFP bool
}

const (
	defaultMaxFrames            = 1024
	defaultMaxSearchWords       = 1024
	defaultMaxSearchWordsFrame1 = 30
)

func (o Options) maxFrames() int {
	if o.MaxFrames > 0 {
		return o.MaxFrames
	}
	return defaultMaxFrames
}

func (o Options) maxSearchWords(frameIndex int) int {
	if o.MaxSearchWords > 0 {
		return o.MaxSearchWords
	}
	if frameIndex == 0 {
		return defaultMaxSearchWordsFrame1
	}
	return defaultMaxSearchWords
}

// Walk reconstructs a CallStack starting from initialContext. modules
// may be nil (empty ModuleList, spec.md §8 "walker returns frame-0 only,
// with module = None"). resolver may be nil, meaning no symbolication is
// attempted and every frame after frame-0 is recovered by frame-pointer
// or scan alone.
//
// If the Supplier interrupts a lookup mid-walk, Walk returns the partial
// stack built so far alongside ErrInterrupted (spec.md §5, §8 scenario
// 6); callers should still use the returned stack, not discard it.
func Walk(initialContext *cpuctx.Context, mem MemorySource, modules *module.Registry, resolver *symfile.Resolver, opts Options) (CallStack, error) {
	ist := &interruptState{}
	frame0 := &Frame{Context: initialContext, Trust: TrustContext}
	annotate(frame0, modules, resolver, ist)

	stack := CallStack{frame0}
	stack = appendInlineFrames(stack, frame0, modules, resolver, ist)
	if ist.hit {
		return stack, ErrInterrupted
	}

	for len(stack) < opts.maxFrames() {
		callee := lastPhysicalFrame(stack)
		frameIndex := physicalFrameCount(stack) - 1
		next := recoverCaller(callee, frameIndex, mem, modules, resolver, opts, ist)
		if next == nil {
			if ist.hit {
				return stack, ErrInterrupted
			}
			break
		}
		if terminate(next) {
			break
		}
		stack = append(stack, next)
		stack = appendInlineFrames(stack, next, modules, resolver, ist)
		if ist.hit {
			return stack, ErrInterrupted
		}
	}
	return stack, nil
}

func lastPhysicalFrame(stack CallStack) *Frame {
	for i := len(stack) - 1; i >= 0; i-- {
		if !stack[i].Inline {
			return stack[i]
		}
	}
	return stack[len(stack)-1]
}

func physicalFrameCount(stack CallStack) int {
	n := 0
	for _, f := range stack {
		if !f.Inline {
			n++
		}
	}
	return n
}

// recoverCaller attempts each strategy in spec.md §4.4's fixed order,
// returning the first plausible result. A Resolve interruption inside
// cfiUnwind or winUnwind (needed before either can even produce a
// candidate frame) halts recovery outright rather than falling through
// to a weaker strategy; an interruption while annotating a frame that
// framePointerWalk/stackScan already built still returns that frame, so
// the walk's caller can include it before truncating (spec.md §5, §8
// scenario 6).
func recoverCaller(callee *Frame, frameIndex int, mem MemorySource, modules *module.Registry, resolver *symfile.Resolver, opts Options, ist *interruptState) *Frame {
	if f := cfiUnwind(callee, mem, modules, resolver, ist); ist.hit {
		return nil
	} else if f != nil && plausible(callee, f, modules, opts) {
		annotate(f, modules, resolver, ist)
		return f
	}
	if callee.Context.Arch == cpuctx.ArchX86 {
		if f := winUnwind(callee, mem, modules, resolver, ist); ist.hit {
			return nil
		} else if f != nil && plausible(callee, f, modules, opts) {
			annotate(f, modules, resolver, ist)
			return f
		}
	}
	if f := framePointerWalk(callee, mem, opts); f != nil && plausible(callee, f, modules, opts) {
		annotate(f, modules, resolver, ist)
		return f
	}
	// SPARC's register windows make the scan heuristic unreliable: a
	// stale window slot on the stack looks exactly like a plausible
	// return address, so SPARC is restricted to CFI and frame-pointer
	// recovery only (spec.md §4.4).
	if opts.AllowScan && callee.Context.Arch != cpuctx.ArchSPARC {
		if f := stackScan(callee, frameIndex, mem, modules, opts); f != nil && plausible(callee, f, modules, opts) {
			annotate(f, modules, resolver, ist)
			return f
		}
	}
	return nil
}

// plausible accepts a candidate caller frame when its SP is strictly
// above the callee's, its PC is non-zero, and, unless scanning is
// allowed, its PC lies inside a known module. Stack bounds and the
// caller's frame pointer are not checked.
func plausible(callee, caller *Frame, modules *module.Registry, opts Options) bool {
	calleeSP := callee.Context.SP()
	callerSP := caller.Context.SP()
	if callerSP <= calleeSP { // every supported architecture's stack grows down
		return false
	}
	pc := caller.Context.PC()
	if pc == 0 {
		return false
	}
	if modules != nil && modules.ModuleAtAddress(pc) == nil && !opts.AllowScan {
		return false
	}
	return true
}

// terminate reports whether the walk stops at f instead of appending
// it: only a zero PC does; no process-entry sentinel address is
// checked. The frame budget is the Walk loop bound itself.
func terminate(f *Frame) bool {
	return f.Context.PC() == 0
}

func annotate(f *Frame, modules *module.Registry, resolver *symfile.Resolver, ist *interruptState) {
	if modules == nil {
		return
	}
	mod := modules.ModuleAtAddress(f.Context.PC())
	if mod == nil {
		return
	}
	f.Module = mod
	if resolver == nil {
		return
	}
	tbl, outcome, err := resolver.Resolve(mod.DebugFile, mod.DebugIdentifier)
	if outcome == symfile.Interrupted {
		ist.hit = true
		return
	}
	if err != nil || outcome != symfile.Resolved || tbl == nil {
		return
	}
	rva := f.Context.PC() - mod.BaseAddress
	if name, file, line, ok := symfile.FillSourceLine(tbl, rva); ok {
		f.FunctionName = name
		f.SourceFile = file
		f.SourceLine = line
	}
}

// appendInlineFrames synthesizes one additional Frame per inline nesting
// level active at physical's PC, each sharing physical's SP (spec.md
// §4.4 "Inline expansion"), and appends them after physical.
func appendInlineFrames(stack CallStack, physical *Frame, modules *module.Registry, resolver *symfile.Resolver, ist *interruptState) CallStack {
	if modules == nil || resolver == nil || physical.Module == nil {
		return stack
	}
	tbl, outcome, err := resolver.Resolve(physical.Module.DebugFile, physical.Module.DebugIdentifier)
	if outcome == symfile.Interrupted {
		ist.hit = true
		return stack
	}
	if err != nil || outcome != symfile.Resolved || tbl == nil {
		return stack
	}
	rva := physical.Context.PC() - physical.Module.BaseAddress
	for _, in := range symfile.FillInlineFrames(tbl, rva) {
		stack = append(stack, &Frame{
			Context:      physical.Context,
			Trust:        TrustInlineExpansion,
			Module:       physical.Module,
			FunctionName: in.FunctionName,
			SourceFile:   in.CallSiteFile,
			SourceLine:   in.CallSiteLine,
			Inline:       true,
		})
	}
	return stack
}
