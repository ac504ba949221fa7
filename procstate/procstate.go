// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package procstate assembles a Reader's per-thread contexts and a
// module.Registry into a whole-process view: which thread (if any)
// crashed and why, every thread's recovered call stack, and which
// modules processing could not fully symbolicate (spec.md §4.5).
package procstate

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/minidebug/minidump/minidump"
	"github.com/minidebug/minidump/module"
	"github.com/minidebug/minidump/stackwalk"
	"github.com/minidebug/minidump/symfile"
)

// ProcessorOptions configures an Assemble call (spec.md §9 "Global
// mutable state... replaced with explicit configuration structs").
type ProcessorOptions struct {
	stackwalk.Options

	// Supplier locates symbol files; nil disables symbolication
	// entirely (every frame keeps its bare Context, no FunctionName).
	Supplier symfile.Supplier
	// CacheSize bounds the Resolver's resident symbol tables;
	// symfile.DefaultCacheSize if <= 0.
	CacheSize int
	// Concurrency bounds how many threads are walked in parallel; <= 1
	// walks threads sequentially. Each walk only ever blocks inside the
	// shared Resolver's Supplier call, so bounding this independent of
	// thread count caps how many Locate calls are in flight at once
	// (spec.md §5 "parallel ProcessState constructions... are permitted").
	Concurrency int
}

// ThreadState is one thread's recovered call stack.
type ThreadState struct {
	ThreadID uint32
	Stack    stackwalk.CallStack
	// Err is set instead of Stack being walked at all when the thread's
	// context couldn't be decoded (minidump.ErrUnknownArchitecture is
	// fatal for the walk though benign for inspecting the rest of the
	// dump, spec.md §7), or is stackwalk.ErrInterrupted when the
	// Supplier aborted mid-walk; Stack is still the valid partial stack
	// in the latter case.
	Err error
}

// ProcessState is the fully assembled view of one crash dump.
type ProcessState struct {
	Status string // "crashed", "no crash context", "interrupted", "corrupt_dump"

	Crashed      bool
	CrashReason  string
	CrashAddress uint64
	// RequestingThreadIndex indexes Threads, or -1 if no thread could be
	// identified as the crash context (spec.md §4.5).
	RequestingThreadIndex int

	SystemInfo *minidump.SystemInfo
	Modules    *module.Registry
	// Threads is indexed like the dump's own ThreadList. When the
	// Supplier interrupts a walk, every thread from that point on is
	// left nil rather than walked (spec.md §5 "threads past the
	// interruption point are absent").
	Threads []*ThreadState

	// ModulesWithoutSymbols maps a module's debug file name to the reason
	// no symbols are available, for every module visited during
	// stackwalking whose symbols the Supplier could not produce (spec.md
	// §4.5).
	ModulesWithoutSymbols map[string]string
	// ModulesWithCorruptSymbols maps a module's debug file name to a
	// description of the parse problem found in its symbol file.
	ModulesWithCorruptSymbols map[string]string
}

// MissingSymbols merges ModulesWithoutSymbols and
// ModulesWithCorruptSymbols into one debugFile->reason view, a
// convenience for callers that only want to know "can I trust the
// symbol names in this report".
func (ps *ProcessState) MissingSymbols() map[string]string {
	out := make(map[string]string, len(ps.ModulesWithoutSymbols)+len(ps.ModulesWithCorruptSymbols))
	for k, v := range ps.ModulesWithoutSymbols {
		out[k] = "no symbols: " + v
	}
	for k, v := range ps.ModulesWithCorruptSymbols {
		out[k] = "corrupt symbols: " + v
	}
	return out
}

// Assemble builds a ProcessState from r: it selects the crash context,
// walks every thread's call stack, and inventories symbol availability
// across every module those stacks touched (spec.md §4.5).
//
// Parsing-level errors that prevent even a module or thread list from
// being read abort assembly and are returned directly; everything else
// is absorbed into ProcessState.Status instead (spec.md §7).
func Assemble(r *minidump.Reader, opts ProcessorOptions) (*ProcessState, error) {
	mods, err := r.Modules()
	if err != nil {
		return nil, fmt.Errorf("procstate: %w", err)
	}
	threads, err := r.Threads()
	if err != nil {
		return nil, fmt.Errorf("procstate: %w", err)
	}
	sysInfo, err := r.SystemInfo()
	if err != nil {
		return nil, fmt.Errorf("procstate: %w", err)
	}
	exc, err := r.Exception()
	if err != nil {
		return nil, fmt.Errorf("procstate: %w", err)
	}
	breakpad, err := r.BreakpadInfo()
	if err != nil {
		return nil, fmt.Errorf("procstate: %w", err)
	}

	ps := &ProcessState{
		SystemInfo:                sysInfo,
		Modules:                   mods,
		ModulesWithoutSymbols:     map[string]string{},
		ModulesWithCorruptSymbols: map[string]string{},
	}
	selectCrashContext(ps, threads, exc, breakpad)

	var resolver *symfile.Resolver
	if opts.Supplier != nil {
		resolver, err = symfile.NewResolver(opts.Supplier, opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("procstate: %w", err)
		}
	}

	ps.Threads = make([]*ThreadState, len(threads))
	interrupted, err := walkThreads(ps, threads, r, mods, resolver, exc, opts)
	if err != nil {
		return nil, err
	}

	if resolver != nil {
		if inventorySymbols(ps, resolver) {
			interrupted = true
		}
	}

	ps.Status = status(ps, interrupted)
	return ps, nil
}

// walkThreads populates ps.Threads, one stackwalk.Walk call per thread,
// and reports whether any walk was interrupted by the Supplier.
//
// With opts.Concurrency > 1 the walks run through an errgroup bounded to
// that many in flight; Walk only ever blocks inside the shared
// Resolver's Supplier call, so every other thread's walk is pure CPU
// work that proceeds independently (spec.md §5 "Concurrency"). Once one
// walk reports an interruption, no further thread is started — in the
// concurrent case a handful already in flight may still finish, since
// the core enforces no timeouts and nothing preempts a call mid-Resolve
// (spec.md §5), so "threads past the interruption point are absent" is
// honored on a best-effort basis under concurrency and exactly under
// opts.Concurrency <= 1.
func walkThreads(ps *ProcessState, threads []*minidump.Thread, mem stackwalk.MemorySource, mods *module.Registry, resolver *symfile.Resolver, exc *minidump.Exception, opts ProcessorOptions) (bool, error) {
	walkOne := func(i int, th *minidump.Thread) (bool, error) {
		ctx := th.Context
		if i == ps.RequestingThreadIndex && exc != nil && exc.ThreadContext != nil {
			// The exception stream's embedded context is the authoritative
			// register snapshot for the crashed thread: the ThreadList
			// entry for the same thread was captured by the dumper after
			// the OS had already begun exception handling and may differ.
			ctx = exc.ThreadContext
			if ctx == nil {
				ps.Threads[i] = &ThreadState{ThreadID: th.ThreadID, Err: exc.ContextErr}
				return false, nil
			}
		}
		if ctx == nil {
			// minidump.ErrUnknownArchitecture (or simply no context on
			// disk): fatal for walking this one thread, benign for the
			// rest of the dump (spec.md §7).
			ps.Threads[i] = &ThreadState{ThreadID: th.ThreadID, Err: th.ContextErr}
			return false, nil
		}
		stack, err := stackwalk.Walk(ctx, mem, mods, resolver, opts.Options)
		if err != nil && !errors.Is(err, stackwalk.ErrInterrupted) {
			return false, fmt.Errorf("procstate: thread %d: %w", th.ThreadID, err)
		}
		ps.Threads[i] = &ThreadState{ThreadID: th.ThreadID, Stack: stack, Err: err}
		return errors.Is(err, stackwalk.ErrInterrupted), nil
	}

	if opts.Concurrency <= 1 {
		for i, th := range threads {
			hit, err := walkOne(i, th)
			if err != nil {
				return false, err
			}
			if hit {
				// spec.md §5: "threads past the interruption point are
				// absent" — ps.Threads[i+1:] stays nil.
				return true, nil
			}
		}
		return false, nil
	}

	var (
		g           errgroup.Group
		mu          sync.Mutex
		interrupted bool
	)
	g.SetLimit(opts.Concurrency)
	for i, th := range threads {
		i, th := i, th
		g.Go(func() error {
			mu.Lock()
			stop := interrupted
			mu.Unlock()
			if stop {
				return nil
			}
			hit, err := walkOne(i, th)
			if err != nil {
				return err
			}
			if hit {
				mu.Lock()
				interrupted = true
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return interrupted, nil
}

// selectCrashContext implements spec.md §4.5's crash-context selection:
// the exception stream's thread, if present; otherwise the vendor
// BreakpadInfo dump-requesting thread, for dumps taken without a fault;
// otherwise thread index 0 with crashed left false.
func selectCrashContext(ps *ProcessState, threads []*minidump.Thread, exc *minidump.Exception, breakpad *minidump.BreakpadInfo) {
	ps.RequestingThreadIndex = -1

	if exc != nil {
		ps.Crashed = true
		ps.CrashAddress = exc.ExceptionAddress
		platform := minidump.PlatformID(0)
		if ps.SystemInfo != nil {
			platform = minidump.PlatformID(ps.SystemInfo.PlatformID)
		}
		ps.CrashReason = CrashReason(platform, exc.ExceptionCode, exc.ExceptionFlags)
		ps.RequestingThreadIndex = indexOfThread(threads, exc.ThreadID)
		return
	}

	if breakpad != nil && breakpad.DumpThreadValid {
		ps.RequestingThreadIndex = indexOfThread(threads, breakpad.DumpThreadID)
		return
	}

	if len(threads) > 0 {
		ps.RequestingThreadIndex = 0
	}
}

func indexOfThread(threads []*minidump.Thread, id uint32) int {
	for i, t := range threads {
		if t.ThreadID == id {
			return i
		}
	}
	return -1
}

// inventorySymbols classifies every distinct module any thread's stack
// touched, reporting whether any Resolve call came back Interrupted.
func inventorySymbols(ps *ProcessState, resolver *symfile.Resolver) bool {
	seen := map[*module.Module]bool{}
	interrupted := false
	for _, th := range ps.Threads {
		if th == nil {
			continue
		}
		for _, f := range th.Stack {
			if f.Module == nil || seen[f.Module] {
				continue
			}
			seen[f.Module] = true
			tbl, outcome, err := resolver.Resolve(f.Module.DebugFile, f.Module.DebugIdentifier)
			switch outcome {
			case symfile.Missing:
				reason := "supplier found nothing"
				if err != nil {
					reason = err.Error()
				}
				ps.ModulesWithoutSymbols[f.Module.DebugFile] = reason
			case symfile.Interrupted:
				interrupted = true
				ps.ModulesWithoutSymbols[f.Module.DebugFile] = "symbol lookup interrupted"
			case symfile.Resolved:
				if tbl != nil {
					f.Module.OS, f.Module.Arch = tbl.OS, tbl.Arch
				}
				if tbl != nil && tbl.Corrupt {
					msg := "malformed symbol file"
					if tbl.CorruptErr != nil {
						msg = tbl.CorruptErr.Error()
					}
					ps.ModulesWithCorruptSymbols[f.Module.DebugFile] = msg
				}
			}
		}
	}
	return interrupted
}

// status maps the assembled ProcessState to one of the four
// user-visible status strings (spec.md §7). SystemInfo is required to
// pick an architecture for any walk at all, so its absence is treated
// as a corrupt dump rather than merely "no crash context" — nothing
// downstream of it can be trusted.
func status(ps *ProcessState, interrupted bool) string {
	if ps.SystemInfo == nil {
		return "corrupt_dump"
	}
	if interrupted {
		return "interrupted"
	}
	if ps.Crashed {
		return "crashed"
	}
	return "no crash context"
}
