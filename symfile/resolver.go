// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symfile

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// moduleKey identifies a module's symbol table independent of load
// address, matching how breakpad-format symbol files are indexed on
// disk (spec.md §4.3).
type moduleKey struct {
	DebugFile, DebugIdentifier string
}

// Resolver loads and caches per-module symbol Tables (spec.md §4.3
// "Caching"). A module's Supplier result is cached unless the lookup was
// interrupted, so the Supplier is asked again only after an interruption
// or after the module's entry was evicted. The cache evicts its
// least-recently-used entry whenever it is full, including in the middle
// of a walk; a Table already returned stays valid for whoever holds it.
type Resolver struct {
	supplier Supplier
	cache    *lru.Cache[moduleKey, *cacheEntry]
}

type cacheEntry struct {
	table *Table
	err   error
}

// DefaultCacheSize is the number of module symbol tables kept resident
// before the least-recently-used one is evicted.
const DefaultCacheSize = 64

// NewResolver builds a Resolver backed by supplier, caching up to size
// module tables (DefaultCacheSize if size <= 0).
func NewResolver(supplier Supplier, size int) (*Resolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[moduleKey, *cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("symfile: %w", err)
	}
	return &Resolver{supplier: supplier, cache: c}, nil
}

// Outcome reports the result of a Resolve call, distinguishing "no
// symbols available" from "interrupted" so a caller can decide whether
// retrying later is worthwhile (spec.md §4.3).
type Outcome int

const (
	// Resolved means a Table, possibly with Corrupt set, is available.
	Resolved Outcome = iota
	// Missing means the supplier found nothing for this module.
	Missing
	// Interrupted means the supplier aborted; the stackwalker stops the
	// walk when it sees this.
	Interrupted
)

// Resolve returns the symbol Table for the module identified by
// debugFile/debugIdentifier, loading and parsing it via the Supplier on
// first use and serving every subsequent call to the same module from
// cache (spec.md §4.3). A Missing result (NotFound, or a symbol file
// that failed to parse) is cached and not retried within the same
// Resolver; an Interrupt or InterruptAndRetry lookup is not cached, so a
// later call for the same module asks the Supplier again.
func (r *Resolver) Resolve(debugFile, debugIdentifier string) (*Table, Outcome, error) {
	key := moduleKey{debugFile, debugIdentifier}
	if e, ok := r.cache.Get(key); ok {
		if e.err != nil {
			return nil, Missing, e.err
		}
		if e.table == nil {
			return nil, Missing, nil
		}
		return e.table, Resolved, nil
	}

	lookup := r.supplier.Locate(debugFile, debugIdentifier)
	switch lookup.Result {
	case NotFound:
		r.cache.Add(key, &cacheEntry{})
		return nil, Missing, nil
	case Interrupt, InterruptAndRetry:
		// Not cached: a later Resolve call for the same module is free
		// to retry the supplier (spec.md §4.3 "InterruptAndRetry").
		return nil, Interrupted, nil
	case Found:
		t, err := Parse(lookup.Data)
		if err != nil {
			r.cache.Add(key, &cacheEntry{err: err})
			return nil, Missing, err
		}
		r.cache.Add(key, &cacheEntry{table: t})
		return t, Resolved, nil
	default:
		return nil, Missing, fmt.Errorf("symfile: unknown lookup result %v", lookup.Result)
	}
}

// FillSourceLine resolves address within table to a function name, file
// path, and line number, preferring a FUNC+LINE match, falling back to a
// PUBLIC symbol, per spec.md §4.3 "fill_source_line". ok is false if
// address matched neither.
func FillSourceLine(t *Table, address uint64) (funcName, file string, line int, ok bool) {
	if f := t.FuncForAddress(address); f != nil {
		funcName = f.Name
		if l := f.LineForAddress(address); l != nil {
			file = t.Files[l.FileID]
			line = l.LineNo
		}
		return funcName, file, line, true
	}
	if p := t.PublicForAddress(address); p != nil {
		return p.Name, "", 0, true
	}
	return "", "", 0, false
}

// FillInlineFrames resolves the inline call chain active at address,
// outermost first, resolving each INLINE record's origin name and the
// call site's file via its FILE id (spec.md §4.3 "fill_inline_frames").
type InlineFrame struct {
	FunctionName string
	CallSiteFile string
	CallSiteLine int
}

func FillInlineFrames(t *Table, address uint64) []InlineFrame {
	inlines := t.InlinesAt(address)
	if len(inlines) == 0 {
		return nil
	}
	frames := make([]InlineFrame, 0, len(inlines))
	for _, in := range inlines {
		origin := t.inlineOrigins[in.OriginID]
		frames = append(frames, InlineFrame{
			FunctionName: origin.Name,
			CallSiteFile: t.Files[in.CallSiteFile],
			CallSiteLine: in.CallSiteLine,
		})
	}
	return frames
}
