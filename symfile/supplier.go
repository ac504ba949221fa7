// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package symfile loads and queries the textual breakpad-style symbol
// format: per-module FUNC/LINE/PUBLIC/STACK records plus the CFI
// expression language used to recover caller registers (spec.md §4.3).
//
// The core never touches a filesystem or network directly; all symbol
// bytes are obtained through the Supplier interface, an external
// collaborator the caller wires up (a URL downloader, a directory
// scan, or — in tests — a canned map).
package symfile

// LookupResult is the outcome of one Supplier.Locate call.
type LookupResult int

const (
	// NotFound means the supplier searched and found nothing; the
	// module is recorded as having no symbols, not as an error.
	NotFound LookupResult = iota
	// Interrupt means the supplier aborted the lookup (e.g. a caller
	// deadline fired); the walk is cancelled cooperatively (spec.md §5).
	Interrupt
	// Found carries the loaded symbol-file bytes.
	Found
	// InterruptAndRetry means the supplier was interrupted but the
	// caller may retry the same lookup later; the core treats this
	// identically to Interrupt within a single walk.
	InterruptAndRetry
)

func (r LookupResult) String() string {
	switch r {
	case NotFound:
		return "NotFound"
	case Interrupt:
		return "Interrupt"
	case Found:
		return "Found"
	case InterruptAndRetry:
		return "InterruptAndRetry"
	default:
		return "LookupResult(?)"
	}
}

// Lookup is the result of a Supplier.Locate call.
type Lookup struct {
	Result LookupResult
	Data   []byte
}

// Supplier locates symbol-file bytes for a module identified by its
// debug file name and debug identifier (spec.md §4.3). Implementations
// may be backed by a URL downloader, a local directory scan, or (in
// tests) a fixed map; the core only ever calls through this interface.
type Supplier interface {
	Locate(debugFile, debugIdentifier string) Lookup
}

// MapSupplier is a Supplier backed by an in-memory map, used by tests
// and by callers that have already resolved and cached symbol bytes
// themselves.
type MapSupplier map[string][]byte

func (m MapSupplier) Locate(debugFile, debugIdentifier string) Lookup {
	if b, ok := m[debugFile+"/"+debugIdentifier]; ok {
		return Lookup{Result: Found, Data: b}
	}
	return Lookup{Result: NotFound}
}
