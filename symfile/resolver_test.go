// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symfile

import "testing"

func TestResolverCachesAfterFirstLookup(t *testing.T) {
	calls := 0
	sup := countingSupplier{MapSupplier: MapSupplier{
		"libfoo.so/ID1": []byte(sampleSym),
	}, calls: &calls}

	r, err := NewResolver(sup, 0)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	for i := 0; i < 3; i++ {
		tbl, outcome, err := r.Resolve("libfoo.so", "ID1")
		if err != nil || outcome != Resolved || tbl == nil {
			t.Fatalf("Resolve #%d = %v, %v, %v", i, tbl, outcome, err)
		}
	}
	if calls != 1 {
		t.Errorf("supplier called %d times, want 1 (cache should absorb repeats)", calls)
	}
}

func TestResolverMissingIsCached(t *testing.T) {
	calls := 0
	sup := countingSupplier{MapSupplier: MapSupplier{}, calls: &calls}
	r, err := NewResolver(sup, 0)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	for i := 0; i < 2; i++ {
		tbl, outcome, err := r.Resolve("nope.so", "ID2")
		if err != nil || outcome != Missing || tbl != nil {
			t.Fatalf("Resolve #%d = %v, %v, %v", i, tbl, outcome, err)
		}
	}
	if calls != 1 {
		t.Errorf("supplier called %d times for repeated miss, want 1", calls)
	}
}

func TestResolverInterruptIsNotCached(t *testing.T) {
	sup := &interruptingSupplier{}
	r, err := NewResolver(sup, 0)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	_, outcome, err := r.Resolve("libbar.so", "ID3")
	if err != nil || outcome != Interrupted {
		t.Fatalf("Resolve = outcome %v err %v, want Interrupted", outcome, err)
	}
	sup.found = true
	tbl, outcome, err := r.Resolve("libbar.so", "ID3")
	if err != nil || outcome != Resolved || tbl == nil {
		t.Fatalf("retry Resolve = %v, %v, %v, want a fresh successful attempt", tbl, outcome, err)
	}
}

type countingSupplier struct {
	MapSupplier
	calls *int
}

func (s countingSupplier) Locate(debugFile, debugIdentifier string) Lookup {
	*s.calls++
	return s.MapSupplier.Locate(debugFile, debugIdentifier)
}

type interruptingSupplier struct {
	found bool
}

func (s *interruptingSupplier) Locate(debugFile, debugIdentifier string) Lookup {
	if !s.found {
		return Lookup{Result: Interrupt}
	}
	return Lookup{Result: Found, Data: []byte(sampleSym)}
}
