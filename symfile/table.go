// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symfile

import "sort"

// Public is a PUBLIC record: a named address with no size or line info.
type Public struct {
	Address       uint64
	ParameterSize uint32
	Name          string
	Multiple      bool
}

// Line is a LINE record nested under a Func.
type Line struct {
	Address uint64
	Size    uint64
	LineNo  int
	FileID  int
}

// Func is a FUNC record: a named, sized range with nested LINE records.
type Func struct {
	Address       uint64
	Size          uint64
	ParameterSize uint32
	Name          string
	Multiple      bool
	Lines         []Line // sorted by Address
}

// End returns the address just past the function.
func (f *Func) End() uint64 { return f.Address + f.Size }

// InlineOrigin is an INLINE_ORIGIN record: a named function that some
// INLINE record(s) reference by ID.
type InlineOrigin struct {
	ID   int
	Name string
}

// Inline is an INLINE record: one nesting level of an inlined call.
type Inline struct {
	Depth        int
	CallSiteLine int
	CallSiteFile int
	OriginID     int
	Address      uint64
	Size         uint64
}

// WinStackRecord is a STACK WIN record (x86 unwind data).
type WinStackRecord struct {
	Type             int
	RVA              uint64
	CodeSize         uint64
	PrologSize       uint32
	EpilogSize       uint32
	ParamsSize       uint32
	SavedRegsSize    uint32
	LocalsSize       uint32
	MaxStackSize     uint32
	HasProgram       bool
	ProgramOrFrame   string
}

// CfiRule is one `reg: expr` pair from a STACK CFI record.
type CfiRule struct {
	Register string
	Expr     string
}

// CfiInit is a `STACK CFI INIT` record: the rules in effect at the start
// of a range, plus every subsequent delta record within that range.
type CfiInit struct {
	Address uint64
	Size    uint64
	Rules   []CfiRule         // initial rules, keyed by register name
	Deltas  []cfiDelta        // subsequent `STACK CFI <addr> <rules>` records, sorted by address
}

type cfiDelta struct {
	Address uint64
	Rules   []CfiRule
}

// Table is one module's fully parsed symbol table (spec.md §3).
type Table struct {
	OS, Arch, DebugID, DebugFile string

	Files map[int]string

	funcs  []*Func // sorted by Address, non-overlapping
	public []*Public
	inlineOrigins map[int]InlineOrigin
	inlines       []*Inline // sorted by Address

	winRecords []*WinStackRecord // sorted by RVA
	cfiInits   []*CfiInit        // sorted by Address

	// Corrupt is set when a mandatory header is missing or a required
	// field failed to parse; the module is still usable (spec.md §4.3
	// "the module is marked corrupt").
	Corrupt     bool
	CorruptErr  error
	SkippedLines []string // malformed lines, logged not failed
}

func newTable() *Table {
	return &Table{
		Files:         map[int]string{},
		inlineOrigins: map[int]InlineOrigin{},
	}
}

func (t *Table) finish() {
	sort.Slice(t.funcs, func(i, j int) bool { return t.funcs[i].Address < t.funcs[j].Address })
	sort.Slice(t.public, func(i, j int) bool { return t.public[i].Address < t.public[j].Address })
	sort.Slice(t.inlines, func(i, j int) bool { return t.inlines[i].Address < t.inlines[j].Address })
	sort.Slice(t.winRecords, func(i, j int) bool { return t.winRecords[i].RVA < t.winRecords[j].RVA })
	sort.Slice(t.cfiInits, func(i, j int) bool { return t.cfiInits[i].Address < t.cfiInits[j].Address })
	for _, f := range t.funcs {
		sort.Slice(f.Lines, func(i, j int) bool { return f.Lines[i].Address < f.Lines[j].Address })
	}
	for _, ci := range t.cfiInits {
		sort.Slice(ci.Deltas, func(i, j int) bool { return ci.Deltas[i].Address < ci.Deltas[j].Address })
	}
}

// FuncForAddress returns the FUNC record containing address, if any.
func (t *Table) FuncForAddress(address uint64) *Func {
	i := sort.Search(len(t.funcs), func(i int) bool { return t.funcs[i].End() > address })
	if i == len(t.funcs) {
		return nil
	}
	f := t.funcs[i]
	if address < f.Address || address >= f.End() {
		return nil
	}
	return f
}

// PublicForAddress returns the closest PUBLIC record at or below
// address, if any (PUBLIC records have no declared size).
func (t *Table) PublicForAddress(address uint64) *Public {
	i := sort.Search(len(t.public), func(i int) bool { return t.public[i].Address > address })
	if i == 0 {
		return nil
	}
	return t.public[i-1]
}

// LineForAddress returns the LINE record in f containing address.
func (f *Func) LineForAddress(address uint64) *Line {
	i := sort.Search(len(f.Lines), func(i int) bool {
		return f.Lines[i].Address+f.Lines[i].Size > address
	})
	if i == len(f.Lines) {
		return nil
	}
	l := &f.Lines[i]
	if address < l.Address || address >= l.Address+l.Size {
		return nil
	}
	return l
}

// InlinesAt returns every INLINE record (across all nesting depths)
// whose range contains address, ordered from outermost (lowest depth)
// to innermost, capped at the spec's recommended hard limit of 16
// nesting levels (spec.md §9 "Open questions").
const maxInlineDepth = 16

func (t *Table) InlinesAt(address uint64) []*Inline {
	var matches []*Inline
	for _, in := range t.inlines {
		if address >= in.Address && address < in.Address+in.Size {
			matches = append(matches, in)
			if len(matches) >= maxInlineDepth {
				break
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Depth < matches[j].Depth })
	return matches
}

// WinRecordForAddress returns the STACK WIN record covering address.
func (t *Table) WinRecordForAddress(address uint64) *WinStackRecord {
	i := sort.Search(len(t.winRecords), func(i int) bool {
		return t.winRecords[i].RVA+t.winRecords[i].CodeSize > address
	})
	if i == len(t.winRecords) {
		return nil
	}
	w := t.winRecords[i]
	if address < w.RVA || address >= w.RVA+w.CodeSize {
		return nil
	}
	return w
}

// CfiRuleSet is the merged set of rules in effect at a given address:
// the most recent INIT rules overlaid with every delta record up to and
// including that address (spec.md §4.3 "find_cfi_rules").
type CfiRuleSet map[string]string // register name -> postfix expression

// CfiRulesForAddress merges the most recent INIT block's rules with all
// subsequent deltas up to and including address.
func (t *Table) CfiRulesForAddress(address uint64) CfiRuleSet {
	i := sort.Search(len(t.cfiInits), func(i int) bool { return t.cfiInits[i].Address+t.cfiInits[i].Size > address })
	if i == len(t.cfiInits) {
		return nil
	}
	init := t.cfiInits[i]
	if address < init.Address || address >= init.Address+init.Size {
		return nil
	}
	rules := make(CfiRuleSet, len(init.Rules))
	for _, r := range init.Rules {
		rules[r.Register] = r.Expr
	}
	for _, d := range init.Deltas {
		if d.Address > address {
			break
		}
		for _, r := range d.Rules {
			rules[r.Register] = r.Expr
		}
	}
	return rules
}
