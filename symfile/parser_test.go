// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symfile

import "testing"

const sampleSym = `MODULE Linux x86_64 000011112222333344445555666677778 libfoo.so
FILE 0 foo.c
FILE 1 bar.c
FUNC 1000 50 0 foo::bar
1000 10 42 0
1010 40 43 1
PUBLIC 2000 0 foo::baz
INLINE_ORIGIN 0 foo::inlined
INLINE 1 10 0 0 1000 8
STACK CFI INIT 1000 50 .cfa: $rsp 8 + .ra: .cfa -8 + ^
STACK CFI 1010 .cfa: $rsp 16 +
STACK WIN 4 1000 50 4 4 0 0 10 20 1 $T0 $rsp = $eip $T0 ^ =
`

func TestParseModuleHeader(t *testing.T) {
	tbl, err := Parse([]byte(sampleSym))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tbl.OS != "Linux" || tbl.Arch != "x86_64" || tbl.DebugFile != "libfoo.so" {
		t.Errorf("header fields = %q %q %q", tbl.OS, tbl.Arch, tbl.DebugFile)
	}
	if tbl.Corrupt {
		t.Errorf("unexpected Corrupt=true: %v, skipped=%v", tbl.CorruptErr, tbl.SkippedLines)
	}
}

func TestParseFuncAndLines(t *testing.T) {
	tbl, err := Parse([]byte(sampleSym))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := tbl.FuncForAddress(0x1005)
	if f == nil || f.Name != "foo::bar" {
		t.Fatalf("FuncForAddress(0x1005) = %v", f)
	}
	l := f.LineForAddress(0x1015)
	if l == nil || l.LineNo != 43 {
		t.Fatalf("LineForAddress(0x1015) = %v", l)
	}
	if f.LineForAddress(0x2000) != nil {
		t.Errorf("LineForAddress out of range should be nil")
	}
}

func TestParsePublic(t *testing.T) {
	tbl, err := Parse([]byte(sampleSym))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p := tbl.PublicForAddress(0x2010)
	if p == nil || p.Name != "foo::baz" {
		t.Fatalf("PublicForAddress(0x2010) = %v", p)
	}
}

func TestCfiRulesMerge(t *testing.T) {
	tbl, err := Parse([]byte(sampleSym))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rules := tbl.CfiRulesForAddress(0x1005)
	if rules == nil || rules[".cfa"] != "$rsp 8 +" {
		t.Fatalf("CfiRulesForAddress(0x1005) = %v", rules)
	}
	rules = tbl.CfiRulesForAddress(0x1020)
	if rules[".cfa"] != "$rsp 16 +" {
		t.Fatalf("delta not applied: %v", rules)
	}
}

func TestParseMissingModuleHeader(t *testing.T) {
	_, err := Parse([]byte("FILE 0 foo.c\n"))
	if err == nil {
		t.Fatalf("Parse: expected error for missing MODULE header")
	}
}

func TestParseMalformedLineMarksCorrupt(t *testing.T) {
	src := `MODULE Linux x86_64 000011112222333344445555666677778 libfoo.so
FUNC 1000 50 0 foo::bar
notahexaddress 10 42 0
`
	tbl, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !tbl.Corrupt {
		t.Errorf("expected Corrupt=true for malformed LINE record")
	}
	if len(tbl.SkippedLines) != 1 {
		t.Errorf("SkippedLines = %v, want 1 entry", tbl.SkippedLines)
	}
}

func TestInlineFrames(t *testing.T) {
	tbl, err := Parse([]byte(sampleSym))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	frames := FillInlineFrames(tbl, 0x1002)
	if len(frames) != 1 || frames[0].FunctionName != "foo::inlined" {
		t.Fatalf("FillInlineFrames(0x1002) = %+v", frames)
	}
}

func TestFillSourceLine(t *testing.T) {
	tbl, err := Parse([]byte(sampleSym))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	name, file, line, ok := FillSourceLine(tbl, 0x1015)
	if !ok || name != "foo::bar" || file != "bar.c" || line != 43 {
		t.Fatalf("FillSourceLine(0x1015) = %q %q %d %v", name, file, line, ok)
	}
	name, _, _, ok = FillSourceLine(tbl, 0x2000)
	if !ok || name != "foo::baz" {
		t.Fatalf("FillSourceLine(0x2000) = %q %v", name, ok)
	}
	if _, _, _, ok := FillSourceLine(tbl, 0xdead); ok {
		t.Errorf("FillSourceLine(0xdead) should miss")
	}
}
