// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symfile

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Parse decodes the textual breakpad-style symbol format (spec.md §4.3):
// a MODULE header line followed by FILE, INLINE_ORIGIN, INLINE, FUNC
// (with nested LINE records), PUBLIC, and STACK records.
//
// A malformed line that isn't the mandatory MODULE header is recorded in
// Table.SkippedLines and otherwise ignored; Parse only fails outright
// when the MODULE header itself is missing or unparseable, since every
// other record is optional. A module with any skipped or structurally
// incomplete record is still returned, with Corrupt set, per the rule
// that a module is marked corrupt rather than dropped (spec.md §4.3
// "Malformed symbol files").
func Parse(data []byte) (*Table, error) {
	t := newTable()
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var curFunc *Func
	headerSeen := false

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "MODULE":
			if headerSeen {
				t.skip(line, "duplicate MODULE header")
				continue
			}
			if len(fields) < 5 {
				return nil, fmt.Errorf("symfile: MODULE header has %d fields, want 5", len(fields))
			}
			t.OS, t.Arch, t.DebugID, t.DebugFile = fields[1], fields[2], fields[3], fields[4]
			headerSeen = true

		case "FILE":
			if len(fields) < 3 {
				t.skip(line, "FILE missing id or path")
				continue
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				t.skip(line, "FILE id not an integer")
				continue
			}
			t.Files[id] = strings.Join(fields[2:], " ")

		case "INLINE_ORIGIN":
			if len(fields) < 3 {
				t.skip(line, "INLINE_ORIGIN missing id or name")
				continue
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				t.skip(line, "INLINE_ORIGIN id not an integer")
				continue
			}
			t.inlineOrigins[id] = InlineOrigin{ID: id, Name: strings.Join(fields[2:], " ")}

		case "INLINE":
			in, err := parseInline(fields)
			if err != nil {
				t.skip(line, err.Error())
				continue
			}
			t.inlines = append(t.inlines, in)
			curFunc = nil // an INLINE record ends the current FUNC's LINE run

		case "FUNC":
			f, err := parseFunc(fields)
			if err != nil {
				t.skip(line, err.Error())
				curFunc = nil
				continue
			}
			t.funcs = append(t.funcs, f)
			curFunc = f

		case "PUBLIC":
			p, err := parsePublic(fields)
			if err != nil {
				t.skip(line, err.Error())
				continue
			}
			t.public = append(t.public, p)
			curFunc = nil

		case "STACK":
			if len(fields) < 2 {
				t.skip(line, "STACK record missing kind")
				continue
			}
			switch fields[1] {
			case "WIN":
				w, err := parseWinRecord(fields)
				if err != nil {
					t.skip(line, err.Error())
					continue
				}
				t.winRecords = append(t.winRecords, w)
			case "CFI":
				if err := parseCfi(t, fields); err != nil {
					t.skip(line, err.Error())
				}
			default:
				t.skip(line, "unknown STACK record kind "+fields[1])
			}

		default:
			// A bare LINE record: "<address> <size> <line> <file_id>",
			// valid only immediately after a FUNC line.
			if curFunc == nil {
				t.skip(line, "LINE record outside a FUNC")
				continue
			}
			l, err := parseLine(fields)
			if err != nil {
				t.skip(line, err.Error())
				continue
			}
			curFunc.Lines = append(curFunc.Lines, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("symfile: %w", err)
	}
	if !headerSeen {
		return nil, fmt.Errorf("symfile: missing mandatory MODULE header")
	}
	if len(t.SkippedLines) > 0 {
		t.Corrupt = true
		t.CorruptErr = fmt.Errorf("symfile: %d malformed record(s)", len(t.SkippedLines))
	}
	t.finish()
	return t, nil
}

func (t *Table) skip(line, reason string) {
	t.SkippedLines = append(t.SkippedLines, fmt.Sprintf("%s (%s)", line, reason))
}

func hex64(s string) (uint64, error) { return strconv.ParseUint(s, 16, 64) }

// parseFunc handles "FUNC [m] <address> <size> <param_size> <name...>".
func parseFunc(fields []string) (*Func, error) {
	i := 1
	f := &Func{}
	if i < len(fields) && fields[i] == "m" {
		f.Multiple = true
		i++
	}
	if len(fields) < i+4 {
		return nil, fmt.Errorf("FUNC has too few fields")
	}
	var err error
	if f.Address, err = hex64(fields[i]); err != nil {
		return nil, fmt.Errorf("FUNC address: %w", err)
	}
	if f.Size, err = hex64(fields[i+1]); err != nil {
		return nil, fmt.Errorf("FUNC size: %w", err)
	}
	ps, err := strconv.ParseUint(fields[i+2], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("FUNC param_size: %w", err)
	}
	f.ParameterSize = uint32(ps)
	f.Name = strings.Join(fields[i+3:], " ")
	return f, nil
}

// parseLine handles "<address> <size> <line> <file_id>".
func parseLine(fields []string) (Line, error) {
	if len(fields) < 4 {
		return Line{}, fmt.Errorf("LINE has %d fields, want 4", len(fields))
	}
	addr, err := hex64(fields[0])
	if err != nil {
		return Line{}, fmt.Errorf("LINE address: %w", err)
	}
	size, err := hex64(fields[1])
	if err != nil {
		return Line{}, fmt.Errorf("LINE size: %w", err)
	}
	lineNo, err := strconv.Atoi(fields[2])
	if err != nil {
		return Line{}, fmt.Errorf("LINE number: %w", err)
	}
	fileID, err := strconv.Atoi(fields[3])
	if err != nil {
		return Line{}, fmt.Errorf("LINE file id: %w", err)
	}
	return Line{Address: addr, Size: size, LineNo: lineNo, FileID: fileID}, nil
}

// parsePublic handles "PUBLIC [m] <address> <param_size> <name...>".
func parsePublic(fields []string) (*Public, error) {
	i := 1
	p := &Public{}
	if i < len(fields) && fields[i] == "m" {
		p.Multiple = true
		i++
	}
	if len(fields) < i+3 {
		return nil, fmt.Errorf("PUBLIC has too few fields")
	}
	var err error
	if p.Address, err = hex64(fields[i]); err != nil {
		return nil, fmt.Errorf("PUBLIC address: %w", err)
	}
	ps, err := strconv.ParseUint(fields[i+1], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("PUBLIC param_size: %w", err)
	}
	p.ParameterSize = uint32(ps)
	p.Name = strings.Join(fields[i+2:], " ")
	return p, nil
}

// parseInline handles:
//   INLINE <depth> <call_site_line> <call_site_file> <origin_id> <address> <size> [<address> <size>]...
// Only the first <address> <size> range is recorded; any further ranges
// on the same line are ignored.
func parseInline(fields []string) (*Inline, error) {
	if len(fields) < 7 {
		return nil, fmt.Errorf("INLINE has %d fields, want at least 7", len(fields))
	}
	depth, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("INLINE depth: %w", err)
	}
	callLine, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("INLINE call_site_line: %w", err)
	}
	callFile, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, fmt.Errorf("INLINE call_site_file: %w", err)
	}
	origin, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, fmt.Errorf("INLINE origin_id: %w", err)
	}
	addr, err := hex64(fields[5])
	if err != nil {
		return nil, fmt.Errorf("INLINE address: %w", err)
	}
	size, err := hex64(fields[6])
	if err != nil {
		return nil, fmt.Errorf("INLINE size: %w", err)
	}
	return &Inline{
		Depth:        depth,
		CallSiteLine: callLine,
		CallSiteFile: callFile,
		OriginID:     origin,
		Address:      addr,
		Size:         size,
	}, nil
}

// parseWinRecord handles the fixed-field STACK WIN FPO/FrameData form:
//   STACK WIN <type> <rva> <code_size> <prolog_size> <epilog_size> <params_size> <saved_regs_size> <locals_size> <max_stack_size> <has_program> <program_or_frame...>
func parseWinRecord(fields []string) (*WinStackRecord, error) {
	if len(fields) < 12 {
		return nil, fmt.Errorf("STACK WIN has %d fields, want at least 12", len(fields))
	}
	typ, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("STACK WIN type: %w", err)
	}
	w := &WinStackRecord{Type: typ}
	if w.RVA, err = hex64(fields[3]); err != nil {
		return nil, fmt.Errorf("STACK WIN rva: %w", err)
	}
	if w.CodeSize, err = hex64(fields[4]); err != nil {
		return nil, fmt.Errorf("STACK WIN code_size: %w", err)
	}
	u32 := func(s string) (uint32, error) {
		v, err := strconv.ParseUint(s, 16, 32)
		return uint32(v), err
	}
	if w.PrologSize, err = u32(fields[5]); err != nil {
		return nil, fmt.Errorf("STACK WIN prolog_size: %w", err)
	}
	if w.EpilogSize, err = u32(fields[6]); err != nil {
		return nil, fmt.Errorf("STACK WIN epilog_size: %w", err)
	}
	if w.ParamsSize, err = u32(fields[7]); err != nil {
		return nil, fmt.Errorf("STACK WIN params_size: %w", err)
	}
	if w.SavedRegsSize, err = u32(fields[8]); err != nil {
		return nil, fmt.Errorf("STACK WIN saved_regs_size: %w", err)
	}
	if w.LocalsSize, err = u32(fields[9]); err != nil {
		return nil, fmt.Errorf("STACK WIN locals_size: %w", err)
	}
	if w.MaxStackSize, err = u32(fields[10]); err != nil {
		return nil, fmt.Errorf("STACK WIN max_stack_size: %w", err)
	}
	w.HasProgram = fields[11] != "0"
	if len(fields) > 12 {
		w.ProgramOrFrame = strings.Join(fields[12:], " ")
	}
	return w, nil
}

// parseCfi handles both:
//   STACK CFI INIT <address> <size> <rules...>
//   STACK CFI <address> <rules...>
// Delta records must fall within some already-seen INIT record's range;
// one that doesn't is a skipped line, not a fatal error.
func parseCfi(t *Table, fields []string) error {
	if len(fields) >= 3 && fields[2] == "INIT" {
		if len(fields) < 5 {
			return fmt.Errorf("STACK CFI INIT has %d fields, want at least 5", len(fields))
		}
		addr, err := hex64(fields[3])
		if err != nil {
			return fmt.Errorf("STACK CFI INIT address: %w", err)
		}
		size, err := hex64(fields[4])
		if err != nil {
			return fmt.Errorf("STACK CFI INIT size: %w", err)
		}
		rules, err := parseCfiRules(fields[5:])
		if err != nil {
			return err
		}
		t.cfiInits = append(t.cfiInits, &CfiInit{Address: addr, Size: size, Rules: rules})
		return nil
	}
	if len(fields) < 3 {
		return fmt.Errorf("STACK CFI has %d fields, want at least 3", len(fields))
	}
	addr, err := hex64(fields[2])
	if err != nil {
		return fmt.Errorf("STACK CFI address: %w", err)
	}
	rules, err := parseCfiRules(fields[3:])
	if err != nil {
		return err
	}
	if len(t.cfiInits) == 0 {
		return fmt.Errorf("STACK CFI delta with no preceding INIT")
	}
	init := t.cfiInits[len(t.cfiInits)-1]
	if addr < init.Address || addr >= init.Address+init.Size {
		return fmt.Errorf("STACK CFI delta at %x outside its INIT range", addr)
	}
	init.Deltas = append(init.Deltas, cfiDelta{Address: addr, Rules: rules})
	return nil
}

// parseCfiRules parses "reg1: tok tok ... reg2: tok tok ...": each rule
// starts with a "name:" token and its postfix expression runs up to (but
// not including) the next "name:" token, since the expression itself is
// a whitespace-separated sequence of registers, literals, and operators.
func parseCfiRules(fields []string) ([]CfiRule, error) {
	var rules []CfiRule
	i := 0
	for i < len(fields) {
		tok := fields[i]
		if !strings.HasSuffix(tok, ":") {
			return nil, fmt.Errorf("malformed CFI rule token %q", tok)
		}
		reg := strings.TrimSuffix(tok, ":")
		i++
		start := i
		for i < len(fields) && !strings.HasSuffix(fields[i], ":") {
			i++
		}
		if i == start {
			return nil, fmt.Errorf("CFI rule for %s missing expression", reg)
		}
		rules = append(rules, CfiRule{Register: reg, Expr: strings.Join(fields[start:i], " ")})
	}
	return rules, nil
}
