// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The mdprocess tool prints the assembled ProcessState of a minidump
// file: the crash reason and thread, every thread's recovered call
// stack, and which modules' symbols could not be loaded.
// Run "mdprocess -help" for flags.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/minidebug/minidump/minidump"
	"github.com/minidebug/minidump/procstate"
	"github.com/minidebug/minidump/stackwalk"
	"github.com/minidebug/minidump/symfile"
)

func main() {
	symbols := flag.String("symbols", "", "root of a breakpad-layout symbol store (optional)")
	scan := flag.Bool("scan", false, "allow the stack-scan fallback strategy")
	amd64fp := flag.Bool("amd64-fp", false, "allow the frame-pointer strategy on amd64")
	concurrency := flag.Int("j", 1, "number of threads to walk in parallel")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: mdprocess [flags] <minidump-file>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *symbols, *scan, *amd64fp, *concurrency); err != nil {
		fmt.Fprintf(os.Stderr, "mdprocess: %v\n", err)
		os.Exit(1)
	}
}

func run(path, symbolRoot string, scan, amd64fp bool, concurrency int) error {
	d, err := minidump.OpenFile(path)
	if err != nil {
		return err
	}
	defer d.Close()

	opts := procstate.ProcessorOptions{
		Options:     stackwalkOptions(scan, amd64fp),
		Concurrency: concurrency,
	}
	if symbolRoot != "" {
		opts.Supplier = symfile.DirSupplier{Root: symbolRoot}
	}

	ps, err := procstate.Assemble(d.Reader, opts)
	if err != nil {
		return err
	}
	printProcessState(ps)
	return nil
}

func stackwalkOptions(scan, amd64fp bool) stackwalk.Options {
	return stackwalk.Options{
		AllowScan:  scan,
		Amd64UseFP: amd64fp,
	}
}

func printProcessState(ps *procstate.ProcessState) {
	fmt.Printf("status: %s\n", ps.Status)
	if ps.Crashed {
		fmt.Printf("crash reason: %s\n", ps.CrashReason)
		fmt.Printf("crash address: %#x\n", ps.CrashAddress)
	}
	if ps.RequestingThreadIndex >= 0 && ps.Threads[ps.RequestingThreadIndex] != nil {
		fmt.Printf("requesting thread: index %d (id %d)\n", ps.RequestingThreadIndex, ps.Threads[ps.RequestingThreadIndex].ThreadID)
	}

	for i, th := range ps.Threads {
		marker := "  "
		if i == ps.RequestingThreadIndex {
			marker = "=>"
		}
		if th == nil {
			fmt.Printf("%s Thread %d: absent (walk interrupted before reaching it)\n", marker, i)
			continue
		}
		fmt.Printf("%s Thread %d (id %d)\n", marker, i, th.ThreadID)
		if th.Err != nil {
			fmt.Printf("    (%v)\n", th.Err)
		}
		for n, f := range th.Stack {
			loc := fmt.Sprintf("%#x", f.Context.PC())
			if f.FunctionName != "" {
				loc = f.FunctionName
				if f.SourceFile != "" {
					loc += fmt.Sprintf(" [%s:%d]", f.SourceFile, f.SourceLine)
				}
			}
			modName := "?"
			if f.Module != nil {
				modName = f.Module.Name
			}
			tag := ""
			if f.Inline {
				tag = " (inlined)"
			}
			fmt.Printf("    #%-3d %-8s %s!%s%s\n", n, f.Trust, modName, loc, tag)
		}
	}

	if len(ps.ModulesWithoutSymbols) > 0 {
		fmt.Println("modules without symbols:")
		for name, reason := range ps.ModulesWithoutSymbols {
			fmt.Printf("  %s: %s\n", name, reason)
		}
	}
	if len(ps.ModulesWithCorruptSymbols) > 0 {
		fmt.Println("modules with corrupt symbols:")
		for name, reason := range ps.ModulesWithCorruptSymbols {
			fmt.Printf("  %s: %s\n", name, reason)
		}
	}
}
