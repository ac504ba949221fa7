// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package procstate

import (
	"fmt"

	"github.com/minidebug/minidump/minidump"
)

// reasonKey indexes the crash-reason lookup table by platform and
// exception code (spec.md §4.5, §6 "Crash-reason mapping").
type reasonKey struct {
	Platform minidump.PlatformID
	Code     uint32
}

// reasonTable is deliberately non-exhaustive (spec.md §6): unknown
// platform/code pairs fall back to a hex rendering of the code rather
// than failing, since a crash reason is diagnostic text, not a value
// the rest of the pipeline branches on.
var reasonTable = map[reasonKey]string{
	{minidump.PlatformMacOS, 0x00000001}: "EXC_BAD_ACCESS",
	{minidump.PlatformMacOS, 0x00000002}: "EXC_BAD_INSTRUCTION",
	{minidump.PlatformMacOS, 0x00000003}: "EXC_ARITHMETIC",
	{minidump.PlatformMacOS, 0x00000006}: "EXC_BREAKPOINT",
	{minidump.PlatformMacOS, 0x0000000A}: "EXC_CRASH",
}

// linuxSignalNames covers the handful of POSIX signal numbers breakpad
// dumps commonly carry as the Linux exception code.
var linuxSignalNames = map[uint32]string{
	4:  "SIGILL",
	6:  "SIGABRT",
	7:  "SIGBUS",
	8:  "SIGFPE",
	11: "SIGSEGV",
}

// CrashReason renders a human-readable crash reason from the triple
// (platform, exception_code, exception_flags), per spec.md §6. Unknown
// combinations render as "0x<hex>".
func CrashReason(platform minidump.PlatformID, code, flags uint32) string {
	if platform == minidump.PlatformLinux || platform == minidump.PlatformAndroid {
		if name, ok := linuxSignalNames[code]; ok {
			if code == 11 { // SIGSEGV: breakpad further distinguishes the fault kind
				switch flags {
				case 1:
					return name + " /MAPERR"
				case 2:
					return name + " /ACCERR"
				}
			}
			return name
		}
	}
	if s, ok := reasonTable[reasonKey{platform, code}]; ok {
		return s
	}
	return fmt.Sprintf("0x%x", code)
}
