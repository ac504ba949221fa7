// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import "errors"

// Fatal parse errors. These abort construction of a Reader or of the
// stream the caller asked for; they never leave the Reader half-built.
var (
	ErrBadSignature    = errors.New("minidump: bad signature")
	ErrTruncated       = errors.New("minidump: truncated file")
	ErrStreamOverrun   = errors.New("minidump: stream exceeds file bounds")
	ErrBadStreamVersion = errors.New("minidump: unsupported stream version")
)

// ErrUnknownArchitecture means a thread or exception context's byte
// size could not be mapped to a known architecture, or mapped to one
// that disagrees with SystemInfo.ProcessorArch (spec.md §7
// "UnknownArchitecture — fatal for walk, benign for inspection"). The
// affected Thread/Exception still parses successfully with its Context
// left nil and this error recorded on ContextErr; only a caller that
// tries to stackwalk the thread need treat it as fatal.
var ErrUnknownArchitecture = errors.New("minidump: unknown or mismatched processor architecture")

// MissingStreamError describes a stream that is not present in the
// file. No accessor in this package returns it: the typed accessors
// report an absent stream as a nil result with a nil error.
type MissingStreamError struct {
	Type StreamType
}

func (e *MissingStreamError) Error() string {
	return "minidump: missing stream " + e.Type.String()
}
