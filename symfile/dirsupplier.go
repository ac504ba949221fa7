// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symfile

import (
	"errors"
	"os"
	"path/filepath"
)

// DirSupplier is a Supplier backed by a local symbol store laid out the
// conventional breakpad way: Root/debugFile/debugIdentifier/debugFile.sym
// (spec.md §4.3 "the supplier may be backed by... a directory scan").
type DirSupplier struct {
	Root string
}

func (d DirSupplier) Locate(debugFile, debugIdentifier string) Lookup {
	path := filepath.Join(d.Root, debugFile, debugIdentifier, debugFile+".sym")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Lookup{Result: NotFound}
		}
		return Lookup{Result: Interrupt}
	}
	return Lookup{Result: Found, Data: data}
}
