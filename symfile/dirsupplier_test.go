// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirSupplierLocate(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a.out", "ID123")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	want := []byte("MODULE Linux x86_64 ID123 a.out\n")
	if err := os.WriteFile(filepath.Join(dir, "a.out.sym"), want, 0o644); err != nil {
		t.Fatal(err)
	}

	sup := DirSupplier{Root: root}

	got := sup.Locate("a.out", "ID123")
	if got.Result != Found {
		t.Fatalf("Locate result = %v, want Found", got.Result)
	}
	if string(got.Data) != string(want) {
		t.Errorf("Locate data = %q, want %q", got.Data, want)
	}

	missing := sup.Locate("a.out", "NOPE")
	if missing.Result != NotFound {
		t.Errorf("Locate(missing) result = %v, want NotFound", missing.Result)
	}
}
