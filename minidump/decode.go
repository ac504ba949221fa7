// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// cursor decodes little-endian fields out of a byte slice explicitly,
// field by field, rather than reinterpret-casting the bytes to a host
// struct. This keeps decoding identical on big-endian hosts, per
// spec.md §4.1.
type cursor struct {
	b   []byte
	off int
}

func newCursor(b []byte) *cursor { return &cursor{b: b} }

func (c *cursor) remaining() int { return len(c.b) - c.off }

func (c *cursor) need(n int) error {
	if n < 0 || c.remaining() < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrStreamOverrun, n, c.remaining())
	}
	return nil
}

func (c *cursor) u8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.b[c.off]
	c.off++
	return v, nil
}

func (c *cursor) u16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.b[c.off:])
	c.off += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.b[c.off:])
	c.off += 4
	return v, nil
}

func (c *cursor) u64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.b[c.off:])
	c.off += 8
	return v, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	v := c.b[c.off : c.off+n]
	c.off += n
	return v, nil
}

func (c *cursor) skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.off += n
	return nil
}

// utf16LEDecoder performs the UTF-16LE → string conversion the format's
// length-prefixed strings need, substituting U+FFFD for ill-formed
// surrogates rather than failing (spec.md §4.1). golang.org/x/text's
// unicode codec already implements the substitution behavior we want;
// a hand-rolled utf16.Decode loop would have to reimplement the same
// replacement-on-error logic the codec gives us for free.
var utf16LEDecoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

// decodeUTF16LEString decodes a minidump "MDString": a u32 byte length
// followed by that many bytes of UTF-16LE data (no NUL terminator
// counted in the length).
func decodeUTF16LEString(b []byte) (string, error) {
	out, err := utf16LEDecoder.Bytes(b)
	if err != nil {
		// The decoder itself only fails on i/o errors from streaming
		// transforms; for a plain []byte->[]byte call treat any error
		// defensively as "can't happen" and fall back rather than
		// failing the whole parse over a string field.
		return string(out), nil
	}
	return string(out), nil
}

// mdString reads a length-prefixed UTF-16LE string (an "MDString")
// whose length field is itself read from the cursor.
func (c *cursor) mdString() (string, error) {
	n, err := c.u32()
	if err != nil {
		return "", err
	}
	raw, err := c.bytes(int(n))
	if err != nil {
		return "", err
	}
	return decodeUTF16LEString(raw)
}
