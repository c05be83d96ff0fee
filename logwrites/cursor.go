// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package logwrites

import "github.com/grailbio/logwrites/must"

// Cursor decodes fixed-width little-endian integers from a byte slice.
// Reads past the end of the slice panic: callers size their buffers
// before decoding.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor positioned at the start of p.
func NewCursor(p []byte) *Cursor {
	return &Cursor{buf: p}
}

// Uint32 decodes a little-endian uint32.
func (c *Cursor) Uint32() uint32 {
	v := byteOrder.Uint32(c.buf[c.off:])
	c.off += 4
	return v
}

// Uint64 decodes a little-endian uint64.
func (c *Cursor) Uint64() uint64 {
	v := byteOrder.Uint64(c.buf[c.off:])
	c.off += 8
	return v
}

// Skip moves the cursor n bytes relative to its current position. n
// may be negative.
func (c *Cursor) Skip(n int) {
	off := c.off + n
	must.Truef(off >= 0 && off <= len(c.buf), "logwrites: cursor skip to %d out of range [0, %d]", off, len(c.buf))
	c.off = off
}
