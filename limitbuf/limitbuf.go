// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package limitbuf provides a string builder with a hard cap on the
// amount of text it retains. It is used to render values derived
// from untrusted input, such as log entry flags, without unbounded
// growth.
package limitbuf

import (
	"fmt"
	"strings"
)

// Builder is like strings.Builder, but with maximum length. If the caller
// tries to add data beyond the capacity, the data are dropped, and
// Builder.String() appends "(truncated N bytes)" at the end.
type Builder struct {
	maxLen int
	b      strings.Builder

	// seen counts the total number of bytes passed to Write.
	seen int64
}

// New creates a new Builder with the given capacity.
func New(maxLen int) *Builder {
	return &Builder{maxLen: maxLen}
}

// Write implements io.Writer. It never fails.
func (b *Builder) Write(data []byte) (int, error) {
	n := b.maxLen - b.b.Len()
	if n > len(data) {
		n = len(data)
	}
	if n > 0 {
		b.b.Write(data[:n])
	}
	b.seen += int64(len(data))
	return len(data), nil
}

// WriteString is Write for strings.
func (b *Builder) WriteString(s string) (int, error) {
	n := b.maxLen - b.b.Len()
	if n > len(s) {
		n = len(s)
	}
	if n > 0 {
		b.b.WriteString(s[:n])
	}
	b.seen += int64(len(s))
	return len(s), nil
}

// Len returns the number of bytes written so far, including any that
// were dropped.
func (b *Builder) Len() int64 { return b.seen }

// Truncated tells whether any written data was dropped.
func (b *Builder) Truncated() bool { return b.seen > int64(b.maxLen) }

// String reports the data written so far. If the length of the data exceeds the
// buffer capacity, the prefix of the data, plus "(truncated N bytes)" is reported.
func (b *Builder) String() string {
	if !b.Truncated() {
		return b.b.String()
	}
	return b.b.String() + fmt.Sprintf("(truncated %d bytes)", b.seen-int64(b.maxLen))
}
