// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package morebufio provides a buffered io.ReadSeeker for log files.
// A log is read as a sequence of small entry headers interleaved with
// payloads that are either copied or skipped; buffering the headers
// while passing large reads and skips to the file keeps both cheap.
package morebufio

import "io"

// ReadSeeker is a buffered io.ReadSeeker. Seeks that land within the
// buffer do not touch the underlying reader, and reads at least as
// large as the buffer bypass it.
type ReadSeeker struct {
	r io.ReadSeeker
	// buf[off:] is buffered and unread.
	buf []byte
	off int
	// pos is the caller's position in r's stream, or -1 if it is not
	// yet known. It differs from r's position by the unread part of
	// buf.
	pos int64
}

var _ io.ReadSeeker = (*ReadSeeker)(nil)

// minBufferSize equals bufio.minBufferSize.
const minBufferSize = 16

// NewReadSeekerSize returns a ReadSeeker reading from r with a buffer
// of at least the given size. If r is already a ReadSeeker with a
// large enough buffer, it is returned.
func NewReadSeekerSize(r io.ReadSeeker, size int) *ReadSeeker {
	if b, ok := r.(*ReadSeeker); ok && cap(b.buf) >= size {
		return b
	}
	if size < minBufferSize {
		size = minBufferSize
	}
	return &ReadSeeker{r: r, buf: make([]byte, 0, size), pos: -1}
}

// Read implements io.Reader.
func (b *ReadSeeker) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if b.off == len(b.buf) {
		if len(p) >= cap(b.buf) {
			n, err := b.r.Read(p)
			b.advance(n)
			return n, err
		}
		n, err := b.r.Read(b.buf[:cap(b.buf)])
		b.buf, b.off = b.buf[:n], 0
		if n == 0 {
			return 0, err
		}
	}
	n := copy(p, b.buf[b.off:])
	b.off += n
	b.advance(n)
	return n, nil
}

func (b *ReadSeeker) advance(n int) {
	if b.pos >= 0 {
		b.pos += int64(n)
	}
}

// Seek implements io.Seeker.
func (b *ReadSeeker) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekEnd {
		b.buf, b.off = b.buf[:0], 0
		var err error
		b.pos, err = b.r.Seek(offset, io.SeekEnd)
		return b.pos, err
	}
	if b.pos < 0 {
		pos, err := b.r.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, err
		}
		b.pos = pos - int64(len(b.buf)-b.off)
	}
	target := offset
	if whence == io.SeekCurrent {
		target += b.pos
	}
	if diff := target - b.pos; -int64(b.off) <= diff && diff <= int64(len(b.buf)-b.off) {
		b.off += int(diff)
		b.pos = target
		return b.pos, nil
	}
	b.buf, b.off = b.buf[:0], 0
	var err error
	b.pos, err = b.r.Seek(target, io.SeekStart)
	return b.pos, err
}
