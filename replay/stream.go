// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package replay

import (
	"io"
	"io/ioutil"
)

// stream is the log's read side. It only moves forward: skips use
// Seek when the underlying reader supports it (plain files) and read
// and drop the data otherwise (decompressed streams).
type stream struct {
	r   io.Reader
	off int64
	// end is the offset of the end of a seekable stream, or -1 if it
	// is not yet known.
	end int64
}

func newStream(r io.Reader) stream {
	return stream{r: r, end: -1}
}

func (s *stream) readFull(p []byte) error {
	n, err := io.ReadFull(s.r, p)
	s.off += int64(n)
	return err
}

// skip advances the stream by n bytes. Seeking past the end of a
// stream succeeds, so seekable streams are bounded by their size.
func (s *stream) skip(n int64) error {
	if n == 0 {
		return nil
	}
	if sk, ok := s.r.(io.Seeker); ok {
		if s.end < 0 {
			cur, err := sk.Seek(0, io.SeekCurrent)
			if err != nil {
				return err
			}
			end, err := sk.Seek(0, io.SeekEnd)
			if err != nil {
				return err
			}
			if _, err := sk.Seek(cur, io.SeekStart); err != nil {
				return err
			}
			s.end = s.off + end - cur
		}
		if s.off+n > s.end {
			n = s.end - s.off
			if _, err := sk.Seek(n, io.SeekCurrent); err != nil {
				return err
			}
			s.off += n
			return io.ErrUnexpectedEOF
		}
		if _, err := sk.Seek(n, io.SeekCurrent); err != nil {
			return err
		}
		s.off += n
		return nil
	}
	m, err := io.CopyN(ioutil.Discard, s.r, n)
	s.off += m
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}
