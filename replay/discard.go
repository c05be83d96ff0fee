// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package replay

import (
	"fmt"

	"github.com/grailbio/logwrites/errors"
	"github.com/grailbio/logwrites/log"
)

// discard applies a discard of n bytes at off to the target, in chunks
// of at most MaxDiscardChunk. Chunks are discarded natively until the
// target first reports that it cannot discard; from then on, for the
// rest of the session, chunks are overwritten with zeros instead.
func (e *Engine) discard(off, n int64) error {
	for n > 0 {
		chunk := n
		if chunk > MaxDiscardChunk {
			chunk = MaxDiscardChunk
		}
		if !e.discardUnsupported {
			err := e.target.Discard(off, chunk)
			switch {
			case err == nil:
				off += chunk
				n -= chunk
				continue
			case errors.Is(errors.NotSupported, err):
				log.Printf("replay target does not support discard, switching to writing zeros: %v", err)
				e.discardUnsupported = true
			default:
				return err
			}
		}
		if err := e.zeroRange(off, chunk); err != nil {
			return err
		}
		off += chunk
		n -= chunk
	}
	return nil
}

// zeroRange overwrites n bytes at off with zeros. Ranges larger than
// the engine's zero chunk bound are rejected before anything is
// written.
func (e *Engine) zeroRange(off, n int64) error {
	if n > e.maxZeroChunk {
		return errors.E(errors.TooLarge, fmt.Sprintf("zero fill of %d bytes exceeds the maximum of %d", n, e.maxZeroChunk))
	}
	if int64(len(e.zeros)) < n {
		e.zeros = make([]byte, n)
	}
	for n > 0 {
		p := e.zeros[:n]
		if err := e.writeAt(p, off); err != nil {
			return err
		}
		off += int64(len(p))
		n -= int64(len(p))
	}
	return nil
}
