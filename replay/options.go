// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package replay

import "github.com/grailbio/logwrites/logwrites"

const (
	// DefaultMaxZeroChunk is the default bound on a single zero-fill.
	DefaultMaxZeroChunk = 128 << 20
	// MaxDiscardChunk is the largest range discarded (or zeroed) by a
	// single device operation.
	MaxDiscardChunk = 1 << 30

	// maxTransfer bounds the buffer used to copy a payload from the log
	// to the target.
	maxTransfer = 4 << 20
)

// Options configures an Engine.
type Options struct {
	// Layout is the log's on-disk layout.
	Layout logwrites.Layout
	// MaxZeroChunk is the largest range the engine zero-fills with a
	// single buffer when the target cannot discard. Larger ranges fail
	// with errors.TooLarge. Zero means DefaultMaxZeroChunk.
	MaxZeroChunk int64
	// IgnoreDiscard skips DISCARD entries instead of applying them.
	IgnoreDiscard bool
}

func (o Options) maxZeroChunk() int64 {
	if o.MaxZeroChunk <= 0 {
		return DefaultMaxZeroChunk
	}
	return o.MaxZeroChunk
}
