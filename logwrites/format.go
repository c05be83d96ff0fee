// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package logwrites

import (
	"bytes"
	"fmt"

	"github.com/grailbio/logwrites/errors"
	"github.com/grailbio/logwrites/must"
)

// Header is the log's superblock.
type Header struct {
	Magic      uint64
	Version    uint64
	EntryCount uint64
	SectorSize uint32
}

// DecodeHeader decodes a header from the first HeaderSize bytes of p.
// It panics if p is shorter than HeaderSize.
func DecodeHeader(p []byte) Header {
	must.Truef(len(p) >= HeaderSize, "logwrites.DecodeHeader: short buffer (%d bytes)", len(p))
	c := NewCursor(p[:HeaderSize])
	var h Header
	h.Magic = c.Uint64()
	h.Version = c.Uint64()
	h.EntryCount = c.Uint64()
	c.Skip(4)
	h.SectorSize = c.Uint32()
	return h
}

// Validate checks that h describes a log this package can replay. It
// returns an error of kind errors.Integrity otherwise.
func (h Header) Validate() error {
	if h.Magic != Magic {
		return errors.E(errors.Integrity, fmt.Sprintf("bad magic %#x (want %#x)", h.Magic, Magic))
	}
	if h.Version != Version {
		return errors.E(errors.Integrity, fmt.Sprintf("unsupported version %d", h.Version))
	}
	if h.SectorSize == 0 {
		return errors.E(errors.Integrity, "zero sector size")
	}
	return nil
}

// Entry is a single recorded I/O operation.
type Entry struct {
	// Sector is the first sector on the device covered by the entry.
	Sector uint64
	// SectorCount is the number of sectors covered.
	SectorCount uint64
	// Flags describes the operation.
	Flags Flags
	// DataLen is the length recorded by the writer. For MARK entries
	// it is the length of the checkpoint name; otherwise it is
	// advisory, and the payload length is derived from SectorCount.
	DataLen uint64
	// Mark is the checkpoint name carried by MARK entries.
	Mark string
}

// DecodeEntry decodes an entry header from the first EntrySize bytes of
// p. The mark name is not decoded; see DecodeMark. DecodeEntry panics if
// p is shorter than EntrySize.
func DecodeEntry(p []byte) Entry {
	must.Truef(len(p) >= EntrySize, "logwrites.DecodeEntry: short buffer (%d bytes)", len(p))
	c := NewCursor(p[:EntrySize])
	var e Entry
	e.Sector = c.Uint64()
	e.SectorCount = c.Uint64()
	e.Flags = Flags(c.Uint64())
	e.DataLen = c.Uint64()
	return e
}

// DecodeMark returns the checkpoint name stored in p. Names are
// NUL-padded by some writers; the padding is dropped.
func DecodeMark(p []byte) string {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p)
}

// Offset returns the byte offset on the device at which e begins.
func (e Entry) Offset(sectorSize uint32) int64 {
	return int64(e.Sector * uint64(sectorSize))
}

// Size returns the number of bytes on the device covered by e.
func (e Entry) Size(sectorSize uint32) int64 {
	return int64(e.SectorCount * uint64(sectorSize))
}

// IsMark tells whether e is a checkpoint entry.
func (e Entry) IsMark() bool { return e.Flags&Mark != 0 }

// IsDiscard tells whether e discards its range.
func (e Entry) IsDiscard() bool { return e.Flags&Discard != 0 }

// String returns a one-line description of e.
func (e Entry) String() string {
	s := fmt.Sprintf("sector %d, sectors %d, flags %d(%s)", e.Sector, e.SectorCount, uint64(e.Flags), e.Flags)
	if e.IsMark() {
		s += fmt.Sprintf(", mark %q", e.Mark)
	}
	return s
}
