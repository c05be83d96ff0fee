// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package logwrites decodes logs of block-device I/O captured by a
// dm-log-writes style target. A log records every write and discard
// issued to a source device so that the device's state can be
// rebuilt, entry by entry, on another device.
//
// Data layout
//
// All integers are little-endian. A log begins with a header:
//
//	header :=
//		magic uint64        // Magic
//		version uint64      // Version
//		nr_entries uint64   // number of entries that follow
//		reserved [4]uint8   // ignored
//		sector_size uint32  // bytes per sector
//
// followed by nr_entries entries:
//
//	entry :=
//		sector uint64       // first sector on the target device
//		nr_sectors uint64   // number of sectors covered
//		flags uint64        // FLUSH=1 FUA=2 DISCARD=4 MARK=8 METADATA=16
//		data_len uint64     // length of the mark name for MARK entries
//		mark [data_len]uint8 // only for MARK entries
//		payload [nr_sectors*sector_size]uint8 // absent for DISCARD entries
//
// Two layouts are supported. In the Packed layout, the structures
// above are laid out back to back. In the Aligned layout, which is the
// layout the kernel target writes, the header occupies the whole first
// sector and each entry header (together with its mark name) occupies
// one whole sector; payload sectors follow.
package logwrites

import "encoding/binary"

const (
	// Magic identifies a log-writes log.
	Magic uint64 = 0x6a736677736872
	// Version is the only log format version understood by this package.
	Version uint64 = 1

	// HeaderSize is the encoded size of a Header.
	HeaderSize = 32
	// EntrySize is the encoded size of an Entry, excluding its mark
	// name and payload.
	EntrySize = 32

	// MaxMarkLen bounds the length of a checkpoint name in the Packed
	// layout. Longer names indicate a corrupt entry.
	MaxMarkLen = 4096
)

var byteOrder = binary.LittleEndian

// Layout describes how headers and entries are placed in a log stream.
type Layout int

const (
	// Packed places headers, entries, mark names and payloads back to
	// back.
	Packed Layout = iota
	// Aligned places the header and each entry header in a sector of
	// its own, as dm-log-writes does.
	Aligned
)

// String returns the layout's name, as accepted by ParseLayout.
func (l Layout) String() string {
	switch l {
	case Packed:
		return "packed"
	case Aligned:
		return "aligned"
	default:
		return "unknown"
	}
}

// ParseLayout returns the layout named s. The empty string names the
// Packed layout.
func ParseLayout(s string) (Layout, bool) {
	switch s {
	case "packed", "":
		return Packed, true
	case "aligned":
		return Aligned, true
	}
	return Packed, false
}

// HeaderRegion returns the number of bytes the header occupies in a
// log with the given layout and sector size.
func (l Layout) HeaderRegion(sectorSize uint32) int64 {
	if l == Aligned && sectorSize > HeaderSize {
		return int64(sectorSize)
	}
	return HeaderSize
}

// EntryRegion returns the number of bytes an entry header occupies in
// a log with the given layout and sector size. In the Packed layout it
// excludes the mark name, which is read separately.
func (l Layout) EntryRegion(sectorSize uint32) int64 {
	if l == Aligned && sectorSize > EntrySize {
		return int64(sectorSize)
	}
	return EntrySize
}
