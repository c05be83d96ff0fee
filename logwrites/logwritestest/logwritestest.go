// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package logwritestest builds log-writes logs for tests.
package logwritestest

import (
	"bytes"
	"fmt"
	"os"
	"testing"

	"github.com/grailbio/logwrites/logwrites"
)

// Builder accumulates entries and renders them as a log.
type Builder struct {
	// Magic and Version are written to the header. NewBuilder sets
	// them to the valid values; tests override them to produce
	// foreign logs.
	Magic, Version uint64
	// EntryCount, if nonzero, overrides the entry count written to
	// the header.
	EntryCount uint64

	layout     logwrites.Layout
	sectorSize uint32
	n          uint64
	body       []byte
}

// NewBuilder returns a builder for a log with the given layout and
// sector size.
func NewBuilder(layout logwrites.Layout, sectorSize uint32) *Builder {
	return &Builder{
		Magic:      logwrites.Magic,
		Version:    logwrites.Version,
		layout:     layout,
		sectorSize: sectorSize,
	}
}

// Write appends a write of data at the given sector. len(data) must be
// a multiple of the sector size.
func (b *Builder) Write(sector uint64, data []byte, flags logwrites.Flags) *Builder {
	if len(data)%int(b.sectorSize) != 0 {
		panic(fmt.Sprintf("logwritestest: payload of %d bytes is not sector aligned", len(data)))
	}
	b.entry(logwrites.Entry{
		Sector:      sector,
		SectorCount: uint64(len(data)) / uint64(b.sectorSize),
		Flags:       flags,
		DataLen:     uint64(len(data)),
	}, nil)
	b.body = append(b.body, data...)
	return b
}

// Fill appends a write of count sectors, each byte set to v.
func (b *Builder) Fill(sector, count uint64, v byte) *Builder {
	return b.Write(sector, bytes.Repeat([]byte{v}, int(count)*int(b.sectorSize)), 0)
}

// Discard appends a discard of count sectors starting at sector.
func (b *Builder) Discard(sector, count uint64) *Builder {
	b.entry(logwrites.Entry{Sector: sector, SectorCount: count, Flags: logwrites.Discard}, nil)
	return b
}

// Flush appends a zero-length entry with the given flags.
func (b *Builder) Flush(flags logwrites.Flags) *Builder {
	b.entry(logwrites.Entry{Flags: flags}, nil)
	return b
}

// Mark appends a checkpoint entry with the given name.
func (b *Builder) Mark(name string) *Builder {
	b.entry(logwrites.Entry{Flags: logwrites.Mark, DataLen: uint64(len(name))}, []byte(name))
	return b
}

// Len returns the number of entries appended so far.
func (b *Builder) Len() uint64 { return b.n }

func (b *Builder) entry(e logwrites.Entry, mark []byte) {
	b.n++
	start := len(b.body)
	b.body = AppendEntry(b.body, e)
	b.body = append(b.body, mark...)
	if b.layout == logwrites.Aligned {
		b.body = pad(b.body, start+int(b.layout.EntryRegion(b.sectorSize)))
	}
}

// Bytes renders the log.
func (b *Builder) Bytes() []byte {
	n := b.EntryCount
	if n == 0 {
		n = b.n
	}
	p := AppendHeader(nil, logwrites.Header{
		Magic:      b.Magic,
		Version:    b.Version,
		EntryCount: n,
		SectorSize: b.sectorSize,
	})
	p = pad(p, int(b.layout.HeaderRegion(b.sectorSize)))
	return append(p, b.body...)
}

// WriteFile renders the log into a file named path.
func (b *Builder) WriteFile(t testing.TB, path string) {
	t.Helper()
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

// AppendHeader appends the encoding of h to p.
func AppendHeader(p []byte, h logwrites.Header) []byte {
	p = appendUint64(p, h.Magic)
	p = appendUint64(p, h.Version)
	p = appendUint64(p, h.EntryCount)
	p = appendUint32(p, 0)
	return appendUint32(p, h.SectorSize)
}

// AppendEntry appends the encoding of e's header to p.
func AppendEntry(p []byte, e logwrites.Entry) []byte {
	p = appendUint64(p, e.Sector)
	p = appendUint64(p, e.SectorCount)
	p = appendUint64(p, uint64(e.Flags))
	return appendUint64(p, e.DataLen)
}

func pad(p []byte, n int) []byte {
	for len(p) < n {
		p = append(p, 0)
	}
	return p
}

func appendUint32(p []byte, v uint32) []byte {
	return append(p, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint64(p []byte, v uint64) []byte {
	return append(p, byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}
