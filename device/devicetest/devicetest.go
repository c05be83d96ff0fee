// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package devicetest provides an in-memory replay target for tests.
package devicetest

import (
	"bytes"
	"fmt"

	"github.com/grailbio/logwrites/errors"
)

// Memory is an in-memory device.Device. Writes beyond the current size
// grow the device.
type Memory struct {
	// Data is the device's content.
	Data []byte
	// DiscardSupported makes Discard zero its range instead of failing
	// with errors.NotSupported.
	DiscardSupported bool
	// DiscardErr, if set, is returned by every Discard call.
	DiscardErr error
	// ShortWrites makes every WriteAt transfer one byte less than
	// requested.
	ShortWrites bool

	// Discards counts calls to Discard, including failed ones.
	Discards int
	// Writes records the length of every WriteAt call.
	Writes []int
	// Closed is set by Close.
	Closed bool
}

// NewMemory returns a device of the given size filled with fill.
func NewMemory(size int, fill byte) *Memory {
	return &Memory{Data: bytes.Repeat([]byte{fill}, size)}
}

// WriteAt implements device.Device.
func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.Writes = append(m.Writes, len(p))
	n := len(p)
	if m.ShortWrites && n > 0 {
		n--
	}
	m.grow(off + int64(n))
	copy(m.Data[off:], p[:n])
	return n, nil
}

// Discard implements device.Device.
func (m *Memory) Discard(off, n int64) error {
	m.Discards++
	if m.DiscardErr != nil {
		return m.DiscardErr
	}
	if !m.DiscardSupported {
		return errors.E(errors.NotSupported, fmt.Sprintf("discard [%d, +%d)", off, n))
	}
	m.grow(off + n)
	for i := off; i < off+n; i++ {
		m.Data[i] = 0
	}
	return nil
}

// Close implements device.Device.
func (m *Memory) Close() error {
	m.Closed = true
	return nil
}

// Range returns n bytes of the device's content at off.
func (m *Memory) Range(off, n int64) []byte {
	m.grow(off + n)
	return m.Data[off : off+n]
}

func (m *Memory) grow(size int64) {
	if int64(len(m.Data)) < size {
		m.Data = append(m.Data, make([]byte, size-int64(len(m.Data)))...)
	}
}
