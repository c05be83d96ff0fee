// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package device provides the replay target: a random-access device
// or file that accepts positioned writes and, where the platform
// allows it, discards.
package device

import (
	"fmt"
	"os"

	"github.com/grailbio/logwrites/errors"
)

// Device is a replay target.
type Device interface {
	// WriteAt writes len(p) bytes at offset off, with the semantics of
	// io.WriterAt.
	WriteAt(p []byte, off int64) (int, error)
	// Discard discards n bytes at offset off. Devices that cannot
	// discard return an error of kind errors.NotSupported; any other
	// error is a device failure.
	Discard(off, n int64) error
	// Close releases the device.
	Close() error
}

// File is a Device backed by an open file: either a block device or a
// regular file.
type File struct {
	f     *os.File
	block bool
}

// Open opens the file or block device at path for writing. The file
// must already exist. Open takes an exclusive lock on the target for
// the lifetime of the File, failing with errors.Precondition if
// another session holds it.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.E(errors.Fatal, "open target", path, err)
	}
	if err := lock(f); err != nil {
		f.Close()
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.E(errors.IO, errors.Fatal, "stat target", path, err)
	}
	mode := info.Mode()
	return &File{
		f:     f,
		block: mode&os.ModeDevice != 0 && mode&os.ModeCharDevice == 0,
	}, nil
}

// IsBlockDevice tells whether the target is a block device.
func (d *File) IsBlockDevice() bool { return d.block }

// WriteAt implements Device.
func (d *File) WriteAt(p []byte, off int64) (int, error) {
	return d.f.WriteAt(p, off)
}

// Discard implements Device. Block devices are discarded with
// BLKDISCARD; regular files have the range deallocated, so that it
// reads back as zeros.
func (d *File) Discard(off, n int64) error {
	if off < 0 || n < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("discard [%d, +%d)", off, n))
	}
	if n == 0 {
		return nil
	}
	return discard(d.f, d.block, off, n)
}

// Sync flushes the target to stable storage.
func (d *File) Sync() error {
	if err := d.f.Sync(); err != nil {
		return errors.E(errors.IO, "sync target", d.f.Name(), err)
	}
	return nil
}

// Close implements Device.
func (d *File) Close() error {
	return d.f.Close()
}
