// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:build linux

package device

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/grailbio/logwrites/errors"
	"golang.org/x/sys/unix"
)

func discard(f *os.File, block bool, off, n int64) error {
	var err error
	if block {
		r := [2]uint64{uint64(off), uint64(n)}
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKDISCARD, uintptr(unsafe.Pointer(&r[0])))
		if errno != 0 {
			err = errno
		}
	} else {
		err = unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, off, n)
	}
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf("discard %s [%d, +%d)", f.Name(), off, n)
	switch err {
	case unix.EOPNOTSUPP, unix.ENOTTY, unix.EINVAL, unix.ENOSYS:
		return errors.E(errors.NotSupported, msg, err)
	}
	return errors.E(errors.IO, msg, err)
}
