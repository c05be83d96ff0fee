// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:build linux || darwin || freebsd || netbsd || openbsd

package device

import (
	"os"

	"github.com/grailbio/logwrites/errors"
	"golang.org/x/sys/unix"
)

// lock takes an exclusive advisory lock on f. It does not wait: a
// target locked by another replay session is reported as in use. The
// lock is released when f is closed.
func lock(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	switch err {
	case nil:
		return nil
	case unix.EWOULDBLOCK:
		return errors.E(errors.Precondition, errors.Fatal, "target is in use", f.Name())
	case unix.ENOTSUP, unix.EINVAL:
		// Some filesystems do not support flock; replay unlocked.
		return nil
	default:
		return errors.E(errors.IO, errors.Fatal, "lock target", f.Name(), err)
	}
}
