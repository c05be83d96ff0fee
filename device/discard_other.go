// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:build !linux

package device

import (
	"os"

	"github.com/grailbio/logwrites/errors"
)

func discard(f *os.File, block bool, off, n int64) error {
	return errors.E(errors.NotSupported, "discard", f.Name())
}
