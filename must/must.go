// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package must expresses the preconditions of the log decoders. A
// failed assertion is a programming error, not a malformed log: the
// decoders report malformed logs as errors, and assert only on the
// sizes of the buffers their callers hand them.
package must

import (
	"fmt"

	"github.com/grailbio/logwrites/log"
)

// Func is the function called to report a failed assertion and
// interrupt execution. Func is passed the call depth of the caller of
// the must function, which can be used to annotate messages.
//
// The default implementation logs the message with
// github.com/grailbio/logwrites/log at the Error level and then
// panics.
var Func func(int, ...interface{}) = func(depth int, v ...interface{}) {
	s := fmt.Sprint(v...)
	_ = log.Output(depth+1, log.Error, s)
	panic(s)
}

// Truef is a no-op if b is true. If it is false, Truef formats a
// message in the manner of fmt.Sprintf and calls Func.
func Truef(b bool, format string, v ...interface{}) {
	if b {
		return
	}
	Func(2, fmt.Sprintf(format, v...))
}
