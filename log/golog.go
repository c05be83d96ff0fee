// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package log

import (
	"flag"
	"io"
	golog "log"
	"sync/atomic"
)

var golevel = Info

var called int32

// AddFlags adds the -log-level flag to the flag.CommandLine flag set.
// The flag is named so that it does not collide with the replay
// tool's -log path flag.
func AddFlags() {
	if atomic.AddInt32(&called, 1) != 1 {
		Error.Printf("log.AddFlags: called twice!")
		return
	}
	flag.Var(new(logFlag), "log-level", "set log level (off, error, info, debug)")
}

const (
	Ldate         = golog.Ldate
	Ltime         = golog.Ltime
	Lmicroseconds = golog.Lmicroseconds
	Lshortfile    = golog.Lshortfile
	LstdFlags     = Ldate | Ltime
)

// SetFlags sets the output flags for the Go standard logger.
func SetFlags(flag int) {
	golog.SetFlags(flag)
}

// SetOutput sets the output destination for the Go standard logger.
func SetOutput(w io.Writer) {
	golog.SetOutput(w)
}

// SetPrefix sets the output prefix for the Go standard logger.
func SetPrefix(prefix string) {
	golog.SetPrefix(prefix)
}

// SetLevel sets the log level for the Go standard logger.
// It should be called once at the beginning of a program's main.
func SetLevel(level Level) {
	golevel = level
}

type logFlag string

func (f logFlag) String() string {
	return string(f)
}

func (f *logFlag) Set(level string) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}
	*f = logFlag(level)
	golevel = l
	return nil
}

// Get implements flag.Getter.
func (logFlag) Get() interface{} {
	return golevel
}

type gologOutputter struct{}

func (gologOutputter) Level() Level { return golevel }

func (gologOutputter) Output(calldepth int, level Level, s string) error {
	if golevel < level {
		return nil
	}
	return golog.Output(calldepth+1, s)
}
