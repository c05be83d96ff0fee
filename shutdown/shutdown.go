// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package shutdown collects the cleanup that a command must perform
// before it exits, such as closing and syncing a replay target. It is
// a separate package so that libraries can register cleanups without
// depending on the command's runner.
package shutdown

import "sync"

// Func is the type of function run on shutdowns.
type Func func()

var (
	mu    sync.Mutex
	funcs []Func
)

// Register registers a function to be run by Run. The callbacks run
// in the reverse order of registration.
func Register(f Func) {
	mu.Lock()
	funcs = append(funcs, f)
	mu.Unlock()
}

// Run runs and forgets the callbacks added by Register.
func Run() {
	mu.Lock()
	fns := funcs
	funcs = nil
	mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
