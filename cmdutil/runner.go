// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package cmdutil provides utility routines for implementing command
// line tools with v.io/x/lib/cmdline.
package cmdutil

import (
	"github.com/grailbio/logwrites/shutdown"
	"v.io/x/lib/cmdline"
)

// RunnerFunc is an adapter that turns regular functions into cmdline.Runners.
type RunnerFunc func(*cmdline.Env, []string) error

// Run implements the cmdline.Runner interface method by calling f(env, args)
// and then running the callbacks registered with package shutdown, so
// that devices opened by f are released even when f fails.
func (f RunnerFunc) Run(env *cmdline.Env, args []string) error {
	err := f(env, args)
	shutdown.Run()
	return err
}
