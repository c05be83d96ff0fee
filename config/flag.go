// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"flag"

	"github.com/grailbio/logwrites/errors"
)

// RegisterFlags registers a flag for each of o's fields on the
// provided FlagSet, with o's current values as defaults. The flags
// configure o when ProcessFlags is called (after flag parsing). In
// addition to the per-field flags, RegisterFlags registers:
//
//	-config path
//		Loads the YAML file at the given path. Values in the file
//		override the defaults; flags set on the command line override
//		the file.
//
// The log level is left to the global -log-level flag.
func (o *Options) RegisterFlags(fs *flag.FlagSet) {
	o.RegisterLogFlags(fs)
	fs.StringVar(&o.Replay, "replay", o.Replay, "the device or file to replay onto")
	fs.Uint64Var(&o.Limit, "limit", o.Limit, "apply at most this many entries; 0 means no limit")
	fs.StringVar(&o.StartMark, "start-mark", o.StartMark, "start applying after the checkpoint with this name")
	fs.StringVar(&o.EndMark, "end-mark", o.EndMark, "stop after applying the checkpoint with this name")
	fs.StringVar(&o.StopFlags, "stop-flags", o.StopFlags, "stop after applying the first entry with any of these |-separated flags, e.g. FUA|FLUSH")
	fs.Uint64Var(&o.StartEntry, "start-entry", o.StartEntry, "start applying at the entry with this index")
	fs.Int64Var(&o.MaxZeroChunk, "max-zero-chunk", o.MaxZeroChunk, "the largest range, in bytes, zero-filled when the target cannot discard")
	fs.BoolVar(&o.IgnoreDiscard, "ignore-discard", o.IgnoreDiscard, "skip discard entries")
}

// RegisterLogFlags registers only the flags needed to read a log:
// -config, -log and -layout. It is used by commands that inspect a
// log without replaying it.
func (o *Options) RegisterLogFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.path, "config", "", "load session options from the YAML file at the provided path")
	fs.StringVar(&o.Log, "log", o.Log, "the log to replay")
	fs.StringVar(&o.Layout, "layout", o.Layout, "the log layout: packed or aligned")
}

// ProcessFlags resolves o from the flags registered by RegisterFlags,
// the file named by -config, and the environment, and validates the
// result. It must be called after fs is parsed.
func (o *Options) ProcessFlags(fs *flag.FlagSet) error {
	set := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		if f.Name != "config" {
			set[f.Name] = f.Value.String()
		}
	})
	if o.path != "" {
		if err := o.LoadFile(o.path); err != nil {
			return err
		}
	}
	if err := o.LoadEnv(nil); err != nil {
		return err
	}
	// Reapply the flags given on the command line.
	for name, value := range set {
		if err := fs.Set(name, value); err != nil {
			return errors.E(errors.Invalid, "-"+name, err)
		}
	}
	return o.Validate()
}
