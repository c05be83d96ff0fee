// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package config holds the settings of a replay session.
//
// Settings are resolved from four sources, each overriding the ones
// before it: built-in defaults (Default), a YAML file, environment
// variables prefixed with EnvPrefix, and command-line flags. A YAML
// file looks like this:
//
//	log: /var/tmp/fsx.log.zst
//	replay: /dev/vdb
//	end_mark: fsx-1024
//	stop_flags: FUA|FLUSH
//	max_zero_chunk: 268435456
//	layout: packed
//	log_level: debug
//
// and the same end mark is set from the environment by
// REPLAY_LOG_END_MARK=fsx-1024.
package config

import (
	"fmt"
	"io/ioutil"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
	"github.com/grailbio/logwrites/errors"
	"github.com/grailbio/logwrites/log"
	"github.com/grailbio/logwrites/logwrites"
	"github.com/grailbio/logwrites/replay"
)

// EnvPrefix is the prefix of environment variables that configure a
// session.
const EnvPrefix = "REPLAY_LOG_"

// Options configures a replay session.
type Options struct {
	// Log is the path of the log to replay.
	Log string `yaml:"log" env:"LOG"`
	// Replay is the path of the target device or file.
	Replay string `yaml:"replay" env:"REPLAY"`
	// Limit is the maximum number of entries to apply; zero means no
	// limit.
	Limit uint64 `yaml:"limit" env:"LIMIT"`
	// StartMark names the checkpoint after which to start applying.
	StartMark string `yaml:"start_mark" env:"START_MARK"`
	// EndMark names the checkpoint at which to stop.
	EndMark string `yaml:"end_mark" env:"END_MARK"`
	// StopFlags is a |-separated list of entry flags, such as
	// "FUA|FLUSH". Replay stops after applying the first entry that
	// carries any of them.
	StopFlags string `yaml:"stop_flags" env:"STOP_FLAGS"`
	// StartEntry is the index of the first entry to apply.
	StartEntry uint64 `yaml:"start_entry" env:"START_ENTRY"`
	// MaxZeroChunk bounds a single zero-fill, in bytes.
	MaxZeroChunk int64 `yaml:"max_zero_chunk" env:"MAX_ZERO_CHUNK"`
	// IgnoreDiscard skips discard entries.
	IgnoreDiscard bool `yaml:"ignore_discard" env:"IGNORE_DISCARD"`
	// Layout is the log's layout: "packed" or "aligned".
	Layout string `yaml:"layout" env:"LAYOUT"`
	// LogLevel is the level at which the session logs.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// path is the YAML file named by the -config flag.
	path string
}

// Default returns the default options.
func Default() Options {
	return Options{
		MaxZeroChunk: replay.DefaultMaxZeroChunk,
		Layout:       logwrites.Packed.String(),
		LogLevel:     log.Info.String(),
	}
}

// Load returns the default options overridden by the YAML file at
// path.
func Load(path string) (Options, error) {
	o := Default()
	if err := o.LoadFile(path); err != nil {
		return Options{}, err
	}
	return o, nil
}

// LoadFile overrides o's fields with those set in the YAML file at
// path. Unknown keys are an error.
func (o *Options) LoadFile(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.E("read config", path, err)
	}
	if err := yaml.UnmarshalWithOptions(data, o, yaml.DisallowUnknownField()); err != nil {
		return errors.E(errors.Invalid, "parse config", path, err)
	}
	log.Debug.Printf("loaded config %s", path)
	return nil
}

// LoadEnv overrides o's fields with those set by EnvPrefix variables
// in environ. If environ is nil, the process environment is used.
func (o *Options) LoadEnv(environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(o, opts); err != nil {
		return errors.E(errors.Invalid, "parse environment", err)
	}
	return nil
}

// Validate checks o for consistency.
func (o Options) Validate() error {
	if _, ok := logwrites.ParseLayout(o.Layout); !ok {
		return errors.E(errors.Invalid, fmt.Sprintf("unknown layout %q", o.Layout))
	}
	if _, err := logwrites.ParseFlags(o.StopFlags); err != nil {
		return errors.E(errors.Invalid, "stop flags", err)
	}
	if _, err := log.ParseLevel(o.LogLevel); err != nil {
		return errors.E(errors.Invalid, err)
	}
	if o.MaxZeroChunk <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("max zero chunk must be positive, got %d", o.MaxZeroChunk))
	}
	return nil
}

// Engine returns the engine options selected by o. It should be called
// only on validated options.
func (o Options) Engine() replay.Options {
	layout, _ := logwrites.ParseLayout(o.Layout)
	return replay.Options{
		Layout:        layout,
		MaxZeroChunk:  o.MaxZeroChunk,
		IgnoreDiscard: o.IgnoreDiscard,
	}
}

// Run returns the run options selected by o. It should be called only
// on validated options.
func (o Options) Run() replay.RunOptions {
	stop, _ := logwrites.ParseFlags(o.StopFlags)
	return replay.RunOptions{
		StartEntry: o.StartEntry,
		StartMark:  o.StartMark,
		EndMark:    o.EndMark,
		StopFlags:  stop,
		Limit:      o.Limit,
	}
}

// Level returns the log level selected by o.
func (o Options) Level() log.Level {
	level, _ := log.ParseLevel(o.LogLevel)
	return level
}
