// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// The following enables go generate to generate the doc.go file.
//go:generate go run v.io/x/lib/cmdline/gendoc "--build-cmd=go install" --copyright-notice= . -help
package main

import (
	"flag"
	"regexp"

	"github.com/grailbio/logwrites/cmdutil"
	"github.com/grailbio/logwrites/config"
	"github.com/grailbio/logwrites/log"
	"v.io/x/lib/cmdline"
)

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:  "replay-log",
		Short: "Replay and inspect dm-log-writes logs",
		Long: `
Command replay-log replays a log of block-device writes, as captured
by the dm-log-writes device mapper target, onto a device or file. The
device's content can be reconstructed at any point of the recorded
history, such as the checkpoint a test marked just before a simulated
crash.

Session options may also be given in a YAML file (-config) or in
` + config.EnvPrefix + `* environment variables; flags take precedence over
both.
`,
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdReplay(),
			newCmdList(),
			newCmdFind(),
			newCmdCount(),
			cmdutil.CreateVersionCommand("version", "replay-log"),
		},
	}
}

// setup resolves opts after flag parsing and configures logging. The
// level in opts applies unless -log-level was given.
func setup(opts *config.Options, fs *flag.FlagSet) error {
	if err := opts.ProcessFlags(fs); err != nil {
		return err
	}
	if !isFlagSet(flag.CommandLine, "log-level") {
		log.SetLevel(opts.Level())
	}
	return nil
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	var set bool
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix("replay-log: ")
	log.AddFlags()
	cmdline.HideGlobalFlagsExcept(regexp.MustCompile(`^log-level$`))
	cmdline.Main(newCmdRoot())
}
