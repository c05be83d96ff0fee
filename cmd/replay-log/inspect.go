// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/gobwas/glob"
	"github.com/grailbio/logwrites/cmdutil"
	"github.com/grailbio/logwrites/config"
	"github.com/grailbio/logwrites/errors"
	"github.com/grailbio/logwrites/logwrites"
	"github.com/grailbio/logwrites/replay"
	"v.io/x/lib/cmdline"
)

// newInspectCommand returns a command that reads, but never applies,
// the log named by -log. run is called with the opened engine.
func newInspectCommand(cmd *cmdline.Command, run func(context.Context, *cmdline.Env, *replay.Engine) error) *cmdline.Command {
	opts := config.Default()
	opts.RegisterLogFlags(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, args []string) error {
		if len(args) != 0 {
			return env.UsageErrorf("%s takes no arguments", cmd.Name)
		}
		if err := setup(&opts, &cmd.Flags); err != nil {
			return err
		}
		if opts.Log == "" {
			return env.UsageErrorf("%s requires -log", cmd.Name)
		}
		eng, err := replay.OpenLog(opts.Log, opts.Engine())
		if err != nil {
			return err
		}
		defer eng.Close()
		ctx, cancel := signalContext()
		defer cancel()
		return run(ctx, env, eng)
	})
	return cmd
}

var (
	listMarks string
	findMark  string
)

func newCmdList() *cmdline.Command {
	cmd := newInspectCommand(&cmdline.Command{
		Name:  "list",
		Short: "List the entries of a log",
		Long: `
Command list prints one line for each entry of the log: its index, its
sector range and its flags. With -marks, only checkpoints whose names
match the given glob pattern are printed.
`,
	}, runList)
	cmd.Flags.StringVar(&listMarks, "marks", "", "list only checkpoints with names matching this glob pattern")
	return cmd
}

func runList(ctx context.Context, env *cmdline.Env, eng *replay.Engine) error {
	var match func(*logwrites.Entry) bool
	if listMarks != "" {
		g, err := glob.Compile(listMarks)
		if err != nil {
			return errors.E(errors.Invalid, "-marks", listMarks, err)
		}
		match = func(entry *logwrites.Entry) bool {
			return entry.IsMark() && g.Match(entry.Mark)
		}
	}
	return replay.Scan(ctx, eng, func(idx uint64, entry *logwrites.Entry) error {
		if match != nil && !match(entry) {
			return nil
		}
		_, err := fmt.Fprintf(env.Stdout, "%d: %s\n", idx, entry)
		return err
	})
}

func newCmdFind() *cmdline.Command {
	cmd := newInspectCommand(&cmdline.Command{
		Name:  "find",
		Short: "Print the index of a checkpoint",
		Long: `
Command find prints the index of the first checkpoint entry named by
-mark. It fails if the log has no such checkpoint.
`,
	}, runFind)
	cmd.Flags.StringVar(&findMark, "mark", "", "the checkpoint to find")
	return cmd
}

func runFind(ctx context.Context, env *cmdline.Env, eng *replay.Engine) error {
	if findMark == "" {
		return env.UsageErrorf("find requires -mark")
	}
	idx, err := replay.Find(ctx, eng, findMark)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, idx)
	return nil
}

func newCmdCount() *cmdline.Command {
	return newInspectCommand(&cmdline.Command{
		Name:  "count",
		Short: "Print the number of entries in a log",
	}, func(_ context.Context, env *cmdline.Env, eng *replay.Engine) error {
		fmt.Fprintln(env.Stdout, eng.Header().EntryCount)
		return nil
	})
}
