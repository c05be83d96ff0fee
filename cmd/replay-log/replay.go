// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grailbio/logwrites/cmdutil"
	"github.com/grailbio/logwrites/config"
	"github.com/grailbio/logwrites/errors"
	"github.com/grailbio/logwrites/log"
	"github.com/grailbio/logwrites/replay"
	"github.com/grailbio/logwrites/shutdown"
	"v.io/x/lib/cmdline"
)

func newCmdReplay() *cmdline.Command {
	opts := config.Default()
	cmd := &cmdline.Command{
		Name:  "replay",
		Short: "Replay a log onto a device or file",
		Long: `
Command replay applies the entries of a log, in order, to the device or
file named by -replay. Writes are copied from the log; discards are
passed to the device, or replaced by zeros if the device cannot
discard.

By default every entry is applied. -start-entry and -start-mark select
where to begin (earlier entries are read but not applied); -end-mark,
-stop-flags and -limit select where to stop. Replay stops after
applying the checkpoint named by -end-mark, or the first entry carrying
any of the flags given by -stop-flags (e.g. FUA|FLUSH).
`,
	}
	opts.RegisterFlags(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, args []string) error {
		if len(args) != 0 {
			return env.UsageErrorf("replay takes no arguments")
		}
		if err := setup(&opts, &cmd.Flags); err != nil {
			return err
		}
		if opts.Log == "" || opts.Replay == "" {
			return env.UsageErrorf("replay requires -log and -replay")
		}
		ctx, cancel := signalContext()
		defer cancel()
		err := runReplay(ctx, env, opts)
		if errors.Is(errors.Canceled, err) {
			fmt.Fprintln(env.Stderr, err)
			return cmdline.ErrExitCode(130)
		}
		return err
	})
	return cmd
}

func runReplay(ctx context.Context, env *cmdline.Env, opts config.Options) error {
	eng, err := replay.Open(opts.Log, opts.Replay, opts.Engine())
	if err != nil {
		return err
	}
	shutdown.Register(func() {
		if err := eng.Close(); err != nil {
			log.Error.Printf("close: %v", err)
		}
	})
	h := eng.Header()
	log.Printf("replaying %s onto %s: %d entries, sector size %d", opts.Log, opts.Replay, h.EntryCount, h.SectorSize)
	res, err := replay.Run(ctx, eng, opts.Run())
	if err != nil {
		return err
	}
	if err := eng.Sync(); err != nil {
		return err
	}
	if eng.DiscardUnsupported() {
		log.Printf("discards were replayed as zeros")
	}
	fmt.Fprintf(env.Stdout, "scanned %d entries, applied %d entries\n", res.Scanned, res.Applied)
	if res.Stopped && res.Last != nil {
		fmt.Fprintf(env.Stdout, "stopped at entry %d: %s\n", eng.Consumed()-1, res.Last)
	}
	return nil
}

// signalContext returns a context that is canceled on SIGINT or
// SIGTERM, so that replay stops between entries.
func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigc:
			log.Error.Printf("received %v; stopping after the current entry", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigc)
		cancel()
	}
}
