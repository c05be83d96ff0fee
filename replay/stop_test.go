// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package replay_test

import (
	"testing"

	"github.com/grailbio/logwrites/logwrites"
	"github.com/grailbio/logwrites/replay"
	"github.com/grailbio/testutil/expect"
)

func TestStopPolicy(t *testing.T) {
	var (
		ckpt1 = &logwrites.Entry{Flags: logwrites.Mark, Mark: "ckpt1"}
		ckpt2 = &logwrites.Entry{Flags: logwrites.Mark, Mark: "ckpt2"}
		flush = &logwrites.Entry{Flags: logwrites.Flush}
		write = &logwrites.Entry{Sector: 1, SectorCount: 1, Flags: logwrites.Metadata}
	)
	for _, c := range []struct {
		policy replay.StopPolicy
		entry  *logwrites.Entry
		match  bool
	}{
		{replay.StopPolicy{Mask: logwrites.Mark, Mark: "ckpt1"}, ckpt1, true},
		{replay.StopPolicy{Mask: logwrites.Mark, Mark: "ckpt1"}, ckpt2, false},
		{replay.StopPolicy{Mask: logwrites.Mark, Mark: "ckpt1"}, flush, false},
		{replay.StopPolicy{Mask: logwrites.Mark | logwrites.Flush, Mark: "ckpt1"}, flush, false},
		{replay.StopPolicy{Mask: logwrites.Flush}, flush, true},
		{replay.StopPolicy{Mask: logwrites.Flush | logwrites.FUA}, flush, true},
		{replay.StopPolicy{Mask: logwrites.Flush}, write, false},
		{replay.StopPolicy{Mask: logwrites.Flush}, ckpt1, false},
		{replay.StopPolicy{Mask: logwrites.Metadata}, write, true},
		{replay.StopPolicy{}, ckpt1, false},
		{replay.StopPolicy{}, write, false},
	} {
		expect.EQ(t, c.policy.Match(c.entry), c.match, "policy %+v, entry %s", c.policy, c.entry)
		expect.EQ(t, c.policy.Stop(c.entry, 1), c.match)
	}
}

func TestStopLimit(t *testing.T) {
	write := &logwrites.Entry{Sector: 1, SectorCount: 1}
	p := replay.StopPolicy{Limit: 3}
	expect.False(t, p.Stop(write, 1))
	expect.False(t, p.Stop(write, 2))
	expect.True(t, p.Stop(write, 3))
	expect.True(t, p.Stop(write, 4))

	p = replay.StopPolicy{}
	expect.False(t, p.Stop(write, 1<<40))

	p = replay.StopPolicy{Mask: logwrites.Mark, Mark: "ckpt1", Limit: 10}
	expect.True(t, p.Stop(&logwrites.Entry{Flags: logwrites.Mark, Mark: "ckpt1"}, 1))
	expect.False(t, p.Stop(&logwrites.Entry{Flags: logwrites.Mark, Mark: "ckpt2"}, 9))
	expect.True(t, p.Stop(&logwrites.Entry{Flags: logwrites.Mark, Mark: "ckpt2"}, 10))
}

func TestRunOptionsPolicy(t *testing.T) {
	p := replay.RunOptions{EndMark: "fsync", Limit: 5, StopFlags: logwrites.FUA}.Policy()
	expect.EQ(t, p, replay.StopPolicy{Mask: logwrites.FUA | logwrites.Mark, Mark: "fsync", Limit: 5})
	expect.EQ(t, replay.RunOptions{}.Policy(), replay.StopPolicy{})
}
