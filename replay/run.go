// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package replay

import (
	"context"
	"fmt"

	"github.com/grailbio/logwrites/errors"
	"github.com/grailbio/logwrites/log"
	"github.com/grailbio/logwrites/logwrites"
)

// RunOptions selects the part of a log that Run applies.
type RunOptions struct {
	// StartEntry is the index of the first entry to apply. Earlier
	// entries are read but not applied.
	StartEntry uint64
	// StartMark, if set, names the checkpoint after which entries are
	// applied. Entries up to and including the checkpoint are read but
	// not applied.
	StartMark string
	// EndMark, if set, names the checkpoint at which to stop. The
	// checkpoint entry itself is applied.
	EndMark string
	// StopFlags stops replay after the first applied entry carrying
	// any of these flags.
	StopFlags logwrites.Flags
	// Limit is the maximum number of entries to apply. Zero means no
	// limit.
	Limit uint64
}

// Policy returns the stop policy implied by o.
func (o RunOptions) Policy() StopPolicy {
	p := StopPolicy{Mask: o.StopFlags, Limit: o.Limit}
	if o.EndMark != "" {
		p.Mask |= logwrites.Mark
		p.Mark = o.EndMark
	}
	return p
}

// Result summarizes a replay session.
type Result struct {
	// Scanned is the number of entries read without being applied.
	Scanned uint64
	// Applied is the number of entries applied to the target.
	Applied uint64
	// Stopped is set when replay ended on the stop policy rather than
	// at the end of the log.
	Stopped bool
	// Last is the last entry applied, if any.
	Last *logwrites.Entry
}

// Run replays the log read by eng. It first skips to the entry
// selected by opts.StartEntry and opts.StartMark, then applies entries
// until the log is exhausted or opts' stop policy is satisfied. The
// context is checked between entries; an in-flight entry is always
// completed.
func Run(ctx context.Context, eng *Engine, opts RunOptions) (Result, error) {
	var res Result
	for eng.Consumed() < opts.StartEntry {
		if err := ctx.Err(); err != nil {
			return res, errors.E(errors.Canceled, "replay", err)
		}
		entry, err := eng.Step(false)
		if err != nil {
			return res, err
		}
		if entry == nil {
			return res, errors.E(errors.Invalid, fmt.Sprintf("start entry %d is beyond the end of the log (%d entries)", opts.StartEntry, eng.Header().EntryCount))
		}
		res.Scanned++
	}
	if opts.StartMark != "" {
		n, err := skipToMark(ctx, eng, opts.StartMark)
		res.Scanned += n
		if err != nil {
			return res, err
		}
		log.Printf("found start mark %q at entry %d", opts.StartMark, eng.Consumed()-1)
	}

	policy := opts.Policy()
	for {
		if err := ctx.Err(); err != nil {
			return res, errors.E(errors.Canceled, "replay", err)
		}
		entry, err := eng.Step(true)
		if err != nil {
			return res, err
		}
		if entry == nil {
			break
		}
		res.Applied++
		res.Last = entry
		if policy.Stop(entry, res.Applied) {
			res.Stopped = true
			break
		}
	}
	if opts.EndMark != "" && !res.Stopped {
		log.Printf("end mark %q not found; replayed to the end of the log", opts.EndMark)
	}
	return res, nil
}

// Find scans the log read by eng for the checkpoint named mark and
// returns its entry index. Nothing is applied to the target.
func Find(ctx context.Context, eng *Engine, mark string) (uint64, error) {
	if _, err := skipToMark(ctx, eng, mark); err != nil {
		return 0, err
	}
	return eng.Consumed() - 1, nil
}

// Scan reads the remaining entries of the log without applying them,
// calling fn with each entry's index.
func Scan(ctx context.Context, eng *Engine, fn func(idx uint64, entry *logwrites.Entry) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.E(errors.Canceled, "scan", err)
		}
		idx := eng.Consumed()
		entry, err := eng.Step(false)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		if err := fn(idx, entry); err != nil {
			return err
		}
	}
}

// skipToMark scans entries up to and including the checkpoint named
// mark, returning the number of entries scanned.
func skipToMark(ctx context.Context, eng *Engine, mark string) (uint64, error) {
	var n uint64
	for {
		if err := ctx.Err(); err != nil {
			return n, errors.E(errors.Canceled, "scan", err)
		}
		entry, err := eng.Step(false)
		if err != nil {
			return n, err
		}
		if entry == nil {
			return n, errors.E(errors.NotExist, fmt.Sprintf("mark %q", mark))
		}
		n++
		if entry.IsMark() && entry.Mark == mark {
			return n, nil
		}
	}
}
