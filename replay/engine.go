// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package replay applies a log-writes log to a target device, one
// entry at a time. An Engine owns the log stream and the target for
// the lifetime of a session; Run drives an engine from a starting
// point to a stop condition.
//
// Replay is strictly sequential. Entry i is fully applied before
// entry i+1 is read, and any failed transfer ends the session. The
// only degraded mode is a target that cannot discard: the first
// rejected discard switches the session to writing zeros for every
// later discard.
package replay

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/grailbio/logwrites/compress"
	"github.com/grailbio/logwrites/device"
	"github.com/grailbio/logwrites/errors"
	"github.com/grailbio/logwrites/log"
	"github.com/grailbio/logwrites/logwrites"
	"github.com/grailbio/logwrites/morebufio"
)

// logBufferSize is the read buffer of uncompressed log files. Entry
// headers are read through it; payloads larger than it bypass it.
const logBufferSize = 64 << 10

// Engine replays a log onto a device. Engines are not safe for
// concurrent use.
type Engine struct {
	log    stream
	target device.Device
	closer []func() error

	opts         Options
	header       logwrites.Header
	maxZeroChunk int64

	consumed           uint64
	discardUnsupported bool

	entryBuf []byte
	dataBuf  []byte
	zeros    []byte
}

// Open opens the log at logPath for reading and the device or file at
// targetPath for writing, and returns an engine positioned at the
// log's first entry. Logs whose names end in .gz, .bz2 or .zst are
// decompressed as they are read.
func Open(logPath, targetPath string, opts Options) (*Engine, error) {
	return open(logPath, opts, func() (device.Device, error) {
		d, err := device.Open(targetPath)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

// OpenLog opens the log at logPath for scanning. The returned engine
// has no target: Step fails if asked to apply an entry's payload.
func OpenLog(logPath string, opts Options) (*Engine, error) {
	return open(logPath, opts, func() (device.Device, error) {
		return noTarget{}, nil
	})
}

func open(logPath string, opts Options, openTarget func() (device.Device, error)) (_ *Engine, err error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, errors.E(errors.Fatal, "open log", logPath, err)
	}
	closer := []func() error{f.Close}
	defer func() {
		if err != nil {
			for i := len(closer) - 1; i >= 0; i-- {
				closer[i]()
			}
		}
	}()
	var r io.Reader = morebufio.NewReadSeekerSize(f, logBufferSize)
	zr, err := compress.NewReaderPath(f, logPath)
	if err != nil {
		return nil, errors.E(errors.Fatal, "open log", err)
	}
	if zr != nil {
		r = zr
		closer = append(closer, zr.Close)
	}
	target, err := openTarget()
	if err != nil {
		return nil, err
	}
	closer = append(closer, target.Close)
	e, err := newEngine(r, target, opts)
	if err != nil {
		return nil, errors.E("open log", logPath, err)
	}
	e.closer = closer
	return e, nil
}

// New returns an engine that replays the log read from r onto target.
// The header is read and validated before New returns; a log with a
// foreign magic number is rejected with an errors.Integrity error
// before any entry is read. Close closes target, and r if it is an
// io.Closer.
func New(r io.Reader, target device.Device, opts Options) (*Engine, error) {
	e, err := newEngine(r, target, opts)
	if err != nil {
		return nil, err
	}
	if c, ok := r.(io.Closer); ok {
		e.closer = append(e.closer, c.Close)
	}
	e.closer = append(e.closer, target.Close)
	return e, nil
}

func newEngine(r io.Reader, target device.Device, opts Options) (*Engine, error) {
	e := &Engine{
		log:          newStream(r),
		target:       target,
		opts:         opts,
		maxZeroChunk: opts.maxZeroChunk(),
	}
	p := make([]byte, logwrites.HeaderSize)
	if err := e.log.readFull(p); err != nil {
		return nil, errors.E(errors.IO, errors.Fatal, "read header", err)
	}
	e.header = logwrites.DecodeHeader(p)
	if err := e.header.Validate(); err != nil {
		return nil, errors.E(errors.Fatal, "read header", err)
	}
	if e.header.SectorSize > math.MaxInt32 {
		return nil, errors.E(errors.Integrity, errors.Fatal, fmt.Sprintf("sector size %d", e.header.SectorSize))
	}
	// Position the stream at the first entry.
	if err := e.log.skip(opts.Layout.HeaderRegion(e.header.SectorSize) - logwrites.HeaderSize); err != nil {
		return nil, errors.E(errors.IO, errors.Fatal, "seek to first entry", err)
	}
	log.Debug.Printf("log: %d entries, sector size %d, layout %s", e.header.EntryCount, e.header.SectorSize, opts.Layout)
	return e, nil
}

// Header returns the log's header.
func (e *Engine) Header() logwrites.Header { return e.header }

// Consumed returns the number of entries read so far.
func (e *Engine) Consumed() uint64 { return e.consumed }

// Done tells whether every entry in the log has been consumed.
func (e *Engine) Done() bool { return e.consumed >= e.header.EntryCount }

// Offset returns the log stream's current offset, in bytes from the
// start of the log.
func (e *Engine) Offset() int64 { return e.log.off }

// DiscardUnsupported tells whether the session has fallen back to
// zero-filling discards.
func (e *Engine) DiscardUnsupported() bool { return e.discardUnsupported }

// Step reads the next entry from the log and returns it. If apply is
// true, the entry's effect is applied to the target: its payload is
// written, or its range discarded. If apply is false, the log stream
// is advanced past the entry's payload without touching the target.
//
// Step returns (nil, nil) once every entry has been consumed, without
// reading the log. Any other failure is fatal to the session, and is
// annotated with the index of the failing entry.
func (e *Engine) Step(apply bool) (*logwrites.Entry, error) {
	if e.Done() {
		return nil, nil
	}
	idx := e.consumed
	ss := e.header.SectorSize
	buf := e.entryBuffer(e.opts.Layout.EntryRegion(ss))
	if err := e.log.readFull(buf); err != nil {
		return nil, entryError(idx, errors.IO, "read entry", err)
	}
	entry := logwrites.DecodeEntry(buf)
	e.consumed++
	if entry.Sector > math.MaxInt64/uint64(ss) || entry.SectorCount > math.MaxInt64/uint64(ss) ||
		entry.Sector+entry.SectorCount > math.MaxInt64/uint64(ss) {
		return nil, entryError(idx, errors.Integrity, fmt.Sprintf("range overflows (sector %d, sectors %d)", entry.Sector, entry.SectorCount), nil)
	}
	if entry.IsMark() {
		if err := e.readMark(idx, &entry, buf[logwrites.EntrySize:]); err != nil {
			return nil, err
		}
	}
	off, n := entry.Offset(ss), entry.Size(ss)
	if log.At(log.Debug) {
		log.Debug.Printf("replaying %d: sector %d, size %d, flags %d(%s)", idx, entry.Sector, n, uint64(entry.Flags), entry.Flags)
	}
	switch {
	case entry.IsDiscard():
		if apply && !e.opts.IgnoreDiscard {
			if err := e.discard(off, n); err != nil {
				return nil, entryError(idx, errors.Other, "discard", err)
			}
		}
	case n == 0:
	case !apply:
		if err := e.log.skip(n); err != nil {
			return nil, entryError(idx, errors.IO, "skip payload", err)
		}
	default:
		if err := e.copyPayload(off, n); err != nil {
			return nil, entryError(idx, errors.Other, "write payload", err)
		}
	}
	return &entry, nil
}

// readMark reads the checkpoint name of a MARK entry. In the aligned
// layout the name lives in the remainder of the entry's sector, which
// has already been read into rest; otherwise it follows the entry
// header in the stream.
func (e *Engine) readMark(idx uint64, entry *logwrites.Entry, rest []byte) error {
	if e.opts.Layout == logwrites.Aligned {
		if entry.DataLen > uint64(len(rest)) {
			return entryError(idx, errors.Integrity, fmt.Sprintf("mark of %d bytes exceeds entry sector", entry.DataLen), nil)
		}
		entry.Mark = logwrites.DecodeMark(rest[:entry.DataLen])
		return nil
	}
	if entry.DataLen > logwrites.MaxMarkLen {
		return entryError(idx, errors.Integrity, fmt.Sprintf("mark of %d bytes exceeds %d", entry.DataLen, logwrites.MaxMarkLen), nil)
	}
	p := make([]byte, entry.DataLen)
	if err := e.log.readFull(p); err != nil {
		return entryError(idx, errors.IO, "read mark", err)
	}
	entry.Mark = logwrites.DecodeMark(p)
	return nil
}

// copyPayload copies n bytes from the log stream to the target at off.
func (e *Engine) copyPayload(off, n int64) error {
	for n > 0 {
		m := n
		if m > maxTransfer {
			m = maxTransfer
		}
		if int64(cap(e.dataBuf)) < m {
			e.dataBuf = make([]byte, m)
		}
		p := e.dataBuf[:m]
		if err := e.log.readFull(p); err != nil {
			return errors.E(errors.IO, "read payload", err)
		}
		if err := e.writeAt(p, off); err != nil {
			return err
		}
		off += m
		n -= m
	}
	return nil
}

// writeAt writes p at off in a single call. Targets guarantee
// full-length writes for in-bounds ranges, so a short write is
// reported as an error rather than retried. Errors of this package's
// type keep the kind the target gave them; others are IO errors.
func (e *Engine) writeAt(p []byte, off int64) error {
	n, err := e.target.WriteAt(p, off)
	if err != nil {
		msg := fmt.Sprintf("write [%d, +%d)", off, len(p))
		if _, ok := err.(*errors.Error); ok {
			return errors.E(msg, err)
		}
		return errors.E(errors.IO, msg, err)
	}
	if n != len(p) {
		return errors.E(errors.IO, fmt.Sprintf("short write [%d, +%d): wrote %d bytes", off, len(p), n))
	}
	return nil
}

func (e *Engine) entryBuffer(n int64) []byte {
	if int64(cap(e.entryBuf)) < n {
		e.entryBuf = make([]byte, n)
	}
	return e.entryBuf[:n]
}

// Sync flushes the target to stable storage, if the target supports
// it.
func (e *Engine) Sync() error {
	if s, ok := e.target.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// Close releases the log stream and the target.
func (e *Engine) Close() (err error) {
	for i := len(e.closer) - 1; i >= 0; i-- {
		errors.CleanUp(e.closer[i], &err)
	}
	e.closer = nil
	return err
}

func entryError(idx uint64, kind errors.Kind, msg string, err error) error {
	args := []interface{}{kind, errors.Fatal, fmt.Sprintf("entry %d: %s", idx, msg)}
	if err != nil {
		args = append(args, err)
	}
	return errors.E(args...)
}

// noTarget is the target of an engine opened by OpenLog.
type noTarget struct{}

func (noTarget) WriteAt(p []byte, off int64) (int, error) {
	return 0, errors.E(errors.Precondition, "log opened without a replay target")
}

func (noTarget) Discard(off, n int64) error {
	return errors.E(errors.Precondition, "log opened without a replay target")
}

func (noTarget) Close() error { return nil }
