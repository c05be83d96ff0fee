// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package replay_test

import (
	"bytes"
	goerrors "errors"
	"io"
	"math/rand"
	"testing"

	"github.com/grailbio/logwrites/device"
	"github.com/grailbio/logwrites/device/devicetest"
	"github.com/grailbio/logwrites/errors"
	"github.com/grailbio/logwrites/logwrites"
	"github.com/grailbio/logwrites/logwrites/logwritestest"
	"github.com/grailbio/logwrites/replay"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

const sectorSize = 512

func newEngine(t *testing.T, b *logwritestest.Builder, dev device.Device, opts replay.Options) (*replay.Engine, *bytes.Reader) {
	t.Helper()
	r := bytes.NewReader(b.Bytes())
	eng, err := replay.New(r, dev, opts)
	require.NoError(t, err)
	return eng, r
}

// consumed returns the number of bytes read from r.
func consumed(r *bytes.Reader) int64 {
	return r.Size() - int64(r.Len())
}

func TestOpenValidatesMagic(t *testing.T) {
	for _, magic := range []uint64{0, 1, logwrites.Magic - 1, logwrites.Magic + 1, ^uint64(0), logwrites.Magic} {
		b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).Fill(0, 1, 0xaa)
		b.Magic = magic
		r := bytes.NewReader(b.Bytes())
		dev := devicetest.NewMemory(sectorSize, 0)
		eng, err := replay.New(r, dev, replay.Options{})
		if magic == logwrites.Magic {
			require.NoError(t, err)
			expect.EQ(t, eng.Header().EntryCount, uint64(1))
			expect.EQ(t, eng.Header().SectorSize, uint32(sectorSize))
			continue
		}
		require.Error(t, err, "magic %#x", magic)
		expect.True(t, errors.Is(errors.Integrity, err), "magic %#x: %v", magic, err)
		expect.True(t, errors.IsFatal(err))
		// Only the header was read, and the target was never touched.
		expect.EQ(t, consumed(r), int64(logwrites.HeaderSize))
		expect.EQ(t, len(dev.Writes), 0)
		expect.EQ(t, dev.Discards, 0)
	}
}

func TestOpenShortHeader(t *testing.T) {
	p := logwritestest.NewBuilder(logwrites.Packed, sectorSize).Bytes()
	_, err := replay.New(bytes.NewReader(p[:logwrites.HeaderSize-1]), devicetest.NewMemory(0, 0), replay.Options{})
	expect.True(t, errors.Is(errors.IO, err), "%v", err)
}

func TestWriteFidelity(t *testing.T) {
	var (
		rnd      = rand.New(rand.NewSource(0))
		b        = logwritestest.NewBuilder(logwrites.Packed, sectorSize)
		payloads = map[uint64][]byte{}
	)
	for _, w := range []struct{ sector, count uint64 }{{0, 1}, {3, 2}, {9, 8}, {1, 1}} {
		p := make([]byte, w.count*sectorSize)
		rnd.Read(p)
		payloads[w.sector] = p
		b.Write(w.sector, p, logwrites.Metadata)
	}
	dev := devicetest.NewMemory(20*sectorSize, 0x5a)
	eng, r := newEngine(t, b, dev, replay.Options{})
	for i := 0; i < 4; i++ {
		before := consumed(r)
		entry, err := eng.Step(true)
		require.NoError(t, err)
		require.NotNil(t, entry)
		payload := payloads[entry.Sector]
		expect.EQ(t, entry.Size(sectorSize), int64(len(payload)))
		expect.EQ(t, consumed(r)-before, int64(logwrites.EntrySize+len(payload)))
		got := dev.Range(entry.Offset(sectorSize), entry.Size(sectorSize))
		expect.True(t, bytes.Equal(got, payload), "entry %d", i)
	}
	// Sectors never written keep their content.
	expect.EQ(t, dev.Range(2*sectorSize, sectorSize), bytes.Repeat([]byte{0x5a}, sectorSize))
	expect.EQ(t, dev.Range(17*sectorSize, 3*sectorSize), bytes.Repeat([]byte{0x5a}, 3*sectorSize))
}

func TestLargePayload(t *testing.T) {
	// Larger than the engine's transfer buffer.
	p := make([]byte, 9<<20)
	rand.New(rand.NewSource(1)).Read(p)
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).Write(4, p, 0)
	dev := devicetest.NewMemory(0, 0)
	eng, _ := newEngine(t, b, dev, replay.Options{})
	_, err := eng.Step(true)
	require.NoError(t, err)
	expect.True(t, bytes.Equal(dev.Range(4*sectorSize, int64(len(p))), p))
	expect.True(t, len(dev.Writes) > 1)
}

func TestDiscardZeroFill(t *testing.T) {
	for _, supported := range []bool{false, true} {
		b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).
			Discard(2, 3).
			Fill(0, 1, 0xaa)
		dev := devicetest.NewMemory(8*sectorSize, 0xff)
		dev.DiscardSupported = supported
		eng, r := newEngine(t, b, dev, replay.Options{})

		before := consumed(r)
		entry, err := eng.Step(true)
		require.NoError(t, err)
		expect.True(t, entry.IsDiscard())
		expect.EQ(t, consumed(r)-before, int64(logwrites.EntrySize))
		expect.EQ(t, eng.Offset()-before, int64(logwrites.EntrySize))
		expect.EQ(t, dev.Range(2*sectorSize, 3*sectorSize), make([]byte, 3*sectorSize))
		expect.EQ(t, dev.Range(5*sectorSize, sectorSize), bytes.Repeat([]byte{0xff}, sectorSize))
		expect.EQ(t, eng.DiscardUnsupported(), !supported)

		// The stream is still in sync: the next entry is the write.
		entry, err = eng.Step(true)
		require.NoError(t, err)
		expect.EQ(t, entry.SectorCount, uint64(1))
		expect.EQ(t, dev.Range(0, sectorSize), bytes.Repeat([]byte{0xaa}, sectorSize))
	}
}

func TestDiscardSticky(t *testing.T) {
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).
		Discard(0, 1).
		Fill(1, 1, 0x11).
		Discard(1, 1).
		Discard(4, 2)
	dev := devicetest.NewMemory(8*sectorSize, 0xff)
	eng, _ := newEngine(t, b, dev, replay.Options{})
	for !eng.Done() {
		_, err := eng.Step(true)
		require.NoError(t, err)
	}
	expect.EQ(t, dev.Discards, 1)
	expect.True(t, eng.DiscardUnsupported())
	expect.EQ(t, dev.Range(0, 2*sectorSize), make([]byte, 2*sectorSize))
	expect.EQ(t, dev.Range(4*sectorSize, 2*sectorSize), make([]byte, 2*sectorSize))
	expect.EQ(t, dev.Range(2*sectorSize, 2*sectorSize), bytes.Repeat([]byte{0xff}, 2*sectorSize))
}

func TestDiscardError(t *testing.T) {
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).Discard(0, 1)
	dev := devicetest.NewMemory(sectorSize, 0xff)
	dev.DiscardErr = errors.E(errors.IO, "device went away")
	eng, _ := newEngine(t, b, dev, replay.Options{})
	_, err := eng.Step(true)
	expect.True(t, errors.Is(errors.IO, err), "%v", err)
	expect.HasSubstr(t, err, "entry 0")
	expect.False(t, eng.DiscardUnsupported())
	expect.EQ(t, len(dev.Writes), 0)
}

func TestZeroFillTooLarge(t *testing.T) {
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).
		Discard(0, 2).
		Discard(0, 3)
	dev := devicetest.NewMemory(4*sectorSize, 0xff)
	eng, _ := newEngine(t, b, dev, replay.Options{MaxZeroChunk: 2 * sectorSize})

	// Exactly at the bound is fine.
	_, err := eng.Step(true)
	require.NoError(t, err)
	expect.EQ(t, len(dev.Writes), 1)

	copy(dev.Data, bytes.Repeat([]byte{0xff}, len(dev.Data)))
	_, err = eng.Step(true)
	expect.True(t, errors.Is(errors.TooLarge, err), "%v", err)
	expect.HasSubstr(t, err, "entry 1")
	expect.EQ(t, len(dev.Writes), 1)
	expect.EQ(t, dev.Data, bytes.Repeat([]byte{0xff}, 4*sectorSize))
}

// chunkDevice records discards without storing data.
type chunkDevice struct {
	discards [][2]int64
}

func (d *chunkDevice) WriteAt(p []byte, off int64) (int, error) { return len(p), nil }

func (d *chunkDevice) Close() error { return nil }

func (d *chunkDevice) Discard(off, n int64) error {
	d.discards = append(d.discards, [2]int64{off, n})
	return nil
}

func TestDiscardChunks(t *testing.T) {
	const total = 5 << 29 // 2.5GiB
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).Discard(8, total/sectorSize)
	dev := new(chunkDevice)
	eng, _ := newEngine(t, b, dev, replay.Options{})
	_, err := eng.Step(true)
	require.NoError(t, err)
	const start = 8 * sectorSize
	expect.EQ(t, dev.discards, [][2]int64{
		{start, 1 << 30},
		{start + 1<<30, 1 << 30},
		{start + 2<<30, 1 << 29},
	})
}

func TestIgnoreDiscard(t *testing.T) {
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).Discard(0, 1)
	dev := devicetest.NewMemory(sectorSize, 0xff)
	eng, _ := newEngine(t, b, dev, replay.Options{IgnoreDiscard: true})
	entry, err := eng.Step(true)
	require.NoError(t, err)
	expect.True(t, entry.IsDiscard())
	expect.EQ(t, dev.Discards, 0)
	expect.EQ(t, dev.Data, bytes.Repeat([]byte{0xff}, sectorSize))
}

func TestExhaustion(t *testing.T) {
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).Fill(0, 1, 1).Flush(logwrites.Flush)
	dev := devicetest.NewMemory(sectorSize, 0)
	eng, r := newEngine(t, b, dev, replay.Options{})
	for i := 0; i < 2; i++ {
		entry, err := eng.Step(true)
		require.NoError(t, err)
		require.NotNil(t, entry)
	}
	expect.True(t, eng.Done())
	off, writes := consumed(r), len(dev.Writes)
	for i := 0; i < 3; i++ {
		entry, err := eng.Step(true)
		assert.NoError(t, err)
		assert.True(t, entry == nil)
		entry, err = eng.Step(false)
		assert.NoError(t, err)
		assert.True(t, entry == nil)
	}
	expect.EQ(t, consumed(r), off)
	expect.EQ(t, len(dev.Writes), writes)
	expect.EQ(t, eng.Consumed(), uint64(2))
}

func TestZeroLengthEntry(t *testing.T) {
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).Flush(logwrites.Flush | logwrites.FUA)
	dev := devicetest.NewMemory(sectorSize, 0)
	eng, r := newEngine(t, b, dev, replay.Options{})
	entry, err := eng.Step(true)
	require.NoError(t, err)
	expect.EQ(t, entry.Flags, logwrites.Flush|logwrites.FUA)
	expect.EQ(t, consumed(r), int64(logwrites.HeaderSize+logwrites.EntrySize))
	expect.EQ(t, len(dev.Writes), 0)
}

func TestScanOnly(t *testing.T) {
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).
		Fill(0, 4, 0xaa).
		Discard(0, 1).
		Mark("ckpt").
		Fill(5, 1, 0xbb)
	dev := devicetest.NewMemory(8*sectorSize, 0xff)
	eng, r := newEngine(t, b, dev, replay.Options{})
	var entries []*logwrites.Entry
	for {
		entry, err := eng.Step(false)
		require.NoError(t, err)
		if entry == nil {
			break
		}
		entries = append(entries, entry)
	}
	require.Len(t, entries, 4)
	expect.EQ(t, entries[2].Mark, "ckpt")
	expect.EQ(t, entries[3].Sector, uint64(5))
	expect.EQ(t, consumed(r), r.Size())
	expect.EQ(t, len(dev.Writes), 0)
	expect.EQ(t, dev.Discards, 0)
}

func TestTruncatedLog(t *testing.T) {
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).Fill(0, 1, 0xaa).Fill(1, 2, 0xbb)
	p := b.Bytes()
	for _, c := range []struct {
		cut  int
		what string
	}{
		{10, "read payload"},
		{2*sectorSize + 10, "read entry"},
	} {
		r := bytes.NewReader(p[:len(p)-c.cut])
		eng, err := replay.New(r, devicetest.NewMemory(0, 0), replay.Options{})
		require.NoError(t, err)
		_, err = eng.Step(true)
		require.NoError(t, err)
		_, err = eng.Step(true)
		expect.True(t, errors.Is(errors.IO, err), "%v", err)
		expect.True(t, errors.IsFatal(err))
		expect.HasSubstr(t, err, "entry 1")
		expect.HasSubstr(t, err, c.what)
	}
}

func TestTruncatedLogScan(t *testing.T) {
	p := logwritestest.NewBuilder(logwrites.Packed, sectorSize).Fill(0, 4, 0xaa).Bytes()
	p = p[:len(p)-1]
	for _, r := range []io.Reader{bytes.NewBuffer(p), bytes.NewReader(p)} {
		eng, err := replay.New(r, devicetest.NewMemory(0, 0), replay.Options{})
		require.NoError(t, err)
		_, err = eng.Step(false)
		expect.True(t, errors.Is(errors.IO, err), "%T: %v", r, err)
		expect.HasSubstr(t, err, "skip payload")
		expect.EQ(t, eng.Offset(), int64(len(p)))
	}
}

func TestShortWrite(t *testing.T) {
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).Fill(0, 1, 0xaa)
	dev := devicetest.NewMemory(sectorSize, 0)
	dev.ShortWrites = true
	eng, _ := newEngine(t, b, dev, replay.Options{})
	_, err := eng.Step(true)
	expect.True(t, errors.Is(errors.IO, err), "%v", err)
	expect.HasSubstr(t, err, "short write")
	expect.EQ(t, len(dev.Writes), 1)
}

// failDevice fails every write with err.
type failDevice struct {
	err error
}

func (d failDevice) WriteAt(p []byte, off int64) (int, error) { return 0, d.err }

func (d failDevice) Discard(off, n int64) error {
	return errors.E(errors.NotSupported, "discard")
}

func (d failDevice) Close() error { return nil }

func TestWriteErrorKind(t *testing.T) {
	for _, c := range []struct {
		name string
		err  error
		kind errors.Kind
	}{
		{"precondition", errors.E(errors.Precondition, "no target"), errors.Precondition},
		{"not allowed", errors.E(errors.NotAllowed, "read-only target"), errors.NotAllowed},
		{"io", errors.E(errors.IO, "bad sector"), errors.IO},
		{"plain", goerrors.New("device went away"), errors.IO},
	} {
		t.Run(c.name, func(t *testing.T) {
			for _, b := range []*logwritestest.Builder{
				logwritestest.NewBuilder(logwrites.Packed, sectorSize).Fill(0, 1, 0xaa),
				logwritestest.NewBuilder(logwrites.Packed, sectorSize).Discard(0, 1),
			} {
				eng, _ := newEngine(t, b, failDevice{c.err}, replay.Options{})
				_, err := eng.Step(true)
				expect.True(t, errors.Is(c.kind, err), "%v", err)
				expect.True(t, errors.IsFatal(err), "%v", err)
				expect.HasSubstr(t, err, "entry 0")
			}
		})
	}
}

func TestMarkTooLong(t *testing.T) {
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize).Mark(string(make([]byte, logwrites.MaxMarkLen+1)))
	eng, _ := newEngine(t, b, devicetest.NewMemory(0, 0), replay.Options{})
	_, err := eng.Step(false)
	expect.True(t, errors.Is(errors.Integrity, err), "%v", err)
}

func TestRangeOverflow(t *testing.T) {
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize)
	p := logwritestest.AppendEntry(b.Bytes(), logwrites.Entry{Sector: 1 << 62, SectorCount: 1, Flags: logwrites.Discard})
	// Patch the entry count.
	p[16] = 1
	eng, err := replay.New(bytes.NewReader(p), devicetest.NewMemory(0, 0), replay.Options{})
	require.NoError(t, err)
	_, err = eng.Step(true)
	expect.True(t, errors.Is(errors.Integrity, err), "%v", err)
}

func TestAlignedLayout(t *testing.T) {
	const ss = 4096
	b := logwritestest.NewBuilder(logwrites.Aligned, ss).
		Fill(1, 2, 0xaa).
		Mark("fsync").
		Discard(1, 1).
		Fill(0, 1, 0xbb)
	dev := devicetest.NewMemory(4*ss, 0xff)
	eng, r := newEngine(t, b, dev, replay.Options{Layout: logwrites.Aligned})
	expect.EQ(t, consumed(r), int64(ss))
	var marks []string
	for !eng.Done() {
		entry, err := eng.Step(true)
		require.NoError(t, err)
		if entry.IsMark() {
			marks = append(marks, entry.Mark)
		}
		expect.EQ(t, eng.Offset()%ss, int64(0))
	}
	expect.EQ(t, marks, []string{"fsync"})
	expect.EQ(t, dev.Range(0, ss), bytes.Repeat([]byte{0xbb}, ss))
	expect.EQ(t, dev.Range(ss, ss), make([]byte, ss))
	expect.EQ(t, dev.Range(2*ss, ss), bytes.Repeat([]byte{0xaa}, ss))
	expect.EQ(t, dev.Range(3*ss, ss), bytes.Repeat([]byte{0xff}, ss))
}

func TestClose(t *testing.T) {
	b := logwritestest.NewBuilder(logwrites.Packed, sectorSize)
	dev := devicetest.NewMemory(0, 0)
	eng, _ := newEngine(t, b, dev, replay.Options{})
	require.NoError(t, eng.Close())
	expect.True(t, dev.Closed)
}
