// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package compress_test

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/grailbio/logwrites/compress"
	"github.com/grailbio/logwrites/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func gzipCompress(t *testing.T, in []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(in)
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	return buf.Bytes()
}

func zstdCompress(t *testing.T, in []byte) []byte {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	assert.NoError(t, err)
	_, err = w.Write(in)
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDetermineType(t *testing.T) {
	expect.EQ(t, compress.DetermineType("replay.log"), compress.None)
	expect.EQ(t, compress.DetermineType("replay"), compress.None)
	expect.EQ(t, compress.DetermineType("replay.log.gz"), compress.Gzip)
	expect.EQ(t, compress.DetermineType("replay.log.zst"), compress.Zstd)
	expect.EQ(t, compress.DetermineType("replay.log.bz2"), compress.Bzip2)
}

func TestReaderPath(t *testing.T) {
	for _, c := range []struct {
		path string
		comp func(*testing.T, []byte) []byte
	}{
		{"log.gz", gzipCompress},
		{"log.zst", zstdCompress},
	} {
		for _, n := range []int{0, 1, 512, 1 << 20} {
			t.Run(fmt.Sprint(c.path, n), func(t *testing.T) {
				plain := make([]byte, n)
				rand.New(rand.NewSource(int64(n))).Read(plain)
				r, err := compress.NewReaderPath(bytes.NewReader(c.comp(t, plain)), c.path)
				assert.NoError(t, err)
				assert.NotNil(t, r)
				got, err := io.ReadAll(r)
				assert.NoError(t, err)
				assert.NoError(t, r.Close())
				expect.True(t, bytes.Equal(got, plain))
			})
		}
	}
}

func TestReaderPathUncompressed(t *testing.T) {
	r, err := compress.NewReaderPath(bytes.NewReader(nil), "log")
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestReaderPathCorrupt(t *testing.T) {
	_, err := compress.NewReaderPath(bytes.NewReader([]byte("not gzip at all")), "log.gz")
	expect.True(t, errors.Is(errors.Integrity, err))
}
