// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package compress opens compressed log streams. Captured logs are
// large and mostly compressible, so they are often archived as gzip
// or zstd files; replay reads them sequentially and never seeks
// backwards, so they can be decompressed on the fly.
package compress

import (
	"compress/bzip2"
	"io"
	"io/ioutil"
	"strings"

	"github.com/grailbio/logwrites/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Type is a compression format, as determined by a file's name.
type Type int

const (
	// None is an uncompressed file.
	None Type = iota
	// Gzip is the gzip format.
	Gzip
	// Bzip2 is the bzip2 format.
	Bzip2
	// Zstd is the zstd format.
	// https://facebook.github.io/zstd/
	Zstd
)

var lookup = map[string]Type{
	".gz":  Gzip,
	".bz2": Bzip2,
	".zst": Zstd,
}

// DetermineType determines the compression format of the file given
// its filename.
func DetermineType(filename string) Type {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return None
	}
	return lookup[filename[idx:]]
}

// NewReaderPath returns a reader that uncompresses data read from r,
// in the format determined by path's extension. For uncompressed
// files, it returns (nil, nil): callers should then read r directly,
// and may seek it.
//
// If NewReaderPath returns a non-nil reader, the caller must close it
// after use; it does not close r.
func NewReaderPath(r io.Reader, path string) (io.ReadCloser, error) {
	switch DetermineType(path) {
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.E(errors.Integrity, "gzip", path, err)
		}
		return gz, nil
	case Bzip2:
		return ioutil.NopCloser(bzip2.NewReader(r)), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.E(errors.Integrity, "zstd", path, err)
		}
		return zr.IOReadCloser(), nil
	}
	return nil, nil
}
