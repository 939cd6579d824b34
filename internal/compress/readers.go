// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress maps Debian archive member suffixes to stream decompressors.
package compress

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

type readerFunc func(io.Reader) (io.Reader, error)

func gzipNewReader(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}

func xzNewReader(r io.Reader) (io.Reader, error) {
	return xz.NewReader(r)
}

func zstdNewReader(r io.Reader) (io.Reader, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr.IOReadCloser(), nil
}

func plainNewReader(r io.Reader) (io.Reader, error) {
	return r, nil
}

var knownReaders = map[string]readerFunc{
	".gz":  gzipNewReader,
	".xz":  xzNewReader,
	".zst": zstdNewReader,
	"":     plainNewReader,
}

// Suffixes is the preference order used when probing for a compressed
// variant of a repository index.
var Suffixes = []string{".zst", ".xz", ".gz", ""}

// Supported reports whether suffix names a known compression format.
func Supported(suffix string) bool {
	_, ok := knownReaders[suffix]
	return ok
}

// NewReader wraps r with the decompressor selected by suffix. An empty
// suffix returns r unchanged.
func NewReader(r io.Reader, suffix string) (io.Reader, error) {
	decompressor, ok := knownReaders[suffix]
	if !ok {
		return nil, errors.Errorf("unsupported compression suffix %q", suffix)
	}
	return decompressor(r)
}

// ForMember selects the decompressor for a Debian archive member name such
// as data.tar.xz or control.tar.zst, keyed on its final extension.
func ForMember(name string) (func(io.Reader) (io.Reader, error), error) {
	for suffix, decompressor := range knownReaders {
		if suffix != "" && strings.HasSuffix(name, suffix) {
			return decompressor, nil
		}
	}
	if strings.HasSuffix(name, ".tar") {
		return plainNewReader, nil
	}
	return nil, errors.Errorf("unsupported archive member %q", name)
}
