// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package deb reads Debian binary packages: ar archives holding
// debian-binary, control.tar.* and data.tar.* members with gzip, xz or
// zstd compression.
package deb

import (
	"archive/tar"
	"io"
	"os"
	"strings"

	"github.com/aosc-dev/aoscbootstrap/internal/compress"
	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/aosc-dev/aoscbootstrap/pkg/apt/control"
	"github.com/blakesmith/ar"
	"github.com/pkg/errors"
)

// Control is the metadata carried in a package's control.tar member.
type Control struct {
	// Paragraph is the parsed control stanza.
	Paragraph control.Paragraph
	// MD5sums is the raw md5sums member, empty if the package has none.
	MD5sums string
	// Conffiles is the raw conffiles member, empty if absent.
	Conffiles string
}

// member positions r at the named ar member, trying each compression
// suffix. It returns the decompressed reader and the member name.
func member(r io.Reader, base string) (io.Reader, string, error) {
	arReader := ar.NewReader(r)
	for {
		header, err := arReader.Next()
		if err == io.EOF {
			return nil, "", errors.Errorf("no %s.* member found", base)
		}
		if err != nil {
			return nil, "", errors.Wrap(err, "reading ar entry")
		}
		name := strings.TrimSuffix(header.Name, "/")
		if name != base && !strings.HasPrefix(name, base+".") {
			continue
		}
		decompressor, err := compress.ForMember(name)
		if err != nil {
			return nil, "", err
		}
		decompressed, err := decompressor(arReader)
		if err != nil {
			return nil, "", errors.Wrapf(err, "decompressing %s", name)
		}
		return decompressed, name, nil
	}
}

// ReadControl parses the control stanza, md5sums and conffiles of the
// package at path.
func ReadControl(path string) (*Control, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.Extraction, err, path)
	}
	defer f.Close()
	r, _, err := member(f, "control.tar")
	if err != nil {
		return nil, errkind.Wrap(errkind.Extraction, err, path)
	}
	ctl := &Control{}
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errkind.Wrap(errkind.Extraction, err, path)
		}
		switch strings.TrimPrefix(header.Name, "./") {
		case "control":
			paragraphs, err := control.Parse(tr)
			if err != nil {
				return nil, errkind.Wrap(errkind.Extraction, errors.Wrap(err, "parsing control"), path)
			}
			if len(paragraphs) == 0 {
				return nil, errkind.Wrap(errkind.Extraction, errors.New("empty control member"), path)
			}
			ctl.Paragraph = paragraphs[0]
		case "md5sums":
			b, err := io.ReadAll(tr)
			if err != nil {
				return nil, errkind.Wrap(errkind.Extraction, err, path)
			}
			ctl.MD5sums = string(b)
		case "conffiles":
			b, err := io.ReadAll(tr)
			if err != nil {
				return nil, errkind.Wrap(errkind.Extraction, err, path)
			}
			ctl.Conffiles = string(b)
		}
	}
	if len(ctl.Paragraph.Fields) == 0 {
		return nil, errkind.Wrap(errkind.Extraction, errors.New("control.tar carries no control file"), path)
	}
	return ctl, nil
}

// ExtractData applies the package's data.tar to targetRoot and returns
// the extracted paths in dpkg .list form ("/." followed by absolute
// paths within the root).
func ExtractData(path, targetRoot string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.Extraction, err, path)
	}
	defer f.Close()
	r, _, err := member(f, "data.tar")
	if err != nil {
		return nil, errkind.Wrap(errkind.Extraction, err, path)
	}
	files, err := applyTar(tar.NewReader(r), targetRoot)
	if err != nil {
		return nil, errkind.Wrap(errkind.Extraction, err, path)
	}
	return files, nil
}
