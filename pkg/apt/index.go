// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package apt

import (
	"bytes"
	"context"
	"crypto"
	_ "crypto/sha256"

	"github.com/aosc-dev/aoscbootstrap/internal/compress"
	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/aosc-dev/aoscbootstrap/internal/hashext"
	"github.com/aosc-dev/aoscbootstrap/pkg/apt/control"
	"github.com/pkg/errors"
)

// FetchIndex resolves <component>/binary-<arch>/Packages in the verified
// release file, preferring compressed variants in the order .zst, .xz,
// .gz, plain. The downloaded bytes are checked against the release
// table's size and sha256 before decompression, pinning the whole chain
// to the release signature.
func (c *Client) FetchIndex(ctx context.Context, repo Repository, rel *ReleaseFile, component, arch string) (*PackagesIndex, error) {
	base := component + "/binary-" + arch + "/Packages"
	for _, suffix := range compress.Suffixes {
		entry, ok := rel.Entries[base+suffix]
		if !ok {
			continue
		}
		url := repo.DistURL(base + suffix)
		body, err := c.getBody(ctx, url)
		if err != nil {
			return nil, err
		}
		if int64(len(body)) != entry.Size {
			return nil, errkind.Wrap(errkind.Verification,
				errors.Errorf("size mismatch: want %d, got %d", entry.Size, len(body)), url)
		}
		h := hashext.NewTypedHash(crypto.SHA256)
		h.Write(body)
		if err := hashext.Check(h, entry.SHA256); err != nil {
			return nil, errkind.Wrap(errkind.Verification, err, url)
		}
		r, err := compress.NewReader(bytes.NewReader(body), suffix)
		if err != nil {
			return nil, errkind.Wrap(errkind.Extraction, err, url)
		}
		records, err := control.Parse(r)
		if err != nil {
			return nil, errkind.Wrap(errkind.MalformedIndex, err, url)
		}
		return &PackagesIndex{Component: component, Architecture: arch, Records: records}, nil
	}
	return nil, errkind.New(errkind.MalformedIndex,
		"release file references no %s index for %s/%s", base, repo.Branch, arch)
}

// FetchIndices fetches one index per (component, architecture) pair of
// the repository. Pairs absent from the release file are skipped only
// for the "all" pseudo-architecture; a missing real index is an error.
func (c *Client) FetchIndices(ctx context.Context, repo Repository, rel *ReleaseFile) ([]*PackagesIndex, error) {
	var out []*PackagesIndex
	for _, component := range repo.Components {
		for _, arch := range repo.Architectures {
			idx, err := c.FetchIndex(ctx, repo, rel, component, arch)
			if err != nil {
				if arch == "all" && errkind.Is(err, errkind.MalformedIndex) {
					continue
				}
				return nil, err
			}
			out = append(out, idx)
		}
	}
	return out, nil
}
