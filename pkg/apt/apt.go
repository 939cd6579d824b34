// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package apt fetches and verifies Debian-style repository metadata:
// signed Release files and the Packages indices they reference.
package apt

import (
	"strings"
	"time"

	"github.com/aosc-dev/aoscbootstrap/internal/httpx"
	"github.com/aosc-dev/aoscbootstrap/pkg/apt/control"
)

// Repository locates one branch of a mirror.
type Repository struct {
	MirrorURL     string
	Branch        string
	Components    []string
	Architectures []string
}

// NewRepository applies the defaults: components {main}, architectures
// {arch, all}.
func NewRepository(mirror, branch, arch string, components []string) Repository {
	if len(components) == 0 {
		components = []string{"main"}
	}
	return Repository{
		MirrorURL:     strings.TrimSuffix(mirror, "/"),
		Branch:        branch,
		Components:    components,
		Architectures: []string{arch, "all"},
	}
}

// DistURL returns the URL of a file below dists/<branch>/.
func (r Repository) DistURL(elem ...string) string {
	return r.MirrorURL + "/dists/" + r.Branch + "/" + strings.Join(elem, "/")
}

// PoolURL returns the URL of a package archive from its Filename field.
func (r Repository) PoolURL(filename string) string {
	return r.MirrorURL + "/" + strings.TrimPrefix(filename, "/")
}

// FileEntry is one row of the Release file's digest table.
type FileEntry struct {
	Size   int64
	SHA256 string
}

// ReleaseFile is the parsed, verified top-level index of a repository.
// Every Packages file consumed later must appear in Entries with a
// matching digest.
type ReleaseFile struct {
	Suite         string
	Codename      string
	Components    []string
	Architectures []string
	Date          string
	ValidUntil    time.Time
	Entries       map[string]FileEntry
}

// PackagesIndex is the parsed per-component, per-architecture list of
// package records. Records keep every control field verbatim so the
// relational fields reach the solver untouched.
type PackagesIndex struct {
	Component    string
	Architecture string
	Records      []control.Paragraph
}

// Verifier checks repository signatures. The OpenPGP backend is an
// external collaborator; pkg/apt/keyring provides the production one.
type Verifier interface {
	// VerifyCleartext checks an inline-signed message and returns its body.
	VerifyCleartext(signed []byte) ([]byte, error)
	// VerifyDetached checks sig over message.
	VerifyDetached(message, sig []byte) error
}

// Client fetches repository metadata.
type Client struct {
	HTTP     httpx.BasicClient
	Verifier Verifier

	// Now is the clock used for Valid-Until checks; defaults to time.Now.
	Now func() time.Time
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
