// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package hashext provides extensions to the standard crypto/hash package.
package hashext

import (
	"crypto"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// TypedHash is a hash.Hash annotated with its algorithm.
type TypedHash struct {
	hash.Hash
	Algorithm crypto.Hash
}

// NewTypedHash constructs a new TypedHash.
func NewTypedHash(algo crypto.Hash) TypedHash {
	return TypedHash{Hash: algo.New(), Algorithm: algo}
}

// HexSum returns the current digest as a lowercase hex string.
func (h TypedHash) HexSum() string {
	return hex.EncodeToString(h.Sum(nil))
}

// HexSumReader consumes r and returns its digest under algo as lowercase hex.
func HexSumReader(algo crypto.Hash, r io.Reader) (string, error) {
	h := NewTypedHash(algo)
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return h.HexSum(), nil
}

// ErrDigestMismatch is returned by Check when the computed digest differs
// from the expected one.
var ErrDigestMismatch = errors.New("digest mismatch")

// Check compares the digest accumulated in h against want (hex,
// case-insensitive) and returns ErrDigestMismatch on difference.
func Check(h TypedHash, want string) error {
	got := h.HexSum()
	if !strings.EqualFold(got, want) {
		return errors.Wrapf(ErrDigestMismatch, "want %s, got %s", want, got)
	}
	return nil
}
