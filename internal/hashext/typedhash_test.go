// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package hashext

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestHexSumReader(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	got, err := HexSumReader(crypto.SHA256, strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("HexSumReader() failed: %v", err)
	}
	if got != want {
		t.Errorf("HexSumReader() = %s, want %s", got, want)
	}
}

func TestCheck(t *testing.T) {
	h := NewTypedHash(crypto.SHA256)
	h.Write([]byte("abc"))
	if err := Check(h, "BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD"); err != nil {
		t.Errorf("Check() with matching digest failed: %v", err)
	}
	if err := Check(h, strings.Repeat("0", 64)); !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("Check() = %v, want ErrDigestMismatch", err)
	}
}
