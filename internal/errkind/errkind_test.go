// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package errkind

import (
	"testing"

	"github.com/pkg/errors"
)

func TestWrapAndOf(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(Transport, base, "https://repo.example.org/dists/stable/InRelease")
	if got := Of(err); got != Transport {
		t.Errorf("Of() = %q, want %q", got, Transport)
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error lost its cause")
	}
	// Classification survives further wrapping.
	outer := errors.Wrap(err, "fetching release")
	if got := Of(outer); got != Transport {
		t.Errorf("Of(wrapped) = %q, want %q", got, Transport)
	}
	if Wrap(Transport, nil, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("plain"), 1},
		{New(Config, "unknown key %q", "mirrors"), 2},
		{New(Unsolvable, "conflicting requests"), 3},
		{New(Verification, "bad signature"), 4},
		{New(Transport, "404"), 1},
		{ScriptFailure("post.sh", 9), 1},
	}
	for _, tc := range tests {
		if got := ExitCode(tc.err); got != tc.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestScriptFailure(t *testing.T) {
	err := ScriptFailure("cleanup.sh", 2)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("ScriptFailure did not produce *Error")
	}
	if e.Code != 2 || e.Subject != "cleanup.sh" {
		t.Errorf("got code=%d subject=%q", e.Code, e.Subject)
	}
}
