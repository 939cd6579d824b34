// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package errkind classifies bootstrap failures so the CLI can map them to
// exit codes and print the offending URL, path, or package next to the cause.
package errkind

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies a failure class.
type Kind string

const (
	Config            Kind = "config"
	Transport         Kind = "transport"
	Verification      Kind = "verification"
	MalformedIndex    Kind = "malformed index"
	Unsolvable        Kind = "unsolvable"
	InsufficientSpace Kind = "insufficient space"
	Extraction        Kind = "extraction"
	Chroot            Kind = "chroot"
	Script            Kind = "script"
)

// Error is a classified error with an optional subject (URL, path or
// package name) and, for script failures, the process exit code.
type Error struct {
	Kind    Kind
	Subject string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Subject != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Subject, e.Err)
	case e.Subject != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with a formatted message.
func New(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Err: errors.Errorf(format, args...)}
}

// Wrap classifies err, annotating it with subject. A nil err returns nil.
func Wrap(k Kind, err error, subject string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Subject: subject, Err: err}
}

// ScriptFailure records a non-zero exit from a post-install script.
func ScriptFailure(name string, code int) error {
	return &Error{Kind: Script, Subject: name, Code: code, Err: errors.Errorf("exit status %d", code)}
}

// Of extracts the Kind from err, or "" if err carries none.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	return Of(err) == k
}

// ExitCode maps err onto the documented process exit codes: 0 success,
// 2 usage or configuration, 3 unsolvable dependencies, 4 signature or
// digest verification, 1 everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch Of(err) {
	case Config:
		return 2
	case Unsolvable:
		return 3
	case Verification:
		return 4
	default:
		return 1
	}
}
