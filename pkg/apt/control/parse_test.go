// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		contents    string
		expectedErr bool
		expected    []Paragraph
	}{
		{
			name: "single stanza",
			contents: `Package: dpkg
Version: 1.22.6
Architecture: amd64
Depends: libc6 (>= 2.34), tar (>= 1.34)
`,
			expected: []Paragraph{
				{Fields: []Field{
					{Name: "Package", Value: "dpkg"},
					{Name: "Version", Value: "1.22.6"},
					{Name: "Architecture", Value: "amd64"},
					{Name: "Depends", Value: "libc6 (>= 2.34), tar (>= 1.34)"},
				}},
			},
		},
		{
			name: "two stanzas with multiline and dot continuation",
			contents: `Package: base-files
Description: base system files
 Files shipped on every installation.
 .
 Do not remove.

Package: bash
SHA256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
`,
			expected: []Paragraph{
				{Fields: []Field{
					{Name: "Package", Value: "base-files"},
					{Name: "Description", Value: "base system files\nFiles shipped on every installation.\n\nDo not remove."},
				}},
				{Fields: []Field{
					{Name: "Package", Value: "bash"},
					{Name: "SHA256", Value: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"},
				}},
			},
		},
		{
			name: "case-insensitive match, canonical emission",
			contents: `package: tar
md5SUM: 0123456789abcdef0123456789abcdef
x-custom-field: kept verbatim
`,
			expected: []Paragraph{
				{Fields: []Field{
					{Name: "Package", Value: "tar"},
					{Name: "MD5sum", Value: "0123456789abcdef0123456789abcdef"},
					{Name: "X-Custom-Field", Value: "kept verbatim"},
				}},
			},
		},
		{
			name:        "continuation before field",
			contents:    " orphan continuation\n",
			expectedErr: true,
		},
		{
			name: "duplicate field",
			contents: `Package: a
package: b
`,
			expectedErr: true,
		},
		{
			name:        "missing colon",
			contents:    "Package dpkg\n",
			expectedErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tc.contents))
			if (err != nil) != tc.expectedErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tc.expectedErr)
			}
			if err != nil {
				return
			}
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrorOffset(t *testing.T) {
	contents := "Package: a\nVersion: 1\nbroken line without colon\n"
	_, err := Parse(strings.NewReader(contents))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Parse() error = %v, want *ParseError", err)
	}
	if want := int64(len("Package: a\nVersion: 1\n")); perr.Offset != want {
		t.Errorf("ParseError.Offset = %d, want %d", perr.Offset, want)
	}
}

func TestParseSigned(t *testing.T) {
	contents := `-----BEGIN PGP SIGNED MESSAGE-----
Hash: SHA256

Origin: AOSC
Suite: stable
SHA256:
 0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef 1234 main/binary-amd64/Packages
-----BEGIN PGP SIGNATURE-----

iQEzBAEBCAAdFiEE...
-----END PGP SIGNATURE-----
`
	got, err := ParseSigned(strings.NewReader(contents))
	if err != nil {
		t.Fatalf("ParseSigned() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ParseSigned() returned %d paragraphs, want 1", len(got))
	}
	if v := got[0].Value("Suite"); v != "stable" {
		t.Errorf("Suite = %q, want %q", v, "stable")
	}
	if _, ok := got[0].Get("sha256"); !ok {
		t.Error("SHA256 field missing")
	}
}

// Parsing, serializing in canonical order, then re-parsing yields the
// same field maps.
func TestRoundTrip(t *testing.T) {
	contents := `Package: base-files
Version: 12.4
Installed-Size: 340
Description: base system files
 Files shipped on every installation.
 .
 Do not remove.
`
	first, err := Parse(strings.NewReader(contents))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	serialized := first[0].String()
	second, err := Parse(strings.NewReader(serialized))
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("round-trip mismatch (-first +second):\n%s", diff)
	}
}
