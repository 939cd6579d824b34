// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package control parses and serializes Debian control files.
// For more details, see https://www.debian.org/doc/debian-policy/ch-controlfields.html
package control

import (
	"strings"
)

// Field is a single control field. Name holds the canonical spelling;
// Value holds the logical value with interior newlines for multiline
// fields (an empty line in the value corresponds to the " ." escape on
// the wire).
type Field struct {
	Name  string
	Value string
}

// Paragraph is one stanza of a control file: an ordered list of fields
// with case-insensitive lookup. Unknown fields are preserved verbatim so
// relational data can be handed to the solver untouched.
type Paragraph struct {
	Fields []Field
}

// Get returns the value of the named field, matched case-insensitively.
func (p *Paragraph) Get(name string) (string, bool) {
	for _, f := range p.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the named field's value or "" when absent.
func (p *Paragraph) Value(name string) string {
	v, _ := p.Get(name)
	return v
}

// Set replaces the named field, or appends it if absent.
func (p *Paragraph) Set(name, value string) {
	for i, f := range p.Fields {
		if strings.EqualFold(f.Name, name) {
			p.Fields[i].Value = value
			return
		}
	}
	p.Fields = append(p.Fields, Field{Name: CanonicalName(name), Value: value})
}

// knownNames carries the spellings dpkg uses for fields whose canonical
// form is not derivable by capitalization.
var knownNames = map[string]string{
	"sha256": "SHA256",
	"sha512": "SHA512",
	"sha1":   "SHA1",
	"md5sum": "MD5sum",
}

// CanonicalName normalizes a field name: known names get their dpkg
// spelling, everything else capitalizes each hyphen-separated component.
func CanonicalName(name string) string {
	if canonical, ok := knownNames[strings.ToLower(name)]; ok {
		return canonical
	}
	parts := strings.Split(name, "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
	}
	return strings.Join(parts, "-")
}
