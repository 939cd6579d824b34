// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"io"
	"strings"
)

// WriteTo serializes the paragraph in canonical wire form: one
// "Name: value" line per field, continuation lines indented with a single
// space, and blank interior lines escaped as " .". The trailing blank
// line separating stanzas is NOT written; callers emitting several
// paragraphs interleave it themselves.
func (p *Paragraph) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, f := range p.Fields {
		lines := strings.Split(f.Value, "\n")
		c, err := io.WriteString(w, f.Name+": "+lines[0]+"\n")
		n += int64(c)
		if err != nil {
			return n, err
		}
		for _, line := range lines[1:] {
			if line == "" {
				line = "."
			}
			c, err := io.WriteString(w, " "+line+"\n")
			n += int64(c)
			if err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// String returns the canonical wire form of the paragraph.
func (p *Paragraph) String() string {
	var b strings.Builder
	p.WriteTo(&b)
	return b.String()
}
