// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ParseError reports an ill-formed stanza with the byte offset of the
// offending line.
type ParseError struct {
	Offset int64
	Line   string
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at byte %d: %q", e.Msg, e.Offset, e.Line)
}

// Scanner streams paragraphs out of a control file without holding the
// whole input in memory. Large Packages indices are parsed this way.
type Scanner struct {
	r      *bufio.Reader
	offset int64
	done   bool
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 64*1024)}
}

func (s *Scanner) readLine() (string, int64, error) {
	start := s.offset
	line, err := s.r.ReadString('\n')
	s.offset += int64(len(line))
	line = strings.TrimRight(line, "\r\n")
	return line, start, err
}

// Next returns the next paragraph, or io.EOF when the input is exhausted.
func (s *Scanner) Next() (*Paragraph, error) {
	if s.done {
		return nil, io.EOF
	}
	p := &Paragraph{}
	var last *Field
	for {
		line, start, err := s.readLine()
		if err != nil && err != io.EOF {
			return nil, err
		}
		eof := err == io.EOF
		switch {
		case strings.TrimSpace(line) == "":
			// Blank line: stanza separator.
			if len(p.Fields) > 0 {
				if eof {
					s.done = true
				}
				return p, nil
			}
		case strings.HasPrefix(line, "#"):
			// Comment lines are permitted between stanzas only.
			if len(p.Fields) > 0 {
				return nil, &ParseError{Offset: start, Line: line, Msg: "comment inside stanza"}
			}
		case line[0] == ' ' || line[0] == '\t':
			// Continuation line. A lone "." denotes a blank line
			// within the field value.
			if last == nil {
				return nil, &ParseError{Offset: start, Line: line, Msg: "continuation before any field"}
			}
			cont := strings.TrimSpace(line)
			if cont == "." {
				cont = ""
			}
			last.Value += "\n" + cont
		default:
			name, value, found := strings.Cut(line, ":")
			if !found {
				return nil, &ParseError{Offset: start, Line: line, Msg: "expected field"}
			}
			if strings.ContainsAny(name, " \t") {
				return nil, &ParseError{Offset: start, Line: line, Msg: "malformed field name"}
			}
			if _, dup := p.Get(name); dup {
				return nil, &ParseError{Offset: start, Line: line, Msg: "duplicate field in stanza"}
			}
			p.Fields = append(p.Fields, Field{Name: CanonicalName(name), Value: strings.TrimSpace(value)})
			last = &p.Fields[len(p.Fields)-1]
		}
		if eof {
			s.done = true
			if len(p.Fields) > 0 {
				return p, nil
			}
			return nil, io.EOF
		}
	}
}

// Parse reads all paragraphs from r.
func Parse(r io.Reader) ([]Paragraph, error) {
	s := NewScanner(r)
	var out []Paragraph
	for {
		p, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
}

// ParseSigned parses a control file that may be wrapped in an OpenPGP
// cleartext frame, discarding the armor. Signature checking happens
// elsewhere; this only recovers the message body.
func ParseSigned(r io.Reader) ([]Paragraph, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := string(body)
	if strings.HasPrefix(text, "-----BEGIN PGP SIGNED MESSAGE-----") {
		// Drop the hash header block and everything after the
		// signature delimiter.
		if _, rest, ok := strings.Cut(text, "\n\n"); ok {
			text = rest
		}
		if msg, _, ok := strings.Cut(text, "-----BEGIN PGP SIGNATURE-----"); ok {
			text = msg
		}
	}
	paragraphs, err := Parse(strings.NewReader(text))
	if err != nil {
		return nil, errors.Wrap(err, "parsing cleartext body")
	}
	return paragraphs, nil
}
