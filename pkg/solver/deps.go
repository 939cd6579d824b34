// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package solver

import (
	"strings"

	version "github.com/knqyf263/go-deb-version"
	"github.com/pkg/errors"
)

// Constraint is a version restriction attached to a dependency.
type Constraint struct {
	Op      string // "<<", "<=", "=", ">=", ">>" or "" for unversioned
	Version string
}

// Dep is a single dependency alternative: a package (or virtual) name
// with an optional version constraint.
type Dep struct {
	Name       string
	Constraint Constraint
}

// DepGroup is one comma-separated element of a relationship field:
// a list of "|"-separated alternatives, any one of which satisfies it.
type DepGroup []Dep

func (d Dep) String() string {
	if d.Constraint.Op == "" {
		return d.Name
	}
	return d.Name + " (" + d.Constraint.Op + " " + d.Constraint.Version + ")"
}

func (g DepGroup) String() string {
	parts := make([]string, len(g))
	for i, d := range g {
		parts[i] = d.String()
	}
	return strings.Join(parts, " | ")
}

// Satisfies reports whether candidate version v meets the constraint.
func (c Constraint) Satisfies(v string) bool {
	if c.Op == "" {
		return true
	}
	have, err := version.NewVersion(v)
	if err != nil {
		return false
	}
	want, err := version.NewVersion(c.Version)
	if err != nil {
		return false
	}
	switch c.Op {
	case "<<", "<":
		return have.LessThan(want)
	case "<=":
		return have.LessThan(want) || have.Equal(want)
	case "=":
		return have.Equal(want)
	case ">=":
		return have.GreaterThan(want) || have.Equal(want)
	case ">>", ">":
		return have.GreaterThan(want)
	}
	return false
}

// compareVersions returns -1, 0 or 1 ordering a against b; unparseable
// versions fall back to string comparison the way the index sorts them.
func compareVersions(a, b string) int {
	va, erra := version.NewVersion(a)
	vb, errb := version.NewVersion(b)
	if erra != nil || errb != nil {
		return strings.Compare(a, b)
	}
	switch {
	case va.LessThan(vb):
		return -1
	case va.GreaterThan(vb):
		return 1
	}
	return 0
}

// parseDep parses one alternative: "name", "name (>= 1.2)",
// "name:any (<< 2)". Architecture qualifiers and bracketed restriction
// lists are discarded; binary package relationships in a single-arch
// bootstrap never restrict on them.
func parseDep(s string) (Dep, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "["); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	var d Dep
	name := s
	if i := strings.Index(s, "("); i >= 0 {
		name = strings.TrimSpace(s[:i])
		rest := strings.TrimSpace(s[i+1:])
		rest = strings.TrimSuffix(rest, ")")
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return d, errors.Errorf("malformed version restriction %q", s)
		}
		d.Constraint = Constraint{Op: fields[0], Version: fields[1]}
		switch d.Constraint.Op {
		case "<<", "<=", "=", ">=", ">>", "<", ">":
		default:
			return d, errors.Errorf("unknown version operator %q", d.Constraint.Op)
		}
	}
	if i := strings.Index(name, ":"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return d, errors.Errorf("empty package name in %q", s)
	}
	d.Name = name
	return d, nil
}

// ParseRelations parses a relationship field value such as Depends or
// Conflicts into its groups of alternatives.
func ParseRelations(value string) ([]DepGroup, error) {
	value = strings.TrimSpace(strings.ReplaceAll(value, "\n", " "))
	if value == "" {
		return nil, nil
	}
	var groups []DepGroup
	for _, clause := range strings.Split(value, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		var group DepGroup
		for _, alt := range strings.Split(clause, "|") {
			d, err := parseDep(alt)
			if err != nil {
				return nil, err
			}
			group = append(group, d)
		}
		groups = append(groups, group)
	}
	return groups, nil
}
