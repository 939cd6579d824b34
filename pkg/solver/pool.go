// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package solver selects a concrete, ordered install set from parsed
// package indices. It follows the pool protocol of SAT-based
// distribution solvers: load candidate records into per-repository
// sub-pools, freeze the pool (computing what-provides tables), issue an
// install job for the seed names, then read the resulting transaction's
// install steps in dependency order.
package solver

import (
	"sort"
	"strconv"

	"github.com/aosc-dev/aoscbootstrap/pkg/apt"
	"github.com/aosc-dev/aoscbootstrap/pkg/apt/control"
	"github.com/pkg/errors"
)

// Candidate is one installable package record loaded into the pool.
type Candidate struct {
	Name         string
	Version      string
	Architecture string
	Filename     string
	Size         int64
	Digest       Digest

	depends    []DepGroup
	preDepends []DepGroup
	recommends []DepGroup
	conflicts  []Dep
	breaks     []Dep
	provides   []Dep

	repo *Repo
	para control.Paragraph
}

// Paragraph returns the full control stanza the candidate was loaded
// from, with every field verbatim.
func (c *Candidate) Paragraph() control.Paragraph { return c.para }

// PreDepends exposes the parsed Pre-Depends groups; the installer's
// bootstrap-subset closure walks these.
func (c *Candidate) PreDepends() []DepGroup { return c.preDepends }

// Depends exposes the parsed Depends groups.
func (c *Candidate) Depends() []DepGroup { return c.depends }

// Provides exposes the names the candidate provides.
func (c *Candidate) Provides() []Dep { return c.provides }

// Repo is a per-repository sub-pool of candidates.
type Repo struct {
	Name       string
	Priority   int
	Repository apt.Repository
	pool       *Pool
	count      int
}

// Pool owns every candidate the solver may choose from. Once a job has
// been issued the pool is frozen; loading into a frozen pool panics, as
// that is a programming error, not an input error.
type Pool struct {
	arch      string
	repos     []*Repo
	byName    map[string][]*Candidate
	providers map[string][]*Candidate
	frozen    bool
}

// NewPool creates a pool for the given system architecture.
func NewPool(arch string) *Pool {
	return &Pool{
		arch:      arch,
		byName:    map[string][]*Candidate{},
		providers: map[string][]*Candidate{},
	}
}

// NewRepo registers a sub-pool. Lower priority values win provider
// tie-breaks after version comparison.
func (p *Pool) NewRepo(name string, priority int, repository apt.Repository) *Repo {
	r := &Repo{Name: name, Priority: priority, Repository: repository, pool: p}
	p.repos = append(p.repos, r)
	return r
}

// AddIndex bulk-loads all records of a parsed Packages index into the
// sub-pool. Records are streamed in unfiltered; selection is entirely
// the solver's concern. Records missing a field the solver requires are
// rejected.
func (r *Repo) AddIndex(idx *apt.PackagesIndex) error {
	if r.pool.frozen {
		panic("solver: AddIndex on frozen pool")
	}
	for i := range idx.Records {
		c, err := newCandidate(&idx.Records[i], r)
		if err != nil {
			return errors.Wrapf(err, "record %d of %s/%s index", i, idx.Component, idx.Architecture)
		}
		r.pool.byName[c.Name] = append(r.pool.byName[c.Name], c)
		r.count++
	}
	return nil
}

func newCandidate(para *control.Paragraph, r *Repo) (*Candidate, error) {
	c := &Candidate{para: *para, repo: r}
	for _, req := range []struct {
		field string
		dst   *string
	}{
		{"Package", &c.Name},
		{"Version", &c.Version},
		{"Architecture", &c.Architecture},
		{"Filename", &c.Filename},
	} {
		v, ok := para.Get(req.field)
		if !ok || v == "" {
			return nil, errors.Errorf("missing required field %s", req.field)
		}
		*req.dst = v
	}
	sizeStr, ok := para.Get("Size")
	if !ok {
		return nil, errors.New("missing required field Size")
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed Size for %s", c.Name)
	}
	c.Size = size
	// The plan records whichever digest pinned the record, in
	// preference order.
	for _, algo := range []string{"SHA256", "SHA512", "MD5sum"} {
		if v, ok := para.Get(algo); ok && v != "" {
			c.Digest = Digest{Algo: algo, Hex: v}
			break
		}
	}
	if c.Digest.Hex == "" {
		return nil, errors.Errorf("record %s carries no digest", c.Name)
	}
	for _, rel := range []struct {
		field string
		dst   *[]DepGroup
	}{
		{"Depends", &c.depends},
		{"Pre-Depends", &c.preDepends},
		{"Recommends", &c.recommends},
	} {
		if v, ok := para.Get(rel.field); ok {
			groups, err := ParseRelations(v)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s of %s", rel.field, c.Name)
			}
			*rel.dst = groups
		}
	}
	for _, rel := range []struct {
		field string
		dst   *[]Dep
	}{
		{"Conflicts", &c.conflicts},
		{"Breaks", &c.breaks},
		{"Provides", &c.provides},
	} {
		if v, ok := para.Get(rel.field); ok {
			groups, err := ParseRelations(v)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s of %s", rel.field, c.Name)
			}
			for _, g := range groups {
				// These fields do not use alternatives.
				*rel.dst = append(*rel.dst, g...)
			}
		}
	}
	return c, nil
}

// Ready freezes the pool and computes the what-provides table. It must
// be called after the last AddIndex and before the first Solve.
func (p *Pool) Ready() {
	if p.frozen {
		return
	}
	for _, candidates := range p.byName {
		sortCandidates(candidates)
		for _, c := range candidates {
			for _, prov := range c.provides {
				p.providers[prov.Name] = append(p.providers[prov.Name], c)
			}
		}
	}
	for _, candidates := range p.providers {
		sortCandidates(candidates)
	}
	p.frozen = true
}

// sortCandidates orders by version descending, then repository priority
// ascending. This is the standard provider tie-break.
func sortCandidates(cs []*Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cmp := compareVersions(cs[i].Version, cs[j].Version); cmp != 0 {
			return cmp > 0
		}
		return cs[i].repo.Priority < cs[j].repo.Priority
	})
}

// candidatesFor returns the viable candidates for a dependency, direct
// names first, then providers of the virtual name. Versioned constraints
// never match plain provides, mirroring dpkg's rule for unversioned
// virtual packages.
func (p *Pool) candidatesFor(d Dep) []*Candidate {
	var out []*Candidate
	for _, c := range p.byName[d.Name] {
		if d.Constraint.Satisfies(c.Version) {
			out = append(out, c)
		}
	}
	if d.Constraint.Op == "" {
		out = append(out, p.providers[d.Name]...)
	} else {
		for _, c := range p.providers[d.Name] {
			for _, prov := range c.provides {
				if prov.Name == d.Name && prov.Constraint.Op == "=" && d.Constraint.Satisfies(prov.Constraint.Version) {
					out = append(out, c)
					break
				}
			}
		}
	}
	return out
}

// Size returns the number of loaded candidates.
func (p *Pool) Size() int {
	n := 0
	for _, r := range p.repos {
		n += r.count
	}
	return n
}
