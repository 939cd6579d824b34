// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package solver

import (
	"path"

	"github.com/pkg/errors"
)

// Digest is a named archive digest from the package record.
type Digest struct {
	Algo string // "SHA256", "SHA512" or "MD5sum"
	Hex  string
}

// PlanEntry is one package to acquire and install.
type PlanEntry struct {
	Name         string
	Version      string
	Architecture string
	URL          string
	Filename     string
	Size         int64
	Digest       Digest
}

// Basename returns the archive file name used in the package cache.
func (e PlanEntry) Basename() string {
	return path.Base(e.Filename)
}

// InstallPlan is the ordered install set: the single source of truth
// for the fetch and install stages.
type InstallPlan struct {
	Entries []PlanEntry

	byName map[string]*Candidate
}

// Candidate returns the solver candidate behind a plan entry.
func (p *InstallPlan) Candidate(name string) (*Candidate, bool) {
	c, ok := p.byName[name]
	return c, ok
}

// TotalSize sums the expected archive sizes across the plan.
func (p *InstallPlan) TotalSize() int64 {
	var sum int64
	for _, e := range p.Entries {
		sum += e.Size
	}
	return sum
}

// Names returns the plan's package names in install order.
func (p *InstallPlan) Names() []string {
	names := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		names[i] = e.Name
	}
	return names
}

// NewPlan reads the transaction's install steps in order into a plan.
// It enforces the plan invariants: no duplicates, and every seed of the
// job present in the result.
func NewPlan(tx *Transaction, job *Job) (*InstallPlan, error) {
	plan := &InstallPlan{byName: map[string]*Candidate{}}
	for _, step := range tx.Steps {
		if step.Op != OpInstall {
			continue
		}
		c := step.Pkg
		if _, dup := plan.byName[c.Name]; dup {
			return nil, errors.Errorf("duplicate plan entry %s", c.Name)
		}
		plan.byName[c.Name] = c
		plan.Entries = append(plan.Entries, PlanEntry{
			Name:         c.Name,
			Version:      c.Version,
			Architecture: c.Architecture,
			URL:          c.repo.Repository.PoolURL(c.Filename),
			Filename:     c.Filename,
			Size:         c.Size,
			Digest:       c.Digest,
		})
	}
	for _, seed := range job.Seeds {
		if _, ok := plan.byName[seed]; ok {
			continue
		}
		// A seed may be satisfied by a provider under a different name.
		found := false
		for _, c := range plan.byName {
			for _, prov := range c.provides {
				if prov.Name == seed {
					found = true
					break
				}
			}
		}
		if !found {
			return nil, errors.Errorf("seed %s missing from solved plan", seed)
		}
	}
	return plan, nil
}
