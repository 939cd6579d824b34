// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package solver

import (
	"fmt"
	"strings"
)

// Job is a request to install a set of package names. Building a
// transaction consumes the job.
type Job struct {
	Seeds             []string
	InstallRecommends bool

	pool *Pool
	done bool
}

// NewJob prepares an install job for the seed names. Duplicates are
// dropped, first occurrence wins.
func (p *Pool) NewJob(seeds []string, installRecommends bool) *Job {
	p.Ready()
	seen := map[string]bool{}
	var uniq []string
	for _, s := range seeds {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		uniq = append(uniq, s)
	}
	return &Job{Seeds: uniq, InstallRecommends: installRecommends, pool: p}
}

// Problem is one irreconcilable conflict with its suggested resolutions,
// surfaced verbatim to the user.
type Problem struct {
	Description string
	Solutions   []string
}

// Unsolvable reports that the job has no consistent solution.
type Unsolvable struct {
	Problems []Problem
}

func (e *Unsolvable) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d problem(s) prevent installation:", len(e.Problems))
	for i, p := range e.Problems {
		fmt.Fprintf(&b, "\nProblem %d: %s", i+1, p.Description)
		for _, s := range p.Solutions {
			fmt.Fprintf(&b, "\n  Solution: %s", s)
		}
	}
	return b.String()
}

// StepOp is a transaction step type. Only installs occur in a bootstrap;
// the enum exists because transactions are read step-wise.
type StepOp int

const (
	OpInstall StepOp = iota
)

// Step is one ordered element of a solved transaction.
type Step struct {
	Op  StepOp
	Pkg *Candidate
}

// Transaction is the solver's answer: install steps in dependency
// order (dependencies precede dependents; within a dependency cycle the
// package reached first is emitted last).
type Transaction struct {
	Steps []Step
}

type resolution struct {
	pool       *Pool
	selected   map[string]*Candidate // package name -> choice
	order      []*Candidate          // post-order emission
	emitted    map[string]bool
	visiting   map[string]bool
	recommends bool
	problems   []Problem
}

// Solve resolves the job into a transaction. On conflicts it returns
// *Unsolvable carrying every problem discovered; the partial solution is
// discarded.
func (p *Pool) Solve(job *Job) (*Transaction, error) {
	if job.done {
		panic("solver: job already consumed")
	}
	job.done = true
	r := &resolution{
		pool:       p,
		selected:   map[string]*Candidate{},
		emitted:    map[string]bool{},
		visiting:   map[string]bool{},
		recommends: job.InstallRecommends,
	}
	for _, seed := range job.Seeds {
		if ok := r.install(Dep{Name: seed}, "requested on the command line"); !ok {
			// Keep resolving the remaining seeds so every problem is
			// reported in one pass.
			continue
		}
	}
	if len(r.problems) > 0 {
		return nil, &Unsolvable{Problems: r.problems}
	}
	tx := &Transaction{}
	for _, c := range r.order {
		tx.Steps = append(tx.Steps, Step{Op: OpInstall, Pkg: c})
	}
	return tx, nil
}

func (r *resolution) problem(desc string, solutions ...string) {
	r.problems = append(r.problems, Problem{Description: desc, Solutions: solutions})
}

// install satisfies one dependency, choosing a candidate and recursing
// into its requirements. It reports false and records a problem when the
// dependency cannot be satisfied.
func (r *resolution) install(d Dep, wantedBy string) bool {
	if c, ok := r.selected[d.Name]; ok {
		if d.Constraint.Satisfies(c.Version) {
			return true
		}
		r.problem(
			fmt.Sprintf("%s is already selected at version %s, but %s requires %s", d.Name, c.Version, wantedBy, d),
			fmt.Sprintf("remove the request that pinned %s %s", d.Name, c.Version))
		return false
	}
	candidates := r.pool.candidatesFor(d)
	if len(candidates) == 0 {
		r.problem(
			fmt.Sprintf("nothing provides %s (%s)", d, wantedBy),
			fmt.Sprintf("do not ask for %s", d.Name))
		return false
	}
	problemsBefore := len(r.problems)
	for _, c := range candidates {
		if conflict := r.conflictWithSelected(c); conflict != "" {
			// Try the next candidate; report only if none is viable.
			if c == candidates[len(candidates)-1] {
				r.problem(
					fmt.Sprintf("%s %s conflicts with %s", c.Name, c.Version, conflict),
					fmt.Sprintf("remove %s from the request", c.Name),
					fmt.Sprintf("remove the package conflicting with %s", c.Name))
				return false
			}
			continue
		}
		if r.tryCandidate(c) {
			// Problems recorded by candidates tried and rejected earlier
			// are resolved by this choice.
			r.problems = r.problems[:problemsBefore]
			return true
		}
	}
	r.problem(
		fmt.Sprintf("no installable candidate for %s (%s)", d, wantedBy),
		fmt.Sprintf("do not ask for %s", d.Name))
	return false
}

// tryCandidate selects c and resolves its requirements. Selection is
// committed optimistically: a bootstrap job installs into an empty root,
// so the first viable candidate (highest version, best priority) is the
// solver's standard choice.
func (r *resolution) tryCandidate(c *Candidate) bool {
	if r.visiting[c.Name] {
		// Dependency cycle: accept the in-progress selection.
		return true
	}
	r.selected[c.Name] = c
	r.visiting[c.Name] = true
	defer delete(r.visiting, c.Name)
	ok := true
	for _, group := range append(append([]DepGroup{}, c.preDepends...), c.depends...) {
		if !r.installGroup(group, c) {
			ok = false
		}
	}
	if !ok {
		delete(r.selected, c.Name)
		return false
	}
	if r.recommends {
		for _, group := range c.recommends {
			// Recommended packages that cannot be satisfied are skipped,
			// not fatal.
			r.installGroupLenient(group, c)
		}
	}
	r.emit(c)
	return true
}

// installGroup satisfies one alternative group of c's dependencies.
func (r *resolution) installGroup(group DepGroup, c *Candidate) bool {
	// Prefer an alternative that is already selected.
	for _, alt := range group {
		if s, ok := r.selected[alt.Name]; ok && alt.Constraint.Satisfies(s.Version) {
			return true
		}
		for _, sel := range r.selected {
			for _, prov := range sel.provides {
				if prov.Name == alt.Name && alt.Constraint.Op == "" {
					return true
				}
			}
		}
	}
	problemsBefore := len(r.problems)
	for _, alt := range group {
		if r.install(alt, fmt.Sprintf("%s %s", c.Name, c.Version)) {
			// Alternatives tried earlier may have recorded problems that
			// a later alternative resolved; drop them.
			r.problems = r.problems[:problemsBefore]
			return true
		}
	}
	return false
}

func (r *resolution) installGroupLenient(group DepGroup, c *Candidate) {
	problemsBefore := len(r.problems)
	for _, alt := range group {
		if r.install(alt, fmt.Sprintf("%s %s (recommends)", c.Name, c.Version)) {
			r.problems = r.problems[:problemsBefore]
			return
		}
	}
	r.problems = r.problems[:problemsBefore]
}

// conflictWithSelected checks c's Conflicts/Breaks against the current
// selection and vice versa, returning a description of the first hit.
func (r *resolution) conflictWithSelected(c *Candidate) string {
	for _, sel := range r.selected {
		if sel.Name == c.Name {
			continue
		}
		if d, ok := conflictsWith(c, sel); ok {
			return fmt.Sprintf("%s %s (%s declares %s)", sel.Name, sel.Version, c.Name, d)
		}
		if d, ok := conflictsWith(sel, c); ok {
			return fmt.Sprintf("%s %s (%s declares %s)", sel.Name, sel.Version, sel.Name, d)
		}
	}
	return ""
}

// conflictsWith reports whether a's Conflicts/Breaks hit b directly or
// through b's provides. It does not special-case a == b;
// conflictWithSelected skips the candidate's own name, so a package never
// conflicts with itself through a shared virtual name.
func conflictsWith(a, b *Candidate) (Dep, bool) {
	for _, d := range append(append([]Dep{}, a.conflicts...), a.breaks...) {
		if d.Name == b.Name && d.Constraint.Satisfies(b.Version) {
			return d, true
		}
		for _, prov := range b.provides {
			if d.Name == prov.Name && d.Constraint.Op == "" {
				return d, true
			}
		}
	}
	return Dep{}, false
}

func (r *resolution) emit(c *Candidate) {
	if r.emitted[c.Name] {
		return
	}
	r.emitted[c.Name] = true
	r.order = append(r.order, c)
}
