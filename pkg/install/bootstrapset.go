// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"github.com/aosc-dev/aoscbootstrap/pkg/solver"
)

// bootstrapFloor are the packages the chroot cannot come up without:
// enough to run dpkg itself. libc arrives through the Pre-Depends and
// Depends closure below.
var bootstrapFloor = []string{"base-files", "dpkg", "bash", "tar"}

// BootstrapSet selects the plan packages to extract directly into the
// target (stage 1): the floor set plus the closure of their Pre-Depends
// and Depends within the plan, enough for dpkg to run under chroot.
// Everything else is handed to the chrooted dpkg via the archive cache.
func BootstrapSet(plan *solver.InstallPlan) map[string]bool {
	selected := map[string]bool{}
	var queue []string
	for _, name := range bootstrapFloor {
		if entry := findInPlan(plan, solver.Dep{Name: name}); entry != "" {
			queue = append(queue, entry)
		}
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if selected[name] {
			continue
		}
		selected[name] = true
		c, ok := plan.Candidate(name)
		if !ok {
			continue
		}
		for _, group := range c.PreDepends() {
			for _, alt := range group {
				if entry := findInPlan(plan, alt); entry != "" {
					queue = append(queue, entry)
					break
				}
			}
		}
		for _, group := range c.Depends() {
			for _, alt := range group {
				if entry := findInPlan(plan, alt); entry != "" {
					queue = append(queue, entry)
					break
				}
			}
		}
	}
	return selected
}

// findInPlan resolves a dependency within the plan: the named package if
// planned, otherwise a planned provider of the name.
func findInPlan(plan *solver.InstallPlan, d solver.Dep) string {
	if c, ok := plan.Candidate(d.Name); ok {
		if d.Constraint.Satisfies(c.Version) {
			return c.Name
		}
	}
	for _, entry := range plan.Entries {
		c, ok := plan.Candidate(entry.Name)
		if !ok {
			continue
		}
		for _, prov := range c.Provides() {
			if prov.Name == d.Name {
				return c.Name
			}
		}
	}
	return ""
}
