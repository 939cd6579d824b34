// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"os"
	"strings"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
)

// ReadSeedFile parses an include file: one package name per line, blank
// lines skipped, "#" starts a comment.
func ReadSeedFile(path string) ([]string, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.Config, err, path)
	}
	var seeds []string
	for _, line := range strings.Split(string(body), "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		for _, name := range strings.Fields(line) {
			seeds = append(seeds, name)
		}
	}
	return seeds, nil
}

// CollectSeeds merges the command-line includes (space-separated,
// repeatable) with the contents of every include file, deduplicating
// while preserving first-seen order.
func CollectSeeds(includes []string, includeFiles []string) ([]string, error) {
	var seeds []string
	for _, inc := range includes {
		seeds = append(seeds, strings.Fields(inc)...)
	}
	for _, path := range includeFiles {
		fromFile, err := ReadSeedFile(path)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, fromFile...)
	}
	seen := map[string]bool{}
	var uniq []string
	for _, s := range seeds {
		if seen[s] {
			continue
		}
		seen[s] = true
		uniq = append(uniq, s)
	}
	if len(uniq) == 0 {
		return nil, errkind.New(errkind.Config, "no seed packages given; use --include or --include-files")
	}
	return uniq, nil
}
