// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ArchiveCacheDir is the package cache inside the target, relative to
// the root. Stage 1 copies non-bootstrap archives here; the chrooted
// dpkg run consumes them.
const ArchiveCacheDir = "var/cache/apt/archives"

// StageMarker is the sentinel file kept at the target root while a run
// is in progress; the cleanup pass leaves it alone.
const StageMarker = ".aoscbootstrap-stage"

var skeletonDirs = []string{
	ArchiveCacheDir,
	"var/lib/dpkg/info",
	"var/lib/dpkg/updates",
	"var/lib/dpkg/triggers",
	"etc",
	"tmp",
	"dev",
	"proc",
	"sys",
	"run",
}

// CreateSkeleton builds the stage-0 directory layout and seeds the
// empty dpkg database files.
func CreateSkeleton(root string) error {
	for _, dir := range skeletonDirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}
	if err := os.Chmod(filepath.Join(root, "tmp"), 0o1777); err != nil {
		return err
	}
	for _, file := range []string{"status", "available"} {
		path := dpkgDir(root, file)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return errors.Wrapf(err, "seeding %s", file)
		}
	}
	return nil
}
