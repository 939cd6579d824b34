// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/aosc-dev/aoscbootstrap/pkg/deb"
	"github.com/aosc-dev/aoscbootstrap/pkg/solver"
	"github.com/pkg/errors"
)

// ExtractBootstrapSet runs stage 1: plan entries in the bootstrap set
// are extracted directly into the root and recorded as unpacked in the
// dpkg database; all other archives are copied into the target's
// archive cache for the chrooted dpkg run. Entries are processed in
// plan order.
func ExtractBootstrapSet(root, cacheDir string, plan *solver.InstallPlan, set map[string]bool) error {
	for _, entry := range plan.Entries {
		archive := filepath.Join(cacheDir, entry.Basename())
		if !set[entry.Name] {
			if err := copyFile(archive, filepath.Join(root, ArchiveCacheDir, entry.Basename())); err != nil {
				return errkind.Wrap(errkind.Extraction, err, entry.Name)
			}
			continue
		}
		log.Printf("extracting %s %s", entry.Name, entry.Version)
		files, err := deb.ExtractData(archive, root)
		if err != nil {
			return err
		}
		ctl, err := deb.ReadControl(archive)
		if err != nil {
			return err
		}
		if err := AppendStatus(root, ctl.Paragraph, StatusUnpacked); err != nil {
			return errkind.Wrap(errkind.Extraction, err, entry.Name)
		}
		if err := WriteInfoFiles(root, entry.Name, files, ctl.MD5sums, ctl.Conffiles); err != nil {
			return errkind.Wrap(errkind.Extraction, err, entry.Name)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", dst)
	}
	return nil
}
