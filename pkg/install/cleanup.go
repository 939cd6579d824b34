// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// cleanupWhitelist lists the root-relative prefixes the cleanup pass
// never touches, whether or not dpkg owns them.
var cleanupWhitelist = []string{
	"/dev",
	"/etc",
	"/run",
	"/usr",
	"/var/lib/apt/gen",
	"/var/lib/apt/extended_states",
	"/var/lib/dkms",
	"/var/lib/dpkg",
	"/var/log/journal",
	"/usr/lib/locale/locale-archive",
	"/root",
	"/home",
	"/proc",
	"/sys",
}

func whitelisted(path string) bool {
	for _, prefix := range cleanupWhitelist {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	if path == "/"+StageMarker {
		return true
	}
	// A sentinel the image build tooling leaves behind, kept wherever
	// it appears.
	return path == "/.updated" || strings.HasSuffix(path, "/.updated")
}

// Cleanup removes every file on the root that is neither owned by dpkg
// nor whitelisted, then removes /etc/machine-id last so the image boots
// with a fresh identity.
func Cleanup(root string) error {
	owned, err := OwnedFiles(root)
	if err != nil {
		return errkind.Wrap(errkind.Script, err, root)
	}
	var doomed []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		if rel == "." {
			return nil
		}
		abs := "/" + filepath.ToSlash(rel)
		if whitelisted(abs) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if owned[abs] {
			return nil
		}
		if d.IsDir() {
			// Directories owned by no package are only removed when
			// emptied by the file pass below.
			return nil
		}
		doomed = append(doomed, path)
		return nil
	})
	if err != nil {
		return errkind.Wrap(errkind.Script, err, root)
	}
	for _, path := range doomed {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errkind.Wrap(errkind.Script, err, path)
		}
	}
	if err := pruneEmptyDirs(root, owned); err != nil {
		return err
	}
	// machine-id goes last, always.
	if err := os.Remove(filepath.Join(root, "etc/machine-id")); err != nil && !os.IsNotExist(err) {
		return errkind.Wrap(errkind.Script, err, "etc/machine-id")
	}
	log.Printf("cleanup removed %d files", len(doomed))
	return nil
}

// pruneEmptyDirs removes unowned, unwhitelisted directories left empty
// by the cleanup pass, deepest first.
func pruneEmptyDirs(root string, owned map[string]bool) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if rel == "." {
			return nil
		}
		abs := "/" + filepath.ToSlash(rel)
		if whitelisted(abs) {
			return filepath.SkipDir
		}
		if !owned[abs] {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return errkind.Wrap(errkind.Script, err, root)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		// Fails harmlessly while non-empty.
		if err := os.Remove(dir); err != nil && !errors.Is(err, unix.ENOTEMPTY) && !os.IsNotExist(err) {
			return errkind.Wrap(errkind.Script, err, dir)
		}
	}
	return nil
}
