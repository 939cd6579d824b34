// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package install materializes an install plan into a target root:
// directory skeleton, direct extraction of the bootstrap subset, bind
// mounts, the chrooted dpkg run, post-install scripts, cleanup and
// export.
package install

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aosc-dev/aoscbootstrap/pkg/apt/control"
	"github.com/pkg/errors"
)

// StatusUnpacked is the dpkg state recorded for directly-extracted
// packages so the chrooted configure pass treats them as already
// unpacked.
const StatusUnpacked = "install ok unpacked"

func dpkgDir(root string, elem ...string) string {
	return filepath.Join(append([]string{root, "var/lib/dpkg"}, elem...)...)
}

// repoOnlyFields are index fields that describe the archive, not the
// installed package; dpkg does not carry them in its status database.
var repoOnlyFields = map[string]bool{
	"filename":        true,
	"size":            true,
	"md5sum":          true,
	"sha1":            true,
	"sha256":          true,
	"sha512":          true,
	"description-md5": true,
}

// statusParagraph derives the status-database stanza from a control
// stanza: Status inserted after Package, archive-only fields dropped.
func statusParagraph(para control.Paragraph, status string) control.Paragraph {
	out := control.Paragraph{}
	for _, f := range para.Fields {
		if repoOnlyFields[strings.ToLower(f.Name)] {
			continue
		}
		out.Fields = append(out.Fields, f)
		if f.Name == "Package" {
			out.Fields = append(out.Fields, control.Field{Name: "Status", Value: status})
		}
	}
	return out
}

// AppendStatus records a package in the target's dpkg status database.
func AppendStatus(root string, para control.Paragraph, status string) error {
	f, err := os.OpenFile(dpkgDir(root, "status"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "opening dpkg status")
	}
	defer f.Close()
	stanza := statusParagraph(para, status)
	if _, err := stanza.WriteTo(f); err != nil {
		return errors.Wrap(err, "writing status stanza")
	}
	_, err = f.WriteString("\n")
	return err
}

// WriteInfoFiles records a package's file list, md5sums and conffiles
// under var/lib/dpkg/info.
func WriteInfoFiles(root, name string, files []string, md5sums, conffiles string) error {
	info := dpkgDir(root, "info")
	list := strings.Join(files, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(info, name+".list"), []byte(list), 0o644); err != nil {
		return errors.Wrap(err, "writing file list")
	}
	if md5sums != "" {
		if err := os.WriteFile(filepath.Join(info, name+".md5sums"), []byte(md5sums), 0o644); err != nil {
			return errors.Wrap(err, "writing md5sums")
		}
	}
	if conffiles != "" {
		if err := os.WriteFile(filepath.Join(info, name+".conffiles"), []byte(conffiles), 0o644); err != nil {
			return errors.Wrap(err, "writing conffiles")
		}
	}
	return nil
}

// InstalledPackages parses the target's status database and returns the
// package names recorded in the given state ("installed", "unpacked").
func InstalledPackages(root, state string) ([]string, error) {
	f, err := os.Open(dpkgDir(root, "status"))
	if err != nil {
		return nil, errors.Wrap(err, "opening dpkg status")
	}
	defer f.Close()
	paragraphs, err := control.Parse(f)
	if err != nil {
		return nil, errors.Wrap(err, "parsing dpkg status")
	}
	var names []string
	for _, p := range paragraphs {
		status := p.Value("Status")
		if strings.HasSuffix(status, " "+state) || status == state {
			names = append(names, p.Value("Package"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// OwnedFiles returns every path recorded in the info file lists, in the
// absolute-within-root form the lists use.
func OwnedFiles(root string) (map[string]bool, error) {
	owned := map[string]bool{}
	lists, err := filepath.Glob(filepath.Join(dpkgDir(root, "info"), "*.list"))
	if err != nil {
		return nil, err
	}
	for _, list := range lists {
		body, err := os.ReadFile(list)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", list)
		}
		for _, line := range strings.Split(string(body), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			owned[strings.TrimSuffix(line, "/")] = true
		}
	}
	return owned, nil
}
