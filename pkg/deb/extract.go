// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package deb

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// sanitize turns a tar member name into a path relative to the root,
// rejecting absolute names and any ".." traversal.
func sanitize(name string) (string, error) {
	clean := strings.TrimPrefix(name, "./")
	clean = strings.TrimSuffix(clean, "/")
	if clean == "" || clean == "." {
		return "", nil
	}
	if strings.HasPrefix(clean, "/") {
		return "", errors.Errorf("absolute path %q in archive", name)
	}
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return "", errors.Errorf("path escape %q in archive", name)
		}
	}
	return clean, nil
}

// applyTar extracts every member of tr under root, preserving mode,
// ownership, mtime, symlinks and hard links. Directory members arrive
// before their children in well-formed data tars; parents are still
// created on demand for the rest.
func applyTar(tr *tar.Reader, root string) ([]string, error) {
	files := []string{"/."}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading tar entry")
		}
		rel, err := sanitize(header.Name)
		if err != nil {
			return nil, err
		}
		if rel == "" {
			continue
		}
		dest := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, err
		}
		mode := os.FileMode(header.Mode & 0o7777)
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, mode); err != nil {
				return nil, err
			}
			if err := os.Chmod(dest, mode); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			if err := writeFile(dest, tr, mode, header.Size); err != nil {
				return nil, err
			}
		case tar.TypeSymlink:
			os.Remove(dest)
			if err := os.Symlink(header.Linkname, dest); err != nil {
				return nil, err
			}
		case tar.TypeLink:
			linkRel, err := sanitize(header.Linkname)
			if err != nil {
				return nil, err
			}
			os.Remove(dest)
			if err := os.Link(filepath.Join(root, linkRel), dest); err != nil {
				return nil, err
			}
		case tar.TypeFifo:
			if err := unix.Mkfifo(dest, uint32(mode)); err != nil && !os.IsExist(err) {
				return nil, errors.Wrapf(err, "mkfifo %s", rel)
			}
		case tar.TypeChar, tar.TypeBlock:
			typ := uint32(unix.S_IFCHR)
			if header.Typeflag == tar.TypeBlock {
				typ = unix.S_IFBLK
			}
			dev := unix.Mkdev(uint32(header.Devmajor), uint32(header.Devminor))
			if err := unix.Mknod(dest, typ|uint32(mode), int(dev)); err != nil && !os.IsExist(err) {
				return nil, errors.Wrapf(err, "mknod %s", rel)
			}
		default:
			return nil, errors.Errorf("unsupported tar entry type %d for %q", header.Typeflag, header.Name)
		}
		if header.Typeflag != tar.TypeSymlink {
			if err := os.Chown(dest, header.Uid, header.Gid); err != nil && !os.IsPermission(err) {
				return nil, errors.Wrapf(err, "chown %s", rel)
			}
			if err := os.Chtimes(dest, header.ModTime, header.ModTime); err != nil {
				return nil, errors.Wrapf(err, "chtimes %s", rel)
			}
		} else if err := os.Lchown(dest, header.Uid, header.Gid); err != nil && !os.IsPermission(err) {
			return nil, errors.Wrapf(err, "lchown %s", rel)
		}
		files = append(files, "/"+rel)
	}
}

func writeFile(dest string, r io.Reader, mode os.FileMode, size int64) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if written != size {
		return errors.Errorf("short write for %s: %d of %d bytes", dest, written, size)
	}
	// Chmod again: the umask may have stripped setuid/setgid bits at
	// create time.
	return os.Chmod(dest, mode)
}
