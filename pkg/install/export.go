// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"archive/tar"
	"io"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
	"golang.org/x/sys/unix"
)

// ExportTar streams the target root into an xz-compressed tarball,
// preserving ownership and extended attributes.
func ExportTar(root, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return errkind.Wrap(errkind.Script, err, out)
	}
	defer f.Close()
	xzw, err := xz.NewWriter(f)
	if err != nil {
		return errkind.Wrap(errkind.Script, err, out)
	}
	tw := tar.NewWriter(xzw)
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
		info, ierr := d.Info()
		if ierr != nil {
			return ierr
		}
		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		header, herr := tar.FileInfoHeader(info, link)
		if herr != nil {
			return herr
		}
		header.Name = "./" + filepath.ToSlash(rel)
		if d.IsDir() {
			header.Name += "/"
		}
		if st, ok := info.Sys().(*syscall.Stat_t); ok {
			header.Uid = int(st.Uid)
			header.Gid = int(st.Gid)
		}
		if xattrs, xerr := readXattrs(path); xerr == nil && len(xattrs) > 0 {
			header.PAXRecords = map[string]string{}
			for name, value := range xattrs {
				header.PAXRecords["SCHILY.xattr."+name] = value
			}
			header.Format = tar.FormatPAX
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if header.Typeflag == tar.TypeReg {
			src, oerr := os.Open(path)
			if oerr != nil {
				return oerr
			}
			_, cerr := io.Copy(tw, src)
			src.Close()
			if cerr != nil {
				return cerr
			}
		}
		return nil
	})
	if err != nil {
		return errkind.Wrap(errkind.Script, errors.Wrap(err, "archiving root"), out)
	}
	if err := tw.Close(); err != nil {
		return errkind.Wrap(errkind.Script, err, out)
	}
	if err := xzw.Close(); err != nil {
		return errkind.Wrap(errkind.Script, err, out)
	}
	log.Printf("exported %s", out)
	return f.Close()
}

func readXattrs(path string) (map[string]string, error) {
	size, err := unix.Llistxattr(path, nil)
	if err != nil || size == 0 {
		return nil, err
	}
	buf := make([]byte, size)
	size, err = unix.Llistxattr(path, buf)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	start := 0
	for i := 0; i < size; i++ {
		if buf[i] != 0 {
			continue
		}
		name := string(buf[start:i])
		start = i + 1
		vsize, verr := unix.Lgetxattr(path, name, nil)
		if verr != nil {
			continue
		}
		value := make([]byte, vsize)
		if _, verr := unix.Lgetxattr(path, name, value); verr != nil {
			continue
		}
		out[name] = string(value)
	}
	return out, nil
}

// ExportSquashfs delegates image creation to the external mksquashfs.
func ExportSquashfs(root, out string) error {
	cmd := exec.Command("mksquashfs", root, out, "-noappend", "-comp", "xz")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errkind.Wrap(errkind.Script, errors.Wrap(err, "mksquashfs"), out)
	}
	return nil
}
