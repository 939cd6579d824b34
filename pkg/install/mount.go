// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// bindSources are the host trees made visible inside the chroot.
var bindSources = []string{"/dev", "/proc", "/sys", "/run"}

// BindMounts is a scoped acquisition of the chroot's bind mounts. Mount
// operations mutate global OS state, so every acquisition must be
// released on every exit path; Release is idempotent for that reason.
type BindMounts struct {
	mounted []string
}

// MountAll binds /dev, /proc, /sys and /run into the target and copies
// the host's resolv.conf so name resolution works inside the chroot.
// On any failure the mounts already made are released before returning.
func MountAll(root string) (*BindMounts, error) {
	b := &BindMounts{}
	for _, src := range bindSources {
		dst := filepath.Join(root, src)
		if err := os.MkdirAll(dst, 0o755); err != nil {
			b.Release()
			return nil, errkind.Wrap(errkind.Chroot, err, dst)
		}
		if err := unix.Mount(src, dst, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
			b.Release()
			return nil, errkind.Wrap(errkind.Chroot, errors.Wrapf(err, "bind-mounting %s", src), dst)
		}
		b.mounted = append(b.mounted, dst)
	}
	if err := copyResolvConf(root); err != nil {
		b.Release()
		return nil, errkind.Wrap(errkind.Chroot, err, root)
	}
	return b, nil
}

func copyResolvConf(root string) error {
	body, err := os.ReadFile("/etc/resolv.conf")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.WriteFile(filepath.Join(root, "etc/resolv.conf"), body, 0o644)
}

// Release unmounts in reverse order. Busy mounts are retried briefly,
// then lazily detached so teardown never leaves the host mount table
// dirty. Safe to call more than once.
func (b *BindMounts) Release() error {
	var firstErr error
	for i := len(b.mounted) - 1; i >= 0; i-- {
		dst := b.mounted[i]
		err := unix.Unmount(dst, 0)
		for retry := 0; err == unix.EBUSY && retry < 5; retry++ {
			time.Sleep(100 * time.Millisecond)
			err = unix.Unmount(dst, 0)
		}
		if err == unix.EBUSY {
			log.Printf("lazily detaching busy mount %s", dst)
			err = unix.Unmount(dst, unix.MNT_DETACH)
		}
		if err != nil && err != unix.EINVAL && firstErr == nil {
			// EINVAL means the path is no longer a mount point.
			firstErr = errkind.Wrap(errkind.Chroot, errors.Wrap(err, "unmounting"), dst)
		}
	}
	b.mounted = nil
	return firstErr
}
