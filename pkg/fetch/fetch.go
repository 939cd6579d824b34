// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package fetch downloads the planned package archives into the local
// cache with digest verification, bounded parallelism and retry.
package fetch

import (
	"context"
	"crypto"
	_ "crypto/md5"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/aosc-dev/aoscbootstrap/internal/hashext"
	"github.com/aosc-dev/aoscbootstrap/pkg/solver"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Progress receives fetch events. done is true exactly once per entry,
// after its archive is verified in place. Rendering is the caller's
// concern.
type Progress func(entry solver.PlanEntry, bytes int64, done bool)

// Fetcher downloads plan entries.
type Fetcher struct {
	// Client performs the HTTP requests; http.DefaultClient honours the
	// standard proxy environment variables.
	Client *http.Client

	// Parallel bounds concurrent downloads. Zero means min(NumCPU, 8).
	Parallel int

	// Retries caps attempts per entry. Zero means 3.
	Retries int

	Progress Progress
}

const spaceHeadroom = 1.1

func (f *Fetcher) parallel() int {
	if f.Parallel > 0 {
		return f.Parallel
	}
	return min(runtime.NumCPU(), 8)
}

func (f *Fetcher) retries() int {
	if f.Retries > 0 {
		return f.Retries
	}
	return 3
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) progress(entry solver.PlanEntry, n int64, done bool) {
	if f.Progress != nil {
		f.Progress(entry, n, done)
	}
}

func digestHash(d solver.Digest) (crypto.Hash, error) {
	switch d.Algo {
	case "SHA256":
		return crypto.SHA256, nil
	case "SHA512":
		return crypto.SHA512, nil
	case "MD5sum":
		return crypto.MD5, nil
	}
	return 0, errors.Errorf("unknown digest algorithm %q", d.Algo)
}

// matchesDigest reports whether the file at path has the expected digest.
func matchesDigest(path string, d solver.Digest) bool {
	algo, err := digestHash(d)
	if err != nil {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()
	h := hashext.NewTypedHash(algo)
	if _, err := io.Copy(h, file); err != nil {
		return false
	}
	return hashext.Check(h, d.Hex) == nil
}

// Preflight checks that dir has room for the plan plus headroom. The
// check is advisory; a growing target can still hit ENOSPC mid-run.
func Preflight(dir string, plan *solver.InstallPlan) error {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return errkind.Wrap(errkind.Transport, err, dir)
	}
	available := int64(st.Bavail) * st.Bsize
	need := int64(float64(plan.TotalSize()) * spaceHeadroom)
	if available < need {
		return errkind.New(errkind.InsufficientSpace,
			"%s has %d bytes free, plan needs %d", dir, available, need)
	}
	return nil
}

// FetchPlan downloads every entry of the plan into cacheDir. Entries
// already present with a matching digest are skipped, making re-runs
// free of network I/O. The first failing entry cancels the remaining
// workers; in-flight downloads finish or fail before FetchPlan returns.
func (f *Fetcher) FetchPlan(ctx context.Context, plan *solver.InstallPlan, cacheDir string) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return errors.Wrap(err, "creating package cache")
	}
	if err := Preflight(cacheDir, plan); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallel())
	for _, entry := range plan.Entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return f.fetchEntry(ctx, entry, cacheDir)
		})
	}
	return g.Wait()
}

func (f *Fetcher) fetchEntry(ctx context.Context, entry solver.PlanEntry, cacheDir string) error {
	dest := filepath.Join(cacheDir, entry.Basename())
	if matchesDigest(dest, entry.Digest) {
		f.progress(entry, 0, true)
		return nil
	}
	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt < f.retries(); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		lastErr = f.download(ctx, entry, dest)
		if lastErr == nil {
			f.progress(entry, 0, true)
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	if errors.Is(lastErr, hashext.ErrDigestMismatch) {
		return errkind.Wrap(errkind.Verification, lastErr, entry.Name)
	}
	return errkind.Wrap(errkind.Transport, lastErr, entry.URL)
}

// download streams one archive to a temporary sibling of dest, fsyncs,
// verifies the digest and renames into place.
func (f *Fetcher) download(ctx context.Context, entry solver.PlanEntry, dest string) (err error) {
	algo, err := digestHash(entry.Digest)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.URL, nil)
	if err != nil {
		return err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %s", resp.Status)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	h := hashext.NewTypedHash(algo)
	buf := make([]byte, 128*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				return werr
			}
			h.Write(buf[:n])
			f.progress(entry, int64(n), false)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = hashext.Check(h, entry.Digest.Hex); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
