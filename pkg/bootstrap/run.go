// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap sequences the stages that turn an empty directory
// into a configured root filesystem: metadata fetch, dependency
// solving, archive download, extraction, the chrooted dpkg run and
// post-install passes.
package bootstrap

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aosc-dev/aoscbootstrap/internal/cache"
	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/aosc-dev/aoscbootstrap/internal/httpx"
	"github.com/aosc-dev/aoscbootstrap/pkg/apt"
	"github.com/aosc-dev/aoscbootstrap/pkg/apt/keyring"
	"github.com/aosc-dev/aoscbootstrap/pkg/bootstrap/config"
	"github.com/aosc-dev/aoscbootstrap/pkg/fetch"
	"github.com/aosc-dev/aoscbootstrap/pkg/install"
	"github.com/aosc-dev/aoscbootstrap/pkg/solver"
)

// Options collects everything a run needs. CLI parsing and progress
// rendering live with the caller.
type Options struct {
	Branch string
	Target string
	Mirror string
	Arch   string

	Config       *config.Config
	Includes     []string
	IncludeFiles []string
	Scripts      []string

	RunCleanup      bool
	StopAfterStage1 bool
	ExportTar       string
	ExportSquashfs  string

	Parallel int
	Progress fetch.Progress
	// OnPlan is invoked once after solving, before any download.
	OnPlan func(*solver.InstallPlan)

	// Verifier overrides the keyring-backed signature verifier; tests
	// inject fakes here.
	Verifier apt.Verifier
	// HTTP overrides the metadata client.
	HTTP httpx.BasicClient
	// Client overrides the archive download client.
	Client *http.Client
}

func (o *Options) cacheDir() string {
	return filepath.Join(o.Target, "var/cache/aoscbootstrap")
}

// Solve runs the metadata and solving phases only: fetch and verify the
// release, load the indices into a solver pool, and solve the seed job
// into an install plan.
func Solve(ctx context.Context, opts *Options) (*solver.InstallPlan, error) {
	seeds, err := CollectSeeds(opts.Includes, opts.IncludeFiles)
	if err != nil {
		return nil, err
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier, err = keyring.Load(opts.Config.MaintainerKeyring)
		if err != nil {
			return nil, errkind.Wrap(errkind.Config, err, opts.Config.MaintainerKeyring)
		}
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = httpx.NewCachedClient(
			&httpx.WithUserAgent{BasicClient: http.DefaultClient, UserAgent: "aoscbootstrap"},
			&cache.CoalescingMemoryCache{})
	}
	client := &apt.Client{HTTP: httpClient, Verifier: verifier}
	repo := apt.NewRepository(opts.Mirror, opts.Branch, opts.Arch, opts.Config.ComponentsFor(opts.Branch))

	log.Printf("fetching release metadata for %s from %s", opts.Branch, opts.Mirror)
	rel, err := client.FetchRelease(ctx, repo)
	if err != nil {
		return nil, err
	}
	indices, err := client.FetchIndices(ctx, repo, rel)
	if err != nil {
		return nil, err
	}

	pool := solver.NewPool(opts.Arch)
	for _, idx := range indices {
		sub := pool.NewRepo(idx.Component+"/"+idx.Architecture, 0, repo)
		if err := sub.AddIndex(idx); err != nil {
			return nil, errkind.Wrap(errkind.MalformedIndex, err, idx.Component)
		}
	}
	log.Printf("solving for %d seed packages over %d candidates", len(seeds), pool.Size())
	job := pool.NewJob(seeds, opts.Config.InstallRecommends)
	tx, err := pool.Solve(job)
	if err != nil {
		if unsolvable, ok := err.(*solver.Unsolvable); ok {
			return nil, errkind.Wrap(errkind.Unsolvable, unsolvable, "")
		}
		return nil, err
	}
	plan, err := solver.NewPlan(tx, job)
	if err != nil {
		return nil, err
	}
	log.Printf("plan contains %d packages", len(plan.Entries))
	return plan, nil
}

// Run executes the whole bootstrap.
func Run(ctx context.Context, opts *Options) error {
	plan, err := Solve(ctx, opts)
	if err != nil {
		return err
	}
	if opts.OnPlan != nil {
		opts.OnPlan(plan)
	}

	stage, err := ReadStage(opts.Target)
	if err != nil {
		return err
	}
	resume := stage >= StageExtract
	if resume {
		log.Printf("resuming at stage %d boundary", stage)
	}

	if !resume {
		// Stage 0: target skeleton.
		if err := install.CreateSkeleton(opts.Target); err != nil {
			return errkind.Wrap(errkind.Extraction, err, opts.Target)
		}
		if err := WriteStage(opts.Target, StageSkeleton); err != nil {
			return err
		}
	}

	// All downloads complete before stage 1; unpack never interleaves
	// with fetching.
	fetcher := &fetch.Fetcher{Client: opts.Client, Parallel: opts.Parallel, Progress: opts.Progress}
	if err := fetcher.FetchPlan(ctx, plan, opts.cacheDir()); err != nil {
		return err
	}

	if !resume {
		// Stage 1: direct extraction of the bootstrap subset, archive
		// cache for the rest.
		set := install.BootstrapSet(plan)
		log.Printf("extracting %d bootstrap packages directly", len(set))
		if err := install.ExtractBootstrapSet(opts.Target, opts.cacheDir(), plan, set); err != nil {
			return err
		}
		if err := WriteStage(opts.Target, StageExtract); err != nil {
			return err
		}
	}

	if opts.StopAfterStage1 {
		log.Printf("stopping after stage 1 as requested")
		return ClearStage(opts.Target)
	}

	if err := runChrootStages(opts, plan); err != nil {
		return err
	}

	// Exports run after the mounts are released.
	if opts.ExportTar != "" {
		if err := install.ExportTar(opts.Target, opts.ExportTar); err != nil {
			return err
		}
	}
	if opts.ExportSquashfs != "" {
		if err := install.ExportSquashfs(opts.Target, opts.ExportSquashfs); err != nil {
			return err
		}
	}
	return ClearStage(opts.Target)
}

// runChrootStages covers stages 2-5: everything that happens with the
// bind mounts held. The mounts are released on every exit path,
// including panics.
func runChrootStages(opts *Options, plan *solver.InstallPlan) (err error) {
	mounts, err := install.MountAll(opts.Target)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := mounts.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	if err := WriteStage(opts.Target, StageMounts); err != nil {
		return err
	}

	// Stage 3: unpack the cached archives (everything outside the
	// bootstrap set) in plan order, then configure pending.
	set := install.BootstrapSet(plan)
	if err := install.RunDpkgPhase(opts.Target, plan, set); err != nil {
		return err
	}
	if err := WriteStage(opts.Target, StageDpkg); err != nil {
		return err
	}

	// Stage 4: user scripts.
	if err := install.RunScripts(opts.Target, opts.Scripts, opts.Branch, opts.Arch); err != nil {
		return err
	}
	if err := WriteStage(opts.Target, StageScripts); err != nil {
		return err
	}

	// Stage 5: optional cleanup.
	if opts.RunCleanup {
		if err := os.RemoveAll(opts.cacheDir()); err != nil {
			return errkind.Wrap(errkind.Script, err, opts.cacheDir())
		}
		if err := install.Cleanup(opts.Target); err != nil {
			return err
		}
	}
	return WriteStage(opts.Target, StageFinalize)
}
