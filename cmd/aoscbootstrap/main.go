// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Command aoscbootstrap materializes a distribution branch into a
// target directory: it fetches and verifies repository metadata, solves
// the seed set into an install plan, downloads and verifies the
// archives, and drives dpkg inside the new root.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/aosc-dev/aoscbootstrap/pkg/bootstrap"
	"github.com/aosc-dev/aoscbootstrap/pkg/bootstrap/config"
	"github.com/aosc-dev/aoscbootstrap/pkg/fetch"
	"github.com/aosc-dev/aoscbootstrap/pkg/solver"
	"github.com/cheggaaa/pb"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const defaultMirror = "https://repo.aosc.io/debs"

var flags struct {
	arch           string
	configPath     string
	includes       []string
	includeFiles   []string
	scripts        []string
	cleanup        bool
	stage1Only     bool
	exportTar      string
	exportSquashfs string
	parallel       int
}

var rootCmd = &cobra.Command{
	Use:           "aoscbootstrap <branch> <target> [mirror-url]",
	Short:         "Bootstrap a distribution release into a directory",
	Args:          cobra.RangeArgs(2, 3),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		mirror := defaultMirror
		if len(args) == 3 {
			mirror = args[2]
		}
		cfg, err := config.Load(flags.configPath)
		if err != nil {
			return err
		}
		opts := &bootstrap.Options{
			Branch:          args[0],
			Target:          args[1],
			Mirror:          mirror,
			Arch:            flags.arch,
			Config:          cfg,
			Includes:        flags.includes,
			IncludeFiles:    flags.includeFiles,
			Scripts:         flags.scripts,
			RunCleanup:      flags.cleanup,
			StopAfterStage1: flags.stage1Only,
			ExportTar:       flags.exportTar,
			ExportSquashfs:  flags.exportSquashfs,
			Parallel:        flags.parallel,
		}
		bar, progress := fetchProgress()
		opts.Progress = progress
		opts.OnPlan = func(plan *solver.InstallPlan) {
			bar.Total = int64(len(plan.Entries))
			bar.Start()
		}
		defer bar.Finish()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return bootstrap.Run(ctx, opts)
	},
}

// fetchProgress bridges the fetcher's callback onto a terminal progress
// bar counting completed archives. The bar's total is set once the plan
// is known.
func fetchProgress() (*pb.ProgressBar, fetch.Progress) {
	bar := pb.New(0)
	bar.Output = os.Stderr
	bar.ShowTimeLeft = true
	return bar, func(entry solver.PlanEntry, n int64, done bool) {
		if done {
			bar.Increment()
		}
	}
}

func init() {
	rootCmd.Flags().StringVar(&flags.arch, "arch", "", "target architecture (required)")
	rootCmd.Flags().StringVar(&flags.configPath, "config", "", "path to the bootstrap TOML configuration (required)")
	rootCmd.Flags().StringArrayVar(&flags.includes, "include", nil, "seed packages, space-separated (repeatable)")
	rootCmd.Flags().StringArrayVar(&flags.includeFiles, "include-files", nil, "file with one seed package per line (repeatable)")
	rootCmd.Flags().StringArrayVarP(&flags.scripts, "script", "s", nil, "post-install script run inside the chroot (repeatable)")
	rootCmd.Flags().BoolVarP(&flags.cleanup, "cleanup", "x", false, "remove files not owned by dpkg before export")
	rootCmd.Flags().BoolVarP(&flags.stage1Only, "stage1", "1", false, "stop after stage 1 (no chroot execution)")
	rootCmd.Flags().StringVar(&flags.exportTar, "export-tar", "", "write an xz-compressed tarball of the finished root")
	rootCmd.Flags().StringVar(&flags.exportSquashfs, "export-squashfs", "", "write a squashfs image of the finished root")
	rootCmd.Flags().IntVar(&flags.parallel, "parallel", 0, "download workers (default: CPU count, capped)")
	rootCmd.MarkFlagRequired("arch")
	rootCmd.MarkFlagRequired("config")
}

func main() {
	log.SetFlags(log.Ltime)
	if err := rootCmd.Execute(); err != nil {
		kind := errkind.Of(err)
		if kind == "" {
			// Flag and argument errors from cobra are usage problems.
			kind = errkind.Config
			err = errkind.Wrap(errkind.Config, err, "")
		}
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error (%s): ", kind)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errkind.ExitCode(err))
	}
}
