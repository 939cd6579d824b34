// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aosc-dev/aoscbootstrap/pkg/install"
	"github.com/pkg/errors"
)

// StageMarker is the sentinel file kept at the target root while a run
// is in progress. It records the highest completed stage and is removed
// on success.
const StageMarker = install.StageMarker

// Stage numbers follow the installer's stage table. Only the boundary
// between stage 0 and stage 1 is resumable; unpacked-but-unconfigured
// state is fragile, so mid-plan resumption is deliberately unsupported.
const (
	StageSkeleton  = 0
	StageExtract   = 1
	StageMounts    = 2
	StageDpkg      = 3
	StageScripts   = 4
	StageFinalize  = 5
	stageNotStarted = -1
)

func markerPath(target string) string {
	return filepath.Join(target, StageMarker)
}

// ReadStage returns the highest completed stage recorded at the target,
// or -1 when no run is in progress.
func ReadStage(target string) (int, error) {
	body, err := os.ReadFile(markerPath(target))
	if os.IsNotExist(err) {
		return stageNotStarted, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "reading stage marker")
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, errors.Wrap(err, "malformed stage marker")
	}
	return n, nil
}

// WriteStage records stage as completed.
func WriteStage(target string, stage int) error {
	return os.WriteFile(markerPath(target), []byte(strconv.Itoa(stage)+"\n"), 0o644)
}

// ClearStage removes the sentinel; called on success.
func ClearStage(target string) error {
	err := os.Remove(markerPath(target))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
