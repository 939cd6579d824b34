// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/aosc-dev/aoscbootstrap/pkg/solver"
	"github.com/pkg/errors"
)

// DpkgScript generates the stage-3 shell script run inside the chroot:
// unpack every cached archive in plan order, then configure everything
// pending in one pass. Configure ordering is dpkg's own concern.
func DpkgScript(plan *solver.InstallPlan, set map[string]bool) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\nset -e\nexport DEBIAN_FRONTEND=noninteractive\n")
	for _, entry := range plan.Entries {
		if set[entry.Name] {
			continue
		}
		fmt.Fprintf(&b, "dpkg --unpack --force-depends %q\n", "/"+ArchiveCacheDir+"/"+entry.Basename())
	}
	b.WriteString("dpkg --configure --pending --force-configure-any --force-depends\n")
	return b.String()
}

// RunInChroot executes a shell script inside the target root with the
// given extra environment. The script is staged under the target's /tmp
// and removed afterwards; stdout and stderr are inherited.
func RunInChroot(root, name, script string, env []string) error {
	staged := filepath.Join(root, "tmp", name)
	if err := os.WriteFile(staged, []byte(script), 0o755); err != nil {
		return errkind.Wrap(errkind.Chroot, err, staged)
	}
	defer os.Remove(staged)
	cmd := exec.Command("chroot", root, "/bin/bash", "-e", "/tmp/"+name)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), env...)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return errkind.ScriptFailure(name, exitErr.ExitCode())
		}
		return errkind.Wrap(errkind.Chroot, err, root)
	}
	return nil
}

// RunDpkgPhase runs the generated unpack+configure script (stage 3).
func RunDpkgPhase(root string, plan *solver.InstallPlan, set map[string]bool) error {
	err := RunInChroot(root, "bootstrap-dpkg.sh", DpkgScript(plan, set), nil)
	if err != nil {
		var e *errkind.Error
		if errors.As(err, &e) && e.Kind == errkind.Script {
			// A failing dpkg run is a chroot-phase failure, not a
			// user-script failure.
			return errkind.Wrap(errkind.Chroot, e.Err, "dpkg")
		}
	}
	return err
}
