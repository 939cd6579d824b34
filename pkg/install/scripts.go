// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
)

// RunScripts executes the user-supplied post-install scripts inside the
// chroot, in the order given. Each runs in a fresh shell with BRANCH and
// ARCH in its environment; the first non-zero exit aborts the run.
func RunScripts(root string, scripts []string, branch, arch string) error {
	env := []string{"BRANCH=" + branch, "ARCH=" + arch}
	for i, script := range scripts {
		body, err := os.ReadFile(script)
		if err != nil {
			return errkind.Wrap(errkind.Script, err, script)
		}
		log.Printf("running post-install script %s", filepath.Base(script))
		name := fmt.Sprintf("postinst-%02d-%s", i, filepath.Base(script))
		if err := RunInChroot(root, name, string(body), env); err != nil {
			return err
		}
	}
	return nil
}
