// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/google/go-cmp/cmp"
)

func write(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	keyring := filepath.Join(dir, "trusted.gpg")
	if err := os.WriteFile(keyring, []byte("key material"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "bootstrap.toml")
	if err := os.WriteFile(path, []byte("maintainer_keyring = \""+keyring+"\"\n"+body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, `components = ["main"]

[branches.stable]
base_components = ["main"]
extra = ["bsp"]

[branches.testing]
base_components = ["main", "universe"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.InstallRecommends {
		t.Error("install_recommends should default to false")
	}
	if diff := cmp.Diff([]string{"main", "bsp"}, cfg.ComponentsFor("stable")); diff != "" {
		t.Errorf("ComponentsFor(stable) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"main", "universe"}, cfg.ComponentsFor("testing")); diff != "" {
		t.Errorf("ComponentsFor(testing) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"main"}, cfg.ComponentsFor("unknown-branch")); diff != "" {
		t.Errorf("ComponentsFor(unknown) mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := write(t, "mirrors = [\"https://example.org\"]\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() accepted an unknown key")
	}
	if got := errkind.Of(err); got != errkind.Config {
		t.Errorf("error kind = %q, want config", got)
	}
}

func TestLoadMissingKeyring(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bootstrap.toml")
	if err := os.WriteFile(path, []byte("maintainer_keyring = \"/does/not/exist\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted a missing keyring path")
	}
}
