// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the bootstrap TOML configuration.
package config

import (
	"os"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Branch describes one release line of the distribution.
type Branch struct {
	BaseComponents []string `toml:"base_components"`
	Extra          []string `toml:"extra"`
}

// Config is the top-level TOML document. Unknown keys are rejected.
type Config struct {
	MaintainerKeyring string            `toml:"maintainer_keyring"`
	Components        []string          `toml:"components"`
	InstallRecommends bool              `toml:"install_recommends"`
	Branches          map[string]Branch `toml:"branches"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.Config, err, path)
	}
	defer f.Close()
	decoder := toml.NewDecoder(f)
	decoder.DisallowUnknownFields()
	cfg := &Config{}
	if err := decoder.Decode(cfg); err != nil {
		return nil, errkind.Wrap(errkind.Config, err, path)
	}
	if cfg.MaintainerKeyring == "" {
		return nil, errkind.Wrap(errkind.Config, errors.New("maintainer_keyring is required"), path)
	}
	if _, err := os.Stat(cfg.MaintainerKeyring); err != nil {
		return nil, errkind.Wrap(errkind.Config, errors.Wrap(err, "maintainer_keyring"), path)
	}
	return cfg, nil
}

// ComponentsFor resolves the component list for a branch: the branch's
// base_components plus extra when defined, otherwise the global
// components, otherwise {main}.
func (c *Config) ComponentsFor(branch string) []string {
	if b, ok := c.Branches[branch]; ok && len(b.BaseComponents) > 0 {
		return append(append([]string{}, b.BaseComponents...), b.Extra...)
	}
	if len(c.Components) > 0 {
		return c.Components
	}
	return []string{"main"}
}
