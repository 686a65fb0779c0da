// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package xdg provides helpers to resolve XDG Base Directory paths for malloy.
// It implements the XDG Base Directory specification for determining appropriate
// locations for configuration files and cached state on Unix-like systems,
// falling back to the traditional home-directory locations when the XDG
// environment variables are not set.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// AppName is the directory name used under each XDG base directory.
const AppName = "malloy"

// ConfigDir returns the XDG config directory for malloy.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.config/malloy when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory for malloy.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.local/state/malloy when XDG_STATE_HOME is unset.
func StateDir() (string, error) {
	return appDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func appDir(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	dir := filepath.Join(base, AppName)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}
