// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"malloy/cli/internal/config"
	apperrors "malloy/cli/internal/errors"

	"github.com/pterm/pterm"
)

func TestInputFlags(t *testing.T) {
	abs := func(p string) string {
		a, err := filepath.Abs(p)
		if err != nil {
			t.Fatal(err)
		}
		return a
	}

	tests := []struct {
		name      string
		flags     inputFlags
		args      []string
		stdin     string
		wantEntry string
		wantSrc   string
		wantBase  string
		wantErr   bool
	}{
		{name: "file and query", flags: inputFlags{query: "run: f -> {select: *}"}, args: []string{"flights.malloy"}, wantEntry: abs("flights.malloy")},
		{name: "named query", flags: inputFlags{namedQuery: "by_carrier"}, args: []string{"m.malloy"}, wantEntry: abs("m.malloy")},
		{name: "inline source", flags: inputFlags{source: "source: s is x.table('t')", query: "run: s -> {select: *}"}, wantSrc: "source: s is x.table('t')"},
		{name: "source from stdin", flags: inputFlags{source: "-", query: "run: s -> {select: *}"}, stdin: "source: s is x.table('t')\n", wantSrc: "source: s is x.table('t')\n"},
		{name: "base dir", flags: inputFlags{query: "q", baseDir: "models"}, args: []string{"a.malloy"}, wantEntry: abs("a.malloy"), wantBase: abs("models")},
		{name: "empty stdin", flags: inputFlags{source: "-", query: "q"}, stdin: "  ", wantErr: true},
		{name: "no model", flags: inputFlags{query: "q"}, wantErr: true},
		{name: "file and source", flags: inputFlags{source: "x", query: "q"}, args: []string{"a.malloy"}, wantErr: true},
		{name: "no query", args: []string{"a.malloy"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := tt.flags.input(tt.args, strings.NewReader(tt.stdin))
			if (err != nil) != tt.wantErr {
				t.Fatalf("input() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !apperrors.IsKind(err, apperrors.InvalidInput) {
					t.Errorf("input() error kind = %v, want %v", apperrors.KindOf(err), apperrors.InvalidInput)
				}
				return
			}
			if in.EntryPath != tt.wantEntry || in.Source != tt.wantSrc || in.BaseDir != tt.wantBase {
				t.Errorf("input() = %+v, want entry %q source %q base %q", in, tt.wantEntry, tt.wantSrc, tt.wantBase)
			}
		})
	}
}

// execute runs the root command with args against the config at path.
func execute(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	addHomeDir, addDefault, addNoVerify, addPlain = "", false, false, false
	flagConfigPath, flagLogLevel, flagCompiler, flagMetricsAddr = "", "", "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", path}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConnectionsLifecycle(t *testing.T) {
	pterm.DisableStyling()
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	db := "sqlite://" + filepath.Join(dir, "flights.db")

	if _, err := execute(t, path, "connections", "add", "local", db, "--plain"); err != nil {
		t.Fatalf("connections add error = %v", err)
	}
	if _, err := execute(t, path, "connections", "add", "scratch", ":memory:", "--plain", "--default"); err != nil {
		t.Fatalf("connections add error = %v", err)
	}

	c, err := config.LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Connections) != 2 || c.Connections[0].DSN != db {
		t.Fatalf("Connections = %+v", c.Connections)
	}
	if c.DefaultConnection != "scratch" {
		t.Errorf("DefaultConnection = %q, want scratch", c.DefaultConnection)
	}

	if _, err := execute(t, path, "connections", "default", "local"); err != nil {
		t.Fatalf("connections default error = %v", err)
	}
	if _, err := execute(t, path, "connections", "default", "nope"); !apperrors.IsKind(err, apperrors.ConnectionNotFound) {
		t.Errorf("connections default nope error = %v, want %v", err, apperrors.ConnectionNotFound)
	}

	if _, err := execute(t, path, "connections", "test", "local"); err != nil {
		t.Errorf("connections test error = %v", err)
	}

	if _, err := execute(t, path, "connections", "remove", "scratch"); err != nil {
		t.Fatalf("connections remove error = %v", err)
	}
	c, err = config.LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Connections) != 1 || c.DefaultConnection != "local" {
		t.Errorf("after remove = %+v", c)
	}
}

func TestConnectionsAddRejectsBadDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)
	if _, err := execute(t, path, "connections", "add", "x", "mongodb://localhost/db", "--plain"); err == nil {
		t.Error("connections add error = nil, want an invalid DSN error")
	}
}

func TestConnectionsListEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)
	out, err := execute(t, path, "connections", "list")
	if err != nil {
		t.Fatalf("connections list error = %v", err)
	}
	if !strings.Contains(out, "No connections configured") {
		t.Errorf("connections list = %q", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, filepath.Join(t.TempDir(), config.FileName), "version")
	if err != nil {
		t.Fatal(err)
	}
	if want := "malloy " + Version; !strings.Contains(out, want) {
		t.Errorf("version = %q, want %q", out, want)
	}
}
