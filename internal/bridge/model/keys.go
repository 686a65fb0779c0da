// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package model

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultConnection is the connection prefix the compiler uses when a source
// does not name a connection. It resolves to the registry's default.
const DefaultConnection = "default_connection"

// TableKey is a connection-qualified table reference: "<connection>:<path>".
type TableKey struct {
	// Raw is the key exactly as the compiler sent it.
	Raw        string
	Connection string
	Path       string
}

// ParseTableKey splits a key at its first ':'.
func ParseTableKey(raw string) (TableKey, error) {
	conn, path, ok := strings.Cut(raw, ":")
	if !ok || conn == "" || path == "" {
		return TableKey{}, fmt.Errorf("malformed table key %q: want <connection>:<table>", raw)
	}
	return TableKey{Raw: raw, Connection: conn, Path: path}, nil
}

// IsDefault reports whether the key defers to the default connection.
func (k TableKey) IsDefault() bool { return k.Connection == DefaultConnection }

var sqlBlockName = regexp.MustCompile(`^md5:/(.+)//.+$`)

// ConnectionFromSQLBlockName extracts the connection name from a synthetic SQL
// block name of the form "md5:/<connection>//<hash>".
func ConnectionFromSQLBlockName(name string) (string, error) {
	m := sqlBlockName.FindStringSubmatch(name)
	if m == nil {
		return "", fmt.Errorf("malformed sql block name %q: want md5:/<connection>//<hash>", name)
	}
	return m[1], nil
}
