// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import "strings"

// SQLiteResolver handles SQLite database paths.
type SQLiteResolver struct{}

// NewSQLiteResolver creates a new SQLite resolver
func NewSQLiteResolver() *SQLiteResolver {
	return &SQLiteResolver{}
}

// Parse accepts sqlite://path, sqlite:path, file: URIs, :memory: and bare
// paths. The path is kept in Database.
func (r *SQLiteResolver) Parse(dsn string) (*DSNInfo, error) {
	path := strings.TrimSpace(dsn)
	if path == "" {
		return nil, NewParseError(dsn, "empty DSN", "provide a database file path")
	}
	lower := strings.ToLower(path)
	switch {
	case strings.HasPrefix(lower, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(lower, "sqlite:"):
		path = path[len("sqlite:"):]
	}
	if path == "" {
		return nil, NewParseError(dsn, "missing database path", "format should be sqlite://path/to/file.db")
	}
	return &DSNInfo{
		Type:     DBTypeSQLite,
		Database: path,
		Params:   map[string]string{},
		Original: dsn,
	}, nil
}

// Normalize returns the path or file: URI go-sqlite3 opens.
func (r *SQLiteResolver) Normalize(info *DSNInfo) (string, error) {
	if info == nil {
		return "", NewParseError("", "nil DSN info", "")
	}
	return info.Database, nil
}

// Validate checks the DSN names a database.
func (r *SQLiteResolver) Validate(dsn string) error {
	_, err := r.Parse(dsn)
	return err
}
