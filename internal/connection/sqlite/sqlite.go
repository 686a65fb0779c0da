// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlite provides a SQLite connection backed by github.com/mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"malloy/cli/internal/connection"
	"malloy/cli/internal/connection/sqldb"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

var types = connection.TypeMap{
	"TEXT":      connection.String,
	"VARCHAR":   connection.String,
	"CHAR":      connection.String,
	"CLOB":      connection.String,
	"INTEGER":   connection.Integer,
	"INT":       connection.Integer,
	"BIGINT":    connection.Integer,
	"SMALLINT":  connection.Integer,
	"TINYINT":   connection.Integer,
	"REAL":      connection.Float,
	"DOUBLE":    connection.Float,
	"FLOAT":     connection.Float,
	"NUMERIC":   connection.Float,
	"DECIMAL":   connection.Float,
	"BOOLEAN":   connection.Boolean,
	"DATE":      connection.Date,
	"DATETIME":  connection.Timestamp,
	"TIMESTAMP": connection.Timestamp,
}

type dialect struct{}

func (dialect) Name() string                    { return "sqlite" }
func (dialect) Types() connection.TypeMap       { return types }
func (dialect) DescribeSQL(query string) string { return "SELECT * FROM (" + query + ") LIMIT 0" }

// TableColumns reads PRAGMA table_info. A "schema.table" path selects an
// attached database.
func (dialect) TableColumns(ctx context.Context, db *sql.DB, path string) ([]connection.Column, error) {
	pragma := "PRAGMA table_info(" + sqldb.QuoteIdent(path, '"') + ")"
	if schema, table, ok := strings.Cut(path, "."); ok {
		pragma = "PRAGMA " + sqldb.QuoteIdent(schema, '"') + ".table_info(" + sqldb.QuoteIdent(table, '"') + ")"
	}
	rows, err := db.QueryContext(ctx, pragma)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []connection.Column
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, connection.Column{Name: name, Type: typ})
	}
	return cols, rows.Err()
}

// Open opens the database at path. Relative paths are resolved against
// homeDir when it is set.
func Open(name, path, homeDir string, log zerolog.Logger) (*sqldb.Conn, error) {
	if path != Memory && homeDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(homeDir, path)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if path == Memory {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	return sqldb.New(name, db, dialect{}, log), nil
}
