// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package mysql provides a MySQL connection backed by github.com/go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"strings"

	"malloy/cli/internal/connection"
	"malloy/cli/internal/connection/sqldb"

	driver "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

var types = connection.TypeMap{
	"VARCHAR":           connection.String,
	"CHAR":              connection.String,
	"TEXT":              connection.String,
	"TINYTEXT":          connection.String,
	"MEDIUMTEXT":        connection.String,
	"LONGTEXT":          connection.String,
	"ENUM":              connection.String,
	"TIME":              connection.String,
	"INT":               connection.Integer,
	"INTEGER":           connection.Integer,
	"BIGINT":            connection.Integer,
	"SMALLINT":          connection.Integer,
	"TINYINT":           connection.Integer,
	"MEDIUMINT":         connection.Integer,
	"YEAR":              connection.Integer,
	"UNSIGNED INT":      connection.Integer,
	"UNSIGNED BIGINT":   connection.Integer,
	"UNSIGNED SMALLINT": connection.Integer,
	"UNSIGNED TINYINT":  connection.Integer,
	"DECIMAL":           connection.Float,
	"DOUBLE":            connection.Float,
	"FLOAT":             connection.Float,
	"BOOLEAN":           connection.Boolean,
	"DATE":              connection.Date,
	"DATETIME":          connection.Timestamp,
	"TIMESTAMP":         connection.Timestamp,
}

type dialect struct{}

func (dialect) Name() string              { return "mysql" }
func (dialect) Types() connection.TypeMap { return types }
func (dialect) DescribeSQL(query string) string {
	return "SELECT * FROM (" + query + ") AS malloy_block LIMIT 0"
}

const columnsQuery = `
	SELECT column_name, data_type, column_type
	FROM information_schema.columns
	WHERE table_schema = COALESCE(?, DATABASE()) AND table_name = ?
	ORDER BY ordinal_position`

// TableColumns reads information_schema. A bare table name resolves in the
// connection's current database.
func (dialect) TableColumns(ctx context.Context, db *sql.DB, path string) ([]connection.Column, error) {
	schema, table := splitPath(path)
	rows, err := db.QueryContext(ctx, columnsQuery, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []connection.Column
	for rows.Next() {
		var name, dataType, columnType string
		if err := rows.Scan(&name, &dataType, &columnType); err != nil {
			return nil, err
		}
		cols = append(cols, connection.Column{Name: name, Type: columnTypeName(dataType, columnType)})
	}
	return cols, rows.Err()
}

// splitPath returns a nil schema for unqualified tables so the query falls
// back to DATABASE().
func splitPath(path string) (any, string) {
	if schema, table, ok := strings.Cut(path, "."); ok {
		return schema, table
	}
	return nil, path
}

// columnTypeName treats tinyint(1) as boolean, following the MySQL convention.
func columnTypeName(dataType, columnType string) string {
	if strings.EqualFold(columnType, "tinyint(1)") {
		return "BOOLEAN"
	}
	return dataType
}

// Open connects using a go-sql-driver DSN (user:pass@tcp(host:3306)/db).
func Open(name, dsn string, log zerolog.Logger) (*sqldb.Conn, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	conn, err := driver.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sqldb.New(name, sql.OpenDB(conn), dialect{}, log), nil
}
