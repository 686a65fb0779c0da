// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqldb implements connection.Connection over database/sql. Backends
// supply a Dialect describing how to list a table's columns and how to name
// result column types; everything else is shared.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"malloy/cli/internal/connection"

	"github.com/rs/zerolog"
)

// Dialect adapts a database/sql backend.
type Dialect interface {
	// Name is the dialect reported in struct definitions.
	Name() string
	Types() connection.TypeMap
	// TableColumns lists the columns of the table at path.
	TableColumns(ctx context.Context, db *sql.DB, path string) ([]connection.Column, error)
	// DescribeSQL wraps sql so that executing it returns no rows.
	DescribeSQL(sql string) string
}

// Conn is a named database/sql connection.
type Conn struct {
	name    string
	db      *sql.DB
	dialect Dialect
	log     zerolog.Logger
}

// New wraps an open database handle.
func New(name string, db *sql.DB, d Dialect, log zerolog.Logger) *Conn {
	return &Conn{
		name:    name,
		db:      db,
		dialect: d,
		log:     log.With().Str("connection", name).Str("dialect", d.Name()).Logger(),
	}
}

func (c *Conn) Name() string { return c.name }

// DB returns the underlying handle.
func (c *Conn) DB() *sql.DB { return c.db }

func (c *Conn) describer() connection.Describer {
	return connection.Describer{Dialect: c.dialect.Name(), ConnectionName: c.name, Types: c.dialect.Types()}
}

// SchemaForTables describes each table from the dialect's catalog.
func (c *Conn) SchemaForTables(ctx context.Context, tables []connection.TableRef) (connection.SchemaMap, error) {
	out := make(connection.SchemaMap, len(tables))
	d := c.describer()
	for _, t := range tables {
		c.log.Debug().Str("table", t.Path).Msg("fetching table schema")
		cols, err := c.dialect.TableColumns(ctx, c.db, t.Path)
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", t.Path, err)
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("describe %s: table not found", t.Path)
		}
		def, err := d.Table(t.Path, t.Path, cols)
		if err != nil {
			return nil, err
		}
		entry, err := connection.Entry(def)
		if err != nil {
			return nil, err
		}
		out[t.Key] = entry
	}
	return out, nil
}

// SchemaForSQLBlock runs the block with no rows and reads its column types.
func (c *Conn) SchemaForSQLBlock(ctx context.Context, name, query string) (connection.SchemaEntry, error) {
	rows, err := c.db.QueryContext(ctx, c.dialect.DescribeSQL(query))
	if err != nil {
		return nil, fmt.Errorf("describe sql block %s: %w", name, err)
	}
	defer rows.Close()

	cts, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]connection.Column, len(cts))
	for i, ct := range cts {
		cols[i] = connection.Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}
	def, err := c.describer().SQLBlock(name, cols)
	if err != nil {
		return nil, err
	}
	return connection.Entry(def)
}

// RunQuery executes query and streams its rows.
func (c *Conn) RunQuery(ctx context.Context, query string) (connection.Rows, error) {
	c.log.Debug().Str("sql", query).Msg("running query")
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	cts, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &Rows{rows: rows, types: cts}, nil
}

// Ping verifies the database is reachable.
func (c *Conn) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *Conn) Close() error { return c.db.Close() }

// Rows adapts *sql.Rows to connection.Rows.
type Rows struct {
	rows  *sql.Rows
	types []*sql.ColumnType
	err   error
}

func (r *Rows) Columns() []string {
	cols := make([]string, len(r.types))
	for i, ct := range r.types {
		cols[i] = ct.Name()
	}
	return cols
}

func (r *Rows) Next() bool { return r.rows.Next() }

// Values scans the current row. Text returned as bytes is converted to string;
// binary columns stay as bytes.
func (r *Rows) Values() ([]any, error) {
	vals := make([]any, len(r.types))
	ptrs := make([]any, len(r.types))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		r.err = err
		return nil, err
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok && !isBinary(r.types[i].DatabaseTypeName()) {
			vals[i] = string(b)
		}
	}
	return vals, nil
}

func (r *Rows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

func (r *Rows) Close() { _ = r.rows.Close() }

func isBinary(typeName string) bool {
	t := strings.ToUpper(typeName)
	return strings.Contains(t, "BLOB") || strings.Contains(t, "BINARY")
}

// QuoteIdent quotes an identifier with q, doubling embedded quotes.
func QuoteIdent(name string, q byte) string {
	s := string(q)
	return s + strings.ReplaceAll(name, s, s+s) + s
}
