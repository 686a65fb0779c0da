// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package postgres provides a PostgreSQL connection over a pgx connection pool.
//
// Table schemas come from information_schema.columns; unqualified table names
// resolve in the public schema. SQL block schemas are read from the field
// descriptions of a prepared statement, so the block is never executed.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"malloy/cli/internal/connection"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const dialectName = "postgres"

var types = connection.TypeMap{
	"CHARACTER VARYING":           connection.String,
	"VARCHAR":                     connection.String,
	"CHARACTER":                   connection.String,
	"BPCHAR":                      connection.String,
	"TEXT":                        connection.String,
	"NAME":                        connection.String,
	"UUID":                        connection.String,
	"TIME WITHOUT TIME ZONE":      connection.String,
	"TIME":                        connection.String,
	"SMALLINT":                    connection.Integer,
	"INTEGER":                     connection.Integer,
	"BIGINT":                      connection.Integer,
	"INT2":                        connection.Integer,
	"INT4":                        connection.Integer,
	"INT8":                        connection.Integer,
	"OID":                         connection.Integer,
	"REAL":                        connection.Float,
	"DOUBLE PRECISION":            connection.Float,
	"NUMERIC":                     connection.Float,
	"FLOAT4":                      connection.Float,
	"FLOAT8":                      connection.Float,
	"BOOLEAN":                     connection.Boolean,
	"BOOL":                        connection.Boolean,
	"DATE":                        connection.Date,
	"TIMESTAMP WITHOUT TIME ZONE": connection.Timestamp,
	"TIMESTAMP WITH TIME ZONE":    connection.Timestamp,
	"TIMESTAMP":                   connection.Timestamp,
	"TIMESTAMPTZ":                 connection.Timestamp,
}

// Conn is a named PostgreSQL connection.
type Conn struct {
	name string
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open creates a pool for dsn. The pool connects lazily; use Ping to verify.
func Open(ctx context.Context, name, dsn string, log zerolog.Logger) (*Conn, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return New(name, pool, log), nil
}

// New wraps an existing pool.
func New(name string, pool *pgxpool.Pool, log zerolog.Logger) *Conn {
	return &Conn{
		name: name,
		pool: pool,
		log:  log.With().Str("connection", name).Str("dialect", dialectName).Logger(),
	}
}

func (c *Conn) Name() string { return c.name }

func (c *Conn) describer() connection.Describer {
	return connection.Describer{Dialect: dialectName, ConnectionName: c.name, Types: types}
}

const columnsQuery = `
	SELECT column_name, data_type, udt_name
	FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2
	ORDER BY ordinal_position`

// SchemaForTables describes each table from information_schema.
func (c *Conn) SchemaForTables(ctx context.Context, tables []connection.TableRef) (connection.SchemaMap, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	out := make(connection.SchemaMap, len(tables))
	d := c.describer()
	for _, t := range tables {
		schema, table := parseTableName(t.Path)
		c.log.Debug().Str("schema", schema).Str("table", table).Msg("fetching table schema")

		rows, err := conn.Query(ctx, columnsQuery, schema, table)
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", t.Path, err)
		}
		var cols []connection.Column
		for rows.Next() {
			var name, dataType, udt string
			if err := rows.Scan(&name, &dataType, &udt); err != nil {
				rows.Close()
				return nil, err
			}
			cols = append(cols, connection.Column{Name: name, Type: columnTypeName(dataType, udt)})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("describe %s: %w", t.Path, err)
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("describe %s: table not found", t.Path)
		}

		def, err := d.Table(t.Path, t.Path, cols)
		if err != nil {
			return nil, err
		}
		if out[t.Key], err = connection.Entry(def); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SchemaForSQLBlock prepares the block and maps its result field types.
func (c *Conn) SchemaForSQLBlock(ctx context.Context, name, sql string) (connection.SchemaEntry, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	desc, err := conn.Conn().Prepare(ctx, "", sql)
	if err != nil {
		return nil, fmt.Errorf("describe sql block %s: %w", name, err)
	}
	typeMap := conn.Conn().TypeMap()
	cols := make([]connection.Column, len(desc.Fields))
	for i, fd := range desc.Fields {
		typeName := fmt.Sprintf("oid:%d", fd.DataTypeOID)
		if dt, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
			typeName = dt.Name
		}
		cols[i] = connection.Column{Name: fd.Name, Type: arrayTypeName(typeName)}
	}

	def, err := c.describer().SQLBlock(name, cols)
	if err != nil {
		return nil, err
	}
	return connection.Entry(def)
}

// RunQuery executes sql on a pooled connection and streams the rows.
func (c *Conn) RunQuery(ctx context.Context, sql string) (connection.Rows, error) {
	c.log.Debug().Str("sql", sql).Msg("running query")
	rows, err := c.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	return &pgRows{Rows: rows}, nil
}

// Ping verifies the database is reachable.
func (c *Conn) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *Conn) Close() error {
	c.pool.Close()
	return nil
}

type pgRows struct {
	pgx.Rows
}

func (r *pgRows) Columns() []string {
	fds := r.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}
	return cols
}

// parseTableName splits a table name into schema and table components.
// If no schema is specified, it defaults to "public".
func parseTableName(tableName string) (schema string, table string) {
	if s, t, ok := strings.Cut(tableName, "."); ok {
		return s, t
	}
	return "public", tableName
}

// columnTypeName reports arrays as "<element>[]" using the udt name, which
// information_schema prefixes with an underscore for array types.
func columnTypeName(dataType, udt string) string {
	if dataType == "ARRAY" {
		return arrayTypeName(udt)
	}
	return dataType
}

func arrayTypeName(name string) string {
	if elem, ok := strings.CutPrefix(name, "_"); ok {
		return elem + "[]"
	}
	return name
}
