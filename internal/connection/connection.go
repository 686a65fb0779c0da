// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package connection defines the data-source capability used by compile sessions
// and the shared services built on it: a name-indexed Registry and a per-connection
// SchemaCache.
//
// A Connection resolves table and SQL block schemas and executes SQL against one
// physical data source. Schemas are produced as opaque JSON payloads in the shape the
// compiler expects (see StructDef) and are handed back to the compiler verbatim.
//
// Concrete connections live in subpackages (postgres, sqlite, mysql). Connections are
// shared across concurrent sessions and must be safe for concurrent use.
package connection

import (
	"context"
	"encoding/json"
)

// TableRef is one requested table: the logical key the compiler used and the
// physical path the connection must resolve.
type TableRef struct {
	Key  string
	Path string
}

// SchemaEntry is the schema description of a table or SQL block.
type SchemaEntry = json.RawMessage

// SchemaMap maps logical table keys to their schema entries.
type SchemaMap map[string]SchemaEntry

// Connection is a capability bridging a compile session to one data source.
type Connection interface {
	// Name is the name the connection is registered under.
	Name() string
	// SchemaForTables resolves the physical schema of tables and returns entries
	// keyed by each TableRef.Key.
	SchemaForTables(ctx context.Context, tables []TableRef) (SchemaMap, error)
	// SchemaForSQLBlock describes the result shape of sql without materialising it.
	SchemaForSQLBlock(ctx context.Context, name, sql string) (SchemaEntry, error)
	// RunQuery executes sql and returns a lazily read result set.
	RunQuery(ctx context.Context, sql string) (Rows, error)
}

// Rows is a lazily read query result. Callers must Close it.
type Rows interface {
	Columns() []string
	Next() bool
	Values() ([]any, error)
	Err() error
	Close()
}

// SchemaDocument wraps schemas in the envelope the compiler expects for a
// table schema reply: {"schemas": {key: entry}}.
func SchemaDocument(schemas SchemaMap) ([]byte, error) {
	if schemas == nil {
		schemas = SchemaMap{}
	}
	return json.Marshal(struct {
		Schemas SchemaMap `json:"schemas"`
	}{Schemas: schemas})
}
