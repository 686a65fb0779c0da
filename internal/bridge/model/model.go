// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package model defines shared data structures for compiler bridge communication.
// It provides type definitions for the requests the CLI sends to the compiler and
// the responses the compiler sends back, modelled as closed sets of variants so a
// type switch over a Request or Response can be checked for exhaustiveness.
//
// The types in this package are transport-agnostic; the protobuf encoding lives in
// the compilerpb package.
package model

// Document is a named unit of source text. Identity is the URL.
type Document struct {
	URL     string
	Content string
}

// Request is a message sent from the client to the compiler.
// Exactly one variant is sent per message.
type Request interface {
	isRequest()
}

// CompileRequest starts a compilation of Document. Exactly one of Query and
// NamedQuery is set.
type CompileRequest struct {
	Document   Document
	Query      string
	NamedQuery string
}

// ReferencesRequest answers an ImportResponse.
type ReferencesRequest struct {
	Documents []Document
}

// TableSchemasRequest answers a TableSchemasResponse with a JSON schema document
// of the form {"schemas": {"<table key>": <struct def>}}.
type TableSchemasRequest struct {
	SchemaJSON string
}

// SQLBlockSchema is the resolved shape of one SQL block.
type SQLBlockSchema struct {
	Name       string
	SQL        string
	SchemaJSON string
}

// SQLBlockSchemasRequest answers a SQLBlockSchemasResponse.
type SQLBlockSchemasRequest struct {
	Entries []SQLBlockSchema
}

func (CompileRequest) isRequest()         {}
func (ReferencesRequest) isRequest()      {}
func (TableSchemasRequest) isRequest()    {}
func (SQLBlockSchemasRequest) isRequest() {}

// Response is a message sent from the compiler to the client.
// Every variant except CompleteResponse and UnknownResponse asks the client for
// exactly one kind of information.
type Response interface {
	// Kind names the variant for logging and metrics.
	Kind() ResponseKind
	isResponse()
}

// ResponseKind names a Response variant.
type ResponseKind string

const (
	KindImport          ResponseKind = "import"
	KindTableSchemas    ResponseKind = "table_schemas"
	KindSQLBlockSchemas ResponseKind = "sql_block_schemas"
	KindComplete        ResponseKind = "complete"
	KindUnknown         ResponseKind = "unknown"
)

// ImportResponse asks for the content of the listed documents.
type ImportResponse struct {
	URLs []string
}

// TableSchemasResponse asks for the schemas of the listed table keys.
type TableSchemasResponse struct {
	TableKeys []string
}

// SQLBlock is an inline SQL expression whose shape must be discovered.
type SQLBlock struct {
	Name string
	SQL  string
}

// SQLBlockSchemasResponse asks for the schema of one SQL block.
type SQLBlockSchemasResponse struct {
	Block SQLBlock
}

// CompleteResponse carries the generated SQL and the connections it targets.
type CompleteResponse struct {
	SQL         string
	Connections []string
}

// ConnectionName returns the first connection the compiler reported, or "".
func (r CompleteResponse) ConnectionName() string {
	if len(r.Connections) == 0 {
		return ""
	}
	return r.Connections[0]
}

// UnknownResponse carries a compiler diagnostic.
type UnknownResponse struct {
	Diagnostic string
}

func (ImportResponse) Kind() ResponseKind          { return KindImport }
func (TableSchemasResponse) Kind() ResponseKind    { return KindTableSchemas }
func (SQLBlockSchemasResponse) Kind() ResponseKind { return KindSQLBlockSchemas }
func (CompleteResponse) Kind() ResponseKind        { return KindComplete }
func (UnknownResponse) Kind() ResponseKind         { return KindUnknown }

func (ImportResponse) isResponse()          {}
func (TableSchemasResponse) isResponse()    {}
func (SQLBlockSchemasResponse) isResponse() {}
func (CompleteResponse) isResponse()        {}
func (UnknownResponse) isResponse()         {}
