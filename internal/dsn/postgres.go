// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"net/url"
	"strings"
)

// PostgreSQLResolver handles PostgreSQL DSN parsing and normalization
type PostgreSQLResolver struct {
	urlResolver
}

// NewPostgreSQLResolver creates a new PostgreSQL resolver
func NewPostgreSQLResolver() *PostgreSQLResolver {
	return &PostgreSQLResolver{urlResolver{
		dbType:      DBTypePostgreSQL,
		schemes:     []string{"postgresql", "postgres"},
		canonical:   "postgresql",
		defaultPort: "5432",
	}}
}

// Parse parses a PostgreSQL DSN string
func (r *PostgreSQLResolver) Parse(dsn string) (*DSNInfo, error) {
	return r.parse(dsn)
}

// Normalize renders info as a postgresql:// URL with credentials encoded,
// which pgx accepts as-is.
func (r *PostgreSQLResolver) Normalize(info *DSNInfo) (string, error) {
	if info == nil {
		return "", NewParseError("", "nil DSN info", "")
	}

	var builder strings.Builder
	builder.WriteString("postgresql://")
	if info.User != "" {
		builder.WriteString(url.QueryEscape(info.User))
		if info.Password != "" {
			builder.WriteString(":")
			builder.WriteString(url.QueryEscape(info.Password))
		}
		builder.WriteString("@")
	}
	builder.WriteString(info.Host)
	port := info.Port
	if port == "" {
		port = r.defaultPort
	}
	builder.WriteString(":")
	builder.WriteString(port)
	builder.WriteString("/")
	builder.WriteString(info.Database)

	for i, key := range sortedParams(info.Params) {
		if i == 0 {
			builder.WriteString("?")
		} else {
			builder.WriteString("&")
		}
		builder.WriteString(url.QueryEscape(key))
		builder.WriteString("=")
		builder.WriteString(url.QueryEscape(info.Params[key]))
	}
	return builder.String(), nil
}

// Validate checks if the DSN is valid for PostgreSQL
func (r *PostgreSQLResolver) Validate(dsn string) error {
	_, err := r.validate(dsn)
	return err
}
