// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"regexp"
	"strings"
)

// mysqlDriverDSN matches go-sql-driver style DSNs: user:pass@tcp(host:3306)/db
var mysqlDriverDSN = regexp.MustCompile(`^[^/]*@(tcp|tcp6|unix)\(`)

var sqliteSuffixes = []string{".db", ".sqlite", ".sqlite3"}

// DetectDBType detects the database type from a DSN string
func DetectDBType(dsn string) DBType {
	lower := strings.ToLower(strings.TrimSpace(dsn))

	switch {
	case strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://"):
		return DBTypePostgreSQL
	case strings.HasPrefix(lower, "mysql://") || mysqlDriverDSN.MatchString(lower):
		return DBTypeMySQL
	case strings.HasPrefix(lower, "sqlite:") || strings.HasPrefix(lower, "file:") || lower == ":memory:":
		return DBTypeSQLite
	}
	for _, suffix := range sqliteSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return DBTypeSQLite
		}
	}
	return DBTypeUnknown
}

// ResolverFor returns the resolver for a database type.
func ResolverFor(dsn string) (Resolver, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, NewParseError(dsn, "empty DSN", "provide a valid database connection string")
	}
	switch DetectDBType(dsn) {
	case DBTypePostgreSQL:
		return NewPostgreSQLResolver(), nil
	case DBTypeMySQL:
		return NewMySQLResolver(), nil
	case DBTypeSQLite:
		return NewSQLiteResolver(), nil
	default:
		return nil, NewParseError(dsn, "unknown database type", "use postgres://, mysql://, sqlite:// or a path ending in .db")
	}
}

// Parse parses a DSN string and returns the driver connection string.
// This is the main entry point for DSN parsing
func Parse(dsn string) (string, error) {
	resolver, err := ResolverFor(dsn)
	if err != nil {
		return "", err
	}
	info, err := resolver.Parse(dsn)
	if err != nil {
		return "", err
	}
	return resolver.Normalize(info)
}

// Validate validates a DSN string without normalizing it
func Validate(dsn string) error {
	resolver, err := ResolverFor(dsn)
	if err != nil {
		return err
	}
	return resolver.Validate(dsn)
}

// ParseInfo parses a DSN string and returns detailed DSN info
// Useful for inspecting connection details
func ParseInfo(dsn string) (*DSNInfo, error) {
	resolver, err := ResolverFor(dsn)
	if err != nil {
		return nil, err
	}
	return resolver.Parse(dsn)
}
