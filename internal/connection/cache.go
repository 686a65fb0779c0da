// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connection

import (
	"context"
	"sync"

	"malloy/cli/internal/errors"
	"malloy/cli/internal/metrics"

	"github.com/rs/zerolog"
)

// SchemaCache memoises table schemas per connection name. Entries are never
// evicted; a table's shape is assumed stable for the life of the process.
//
// Lookups for the same connection are serialised so concurrent sessions never
// fetch the same key twice. Different connections proceed independently.
type SchemaCache struct {
	mu      sync.Mutex
	entries map[string]*connectionSchemas
	metrics *metrics.Collector
	log     zerolog.Logger
}

type connectionSchemas struct {
	mu      sync.Mutex
	schemas SchemaMap
}

// NewSchemaCache returns an empty cache. m may be nil.
func NewSchemaCache(m *metrics.Collector, log zerolog.Logger) *SchemaCache {
	return &SchemaCache{
		entries: make(map[string]*connectionSchemas),
		metrics: m,
		log:     log.With().Str("component", "schema_cache").Logger(),
	}
}

func (c *SchemaCache) forConnection(name string) *connectionSchemas {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs, ok := c.entries[name]
	if !ok {
		cs = &connectionSchemas{schemas: make(SchemaMap)}
		c.entries[name] = cs
	}
	return cs
}

// GetSchemaForTables returns schemas for every requested table, fetching only
// the keys not cached for connectionName. conn is not called when every key is
// cached. Each key appears at most once in the fetch.
func (c *SchemaCache) GetSchemaForTables(ctx context.Context, connectionName string, conn Connection, tables []TableRef) (SchemaMap, error) {
	cs := c.forConnection(connectionName)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	result := make(SchemaMap, len(tables))
	var uncached []TableRef
	seen := make(map[string]bool, len(tables))
	for _, t := range tables {
		if entry, ok := cs.schemas[t.Key]; ok {
			result[t.Key] = entry
			continue
		}
		if !seen[t.Key] {
			seen[t.Key] = true
			uncached = append(uncached, t)
		}
	}
	c.metrics.CacheLookup(connectionName, len(result), len(uncached))

	if len(uncached) == 0 {
		return result, nil
	}

	c.log.Debug().Str("connection", connectionName).Int("tables", len(uncached)).Msg("fetching table schemas")
	fetched, err := conn.SchemaForTables(ctx, uncached)
	if err != nil {
		return nil, errors.Wrap(errors.SchemaFailed, "fetch schemas from "+connectionName, err)
	}
	for _, t := range uncached {
		if _, ok := fetched[t.Key]; !ok {
			return nil, errors.Newf(errors.SchemaFailed, "connection %q returned no schema for %q", connectionName, t.Key)
		}
	}
	for _, t := range uncached {
		cs.schemas[t.Key] = fetched[t.Key]
		result[t.Key] = fetched[t.Key]
	}
	return result, nil
}

// Len returns the number of cached entries for connectionName.
func (c *SchemaCache) Len(connectionName string) int {
	cs := c.forConnection(connectionName)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.schemas)
}
