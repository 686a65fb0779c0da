// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connection

import (
	"context"
	"fmt"
	"sync"
)

// stubConnection returns a fixed schema per key and records every fetch.
type stubConnection struct {
	name string
	err  error
	// drop lists keys the stub pretends not to know.
	drop map[string]bool

	mu      sync.Mutex
	fetches [][]TableRef
}

func (s *stubConnection) Name() string { return s.name }

func (s *stubConnection) SchemaForTables(_ context.Context, tables []TableRef) (SchemaMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches = append(s.fetches, append([]TableRef(nil), tables...))
	if s.err != nil {
		return nil, s.err
	}
	out := make(SchemaMap, len(tables))
	for _, t := range tables {
		if s.drop[t.Key] {
			continue
		}
		out[t.Key] = SchemaEntry(fmt.Sprintf(`{"name":%q,"connection":%q}`, t.Path, s.name))
	}
	return out, nil
}

func (s *stubConnection) SchemaForSQLBlock(_ context.Context, name, _ string) (SchemaEntry, error) {
	return SchemaEntry(fmt.Sprintf(`{"name":%q}`, name)), nil
}

func (s *stubConnection) RunQuery(context.Context, string) (Rows, error) {
	return &sliceRows{cols: []string{"one"}, rows: [][]any{{1}}}, nil
}

// fetchCount returns how many times key was fetched.
func (s *stubConnection) fetchCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.fetches {
		for _, t := range f {
			if t.Key == key {
				n++
			}
		}
	}
	return n
}

func (s *stubConnection) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetches)
}

type sliceRows struct {
	cols   []string
	rows   [][]any
	pos    int
	err    error
	closed bool
}

func (r *sliceRows) Columns() []string { return r.cols }

func (r *sliceRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceRows) Values() ([]any, error) { return r.rows[r.pos-1], nil }
func (r *sliceRows) Err() error             { return r.err }
func (r *sliceRows) Close()                 { r.closed = true }
