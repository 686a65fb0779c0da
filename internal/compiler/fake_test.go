// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package compiler

import (
	"context"
	"fmt"
	"io"
	"sync"

	"malloy/cli/internal/bridge"
	"malloy/cli/internal/bridge/model"
	"malloy/cli/internal/connection"
)

// fakeChannel walks through states on each WaitForStateChange and then serves
// a scripted stream.
type fakeChannel struct {
	states    []bridge.ConnState
	idx       int
	stream    *scriptedStream
	openErr   error
	connected bool
	opened    bool
	closed    bool
}

func readyChannel(responses ...model.Response) *fakeChannel {
	return &fakeChannel{
		states: []bridge.ConnState{bridge.Idle, bridge.Connecting, bridge.Ready},
		stream: &scriptedStream{responses: responses},
	}
}

func (c *fakeChannel) Connect()                { c.connected = true }
func (c *fakeChannel) State() bridge.ConnState { return c.states[c.idx] }

func (c *fakeChannel) WaitForStateChange(ctx context.Context, _ bridge.ConnState) bool {
	if c.idx < len(c.states)-1 {
		c.idx++
		return true
	}
	<-ctx.Done()
	return false
}

func (c *fakeChannel) OpenStream(context.Context) (bridge.Stream, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	c.opened = true
	return c.stream, nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

// scriptedStream answers each request with the next scripted response, or
// with repeat forever when set. With cycle the script restarts instead of
// ending; otherwise it returns io.EOF once the script runs out.
type scriptedStream struct {
	responses []model.Response
	repeat    model.Response
	cycle     bool
	sent      []model.Request
	recvs     int
}

func (s *scriptedStream) Send(req model.Request) error {
	s.sent = append(s.sent, req)
	return nil
}

func (s *scriptedStream) Recv() (model.Response, error) {
	s.recvs++
	if s.repeat != nil {
		return s.repeat, nil
	}
	if s.cycle {
		return s.responses[(s.recvs-1)%len(s.responses)], nil
	}
	if len(s.responses) == 0 {
		return nil, io.EOF
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *scriptedStream) CloseSend() error { return nil }

// stubConn returns a fixed schema for every table and counts fetches.
type stubConn struct {
	name      string
	schemaErr error

	mu      sync.Mutex
	fetched map[string]int
	blocks  []string
	queries []string
}

func newStub(name string) *stubConn {
	return &stubConn{name: name, fetched: make(map[string]int)}
}

func (s *stubConn) Name() string { return s.name }

func (s *stubConn) SchemaForTables(_ context.Context, tables []connection.TableRef) (connection.SchemaMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemaErr != nil {
		return nil, s.schemaErr
	}
	out := make(connection.SchemaMap, len(tables))
	for _, t := range tables {
		s.fetched[t.Key]++
		out[t.Key] = connection.SchemaEntry(fmt.Sprintf(`{"type":"struct","name":%q,"fields":[{"name":"a","type":"string"}]}`, t.Path))
	}
	return out, nil
}

func (s *stubConn) SchemaForSQLBlock(_ context.Context, name, sql string) (connection.SchemaEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemaErr != nil {
		return nil, s.schemaErr
	}
	s.blocks = append(s.blocks, sql)
	return connection.SchemaEntry(fmt.Sprintf(`{"type":"struct","name":%q}`, name)), nil
}

func (s *stubConn) RunQuery(_ context.Context, sql string) (connection.Rows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, sql)
	return &oneRow{}, nil
}

func (s *stubConn) fetchCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched[key]
}

type oneRow struct{ done bool }

func (r *oneRow) Columns() []string { return []string{"a", "n"} }
func (r *oneRow) Next() bool {
	if r.done {
		return false
	}
	r.done = true
	return true
}
func (r *oneRow) Values() ([]any, error) { return []any{"x", int64(1)}, nil }
func (r *oneRow) Err() error             { return nil }
func (r *oneRow) Close()                 {}
