// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package compiler drives compilations against the external compiler service.
//
// A Session owns one compilation attempt. It opens the compile stream, sends the
// entry document and query, then answers each compiler response in arrival order:
// imports are read from disk (or S3), table schemas are resolved through the
// connection Registry and SchemaCache, and SQL block schemas are described by the
// connection named in the block. The exchange is strict ping-pong: exactly one
// request is in flight at any time. A response seen twice ends the session, since
// a correct compiler never repeats a question.
//
// Runtime wraps sessions with the shared services and a fresh channel per compile.
package compiler

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"malloy/cli/internal/bridge"
	"malloy/cli/internal/bridge/model"
	"malloy/cli/internal/connection"
	"malloy/cli/internal/errors"
	"malloy/cli/internal/metrics"
	"malloy/cli/internal/source"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is a compile session state.
type State int

const (
	StateInit State = iota
	StateChannelConnecting
	StateStreaming
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateChannelConnecting:
		return "CHANNEL_CONNECTING"
	case StateStreaming:
		return "STREAMING"
	case StateComplete:
		return "COMPLETE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Input describes what to compile.
type Input struct {
	// BaseDir resolves relative import URLs. Defaults to the entry file's
	// directory, or the working directory for inline sources.
	BaseDir string
	// EntryPath is the file to compile. Ignored when Source is set.
	EntryPath string
	// Source is inline source text compiled instead of a file.
	Source string
	// Query is a free-form query; NamedQuery names a query in the document.
	// Exactly one should be set; NamedQuery wins when both are.
	Query      string
	NamedQuery string
}

func (in Input) inline() bool { return in.Source != "" }

// Result is the outcome of a session. SQL and ConnectionName are empty unless
// State is StateComplete.
type Result struct {
	SQL            string
	ConnectionName string
	State          State
	// Kind and Diagnostic explain a failure.
	Kind       errors.Kind
	Diagnostic string
}

// OK reports whether the compilation produced SQL.
func (r *Result) OK() bool { return r != nil && r.State == StateComplete }

// Deps are the shared services a session uses.
type Deps struct {
	Registry *connection.Registry
	Cache    *connection.SchemaCache
	Reader   source.Reader
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
}

// Session is a single compilation attempt. It is not safe for concurrent use
// and runs at most once.
type Session struct {
	id       string
	channel  bridge.Channel
	registry *connection.Registry
	cache    *connection.SchemaCache
	reader   source.Reader
	metrics  *metrics.Collector
	log      zerolog.Logger

	input   Input
	baseDir string
	entry   model.Document
	state   State
	seen    map[Fingerprint]struct{}
	started bool
}

// NewSession prepares a session over ch. Nothing is sent until Run.
func NewSession(ch bridge.Channel, deps Deps, in Input) *Session {
	id := uuid.NewString()
	if deps.Reader == nil {
		deps.Reader = source.NewFileReader()
	}
	if deps.Cache == nil {
		deps.Cache = connection.NewSchemaCache(deps.Metrics, deps.Logger)
	}
	return &Session{
		id:       id,
		channel:  ch,
		registry: deps.Registry,
		cache:    deps.Cache,
		reader:   deps.Reader,
		metrics:  deps.Metrics,
		log:      deps.Logger.With().Str("session", id).Logger(),
		input:    in,
		state:    StateInit,
		seen:     make(map[Fingerprint]struct{}),
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Run drives the compilation to completion.
//
// Protocol failures (channel failure, unreadable import, unknown connection,
// repeated response, compiler diagnostic) end in a FAILED result and a nil
// error. Contract violations, connection fetch errors and context cancellation
// are returned as errors alongside the FAILED result.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if s.started {
		return s.failed(errors.InvalidInput, "session already ran"), errors.New(errors.InvalidInput, "session already ran")
	}
	s.started = true

	start := time.Now()
	res, err := s.run(ctx)
	outcome := metrics.OutcomeComplete
	if !res.OK() {
		outcome = metrics.OutcomeFailed
	}
	s.metrics.SessionFinished(outcome, time.Since(start))
	return res, err
}

func (s *Session) run(ctx context.Context) (*Result, error) {
	if s.input.Query == "" && s.input.NamedQuery == "" {
		e := errors.New(errors.InvalidInput, "a query or named query is required")
		return s.fail(e), e
	}
	if s.registry == nil {
		e := errors.New(errors.InvalidInput, "session has no connection registry")
		return s.fail(e), e
	}

	if err := s.loadEntry(ctx); err != nil {
		return s.fail(errors.Wrap(errors.ImportFailed, "read entry document", err)), nil
	}

	stream, res, err := s.connect(ctx)
	if stream == nil {
		return res, err
	}
	defer stream.CloseSend()

	s.transition(StateStreaming)
	var req model.Request = model.CompileRequest{
		Document:   s.entry,
		Query:      s.input.Query,
		NamedQuery: s.input.NamedQuery,
	}
	for {
		if err := stream.Send(req); err != nil {
			return s.streamError(ctx, "send request", err)
		}

		resp, err := stream.Recv()
		if err != nil {
			return s.streamError(ctx, "receive response", err)
		}
		s.metrics.ResponseReceived(string(resp.Kind()))
		s.log.Debug().Str("response", string(resp.Kind())).Msg("compiler response")

		fp, err := FingerprintOf(resp)
		if err != nil {
			return s.fail(errors.Wrap(errors.CompileFailed, "fingerprint response", err)), nil
		}
		if _, dup := s.seen[fp]; dup {
			return s.fail(errors.Newf(errors.ProtocolLoop, "request loop detected: compiler repeated %s response %s", resp.Kind(), fp)), nil
		}
		s.seen[fp] = struct{}{}

		switch r := resp.(type) {
		case model.CompleteResponse:
			s.transition(StateComplete)
			return &Result{SQL: r.SQL, ConnectionName: r.ConnectionName(), State: StateComplete}, nil
		case model.UnknownResponse:
			return s.fail(errors.New(errors.CompileFailed, r.Diagnostic)), nil
		case model.ImportResponse:
			req, err = s.references(ctx, r)
		case model.TableSchemasResponse:
			req, err = s.tableSchemas(ctx, r)
		case model.SQLBlockSchemasResponse:
			req, err = s.sqlBlockSchemas(ctx, r)
		default:
			err = errors.Newf(errors.CompileFailed, "unhandled compiler response %s", resp.Kind())
		}
		if err != nil {
			return s.failWith(ctx, err)
		}
	}
}

// connect waits for the channel to become ready and opens the stream. On
// failure the stream is nil and the returned result and error are final.
func (s *Session) connect(ctx context.Context) (bridge.Stream, *Result, error) {
	s.transition(StateChannelConnecting)
	s.channel.Connect()
	for state := s.channel.State(); state != bridge.Ready; state = s.channel.State() {
		if state == bridge.TransientFailure || state == bridge.Shutdown {
			return nil, s.fail(errors.Newf(errors.ChannelFailed, "compiler channel entered %s before becoming ready", state)), nil
		}
		if !s.channel.WaitForStateChange(ctx, state) {
			e := errors.Wrap(errors.ChannelFailed, "waiting for compiler channel", ctx.Err())
			return nil, s.fail(e), ctx.Err()
		}
	}

	stream, err := s.channel.OpenStream(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.fail(errors.Wrap(errors.ChannelFailed, "open compile stream", err)), ctx.Err()
		}
		return nil, s.fail(errors.Wrap(errors.ChannelFailed, "open compile stream", err)), nil
	}
	return stream, nil, nil
}

func (s *Session) loadEntry(ctx context.Context) error {
	in := s.input
	if in.inline() {
		base := in.BaseDir
		if base == "" {
			base = "."
		}
		abs, err := filepath.Abs(base)
		if err != nil {
			return err
		}
		s.baseDir = abs
		s.entry = model.Document{
			URL:     source.DocumentURL(filepath.Join(abs, source.InlineFileName)),
			Content: in.Source,
		}
		return nil
	}

	if in.EntryPath == "" {
		return fmt.Errorf("no entry file or inline source given")
	}
	path := in.EntryPath
	if !filepath.IsAbs(path) && in.BaseDir != "" {
		path = filepath.Join(in.BaseDir, path)
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	s.baseDir = in.BaseDir
	if s.baseDir == "" {
		s.baseDir = filepath.Dir(path)
	}

	content, err := s.reader.Read(ctx, path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	s.entry = model.Document{URL: source.DocumentURL(path), Content: content}
	return nil
}

func (s *Session) references(ctx context.Context, r model.ImportResponse) (model.Request, error) {
	docs := make([]model.Document, 0, len(r.URLs))
	for _, url := range r.URLs {
		if url == s.entry.URL {
			docs = append(docs, s.entry)
			continue
		}
		location := source.Locate(url, s.baseDir)
		content, err := s.reader.Read(ctx, location)
		if err != nil {
			return nil, errors.Wrap(errors.ImportFailed, "read "+location, err)
		}
		docs = append(docs, model.Document{URL: url, Content: content})
	}
	return model.ReferencesRequest{Documents: docs}, nil
}

func (s *Session) tableSchemas(ctx context.Context, r model.TableSchemasResponse) (model.Request, error) {
	type group struct {
		conn   connection.Connection
		tables []connection.TableRef
	}
	groups := make(map[string]*group)
	var order []string
	for _, raw := range r.TableKeys {
		key, err := model.ParseTableKey(raw)
		if err != nil {
			return nil, errors.Wrap(errors.CompileFailed, "table schema request", err)
		}
		name, conn, err := s.registry.Resolve(key.Connection)
		if err != nil {
			return nil, err
		}
		g, ok := groups[name]
		if !ok {
			g = &group{conn: conn}
			groups[name] = g
			order = append(order, name)
		}
		g.tables = append(g.tables, connection.TableRef{Key: key.Raw, Path: key.Path})
	}

	merged := make(connection.SchemaMap, len(r.TableKeys))
	for _, name := range order {
		g := groups[name]
		s.log.Debug().Str("connection", name).Int("tables", len(g.tables)).Msg("resolving table schemas")
		schemas, err := s.cache.GetSchemaForTables(ctx, name, g.conn, g.tables)
		if err != nil {
			return nil, err
		}
		for k, v := range schemas {
			merged[k] = v
		}
	}

	doc, err := connection.SchemaDocument(merged)
	if err != nil {
		return nil, errors.Wrap(errors.SchemaFailed, "encode table schemas", err)
	}
	return model.TableSchemasRequest{SchemaJSON: string(doc)}, nil
}

func (s *Session) sqlBlockSchemas(ctx context.Context, r model.SQLBlockSchemasResponse) (model.Request, error) {
	block := r.Block
	connName, err := model.ConnectionFromSQLBlockName(block.Name)
	if err != nil {
		return nil, errors.Wrap(errors.CompileFailed, "sql block schema request", err)
	}
	_, conn, err := s.registry.Resolve(connName)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("connection", connName).Str("block", block.Name).Msg("resolving sql block schema")
	entry, err := conn.SchemaForSQLBlock(ctx, block.Name, block.SQL)
	if err != nil {
		return nil, errors.Wrap(errors.SchemaFailed, "describe sql block "+block.Name, err)
	}
	return model.SQLBlockSchemasRequest{Entries: []model.SQLBlockSchema{{
		Name:       block.Name,
		SQL:        block.SQL,
		SchemaJSON: string(entry),
	}}}, nil
}

// failWith ends the session for an error raised while answering a response.
// Unknown connections and unreadable imports are protocol failures; anything
// else is also returned to the caller.
func (s *Session) failWith(ctx context.Context, err error) (*Result, error) {
	res := s.fail(err)
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	switch errors.KindOf(err) {
	case errors.ConnectionNotFound, errors.ImportFailed, errors.CompileFailed:
		return res, nil
	}
	return res, err
}

func (s *Session) streamError(ctx context.Context, op string, err error) (*Result, error) {
	if ctx.Err() != nil {
		return s.fail(errors.Wrap(errors.StreamClosed, op, err)), ctx.Err()
	}
	if stderrors.Is(err, io.EOF) {
		return s.fail(errors.New(errors.StreamClosed, "compiler closed the stream before completing")), nil
	}
	return s.fail(errors.Wrap(errors.StreamClosed, op, err)), nil
}

func (s *Session) fail(err error) *Result {
	s.transition(StateFailed)
	kind := errors.KindOf(err)
	s.log.Error().Str("kind", string(kind)).Err(err).Msg("compile failed")
	return &Result{State: StateFailed, Kind: kind, Diagnostic: diagnostic(err)}
}

// diagnostic renders err without its kind prefix.
func diagnostic(err error) string {
	var e *errors.E
	if !stderrors.As(err, &e) {
		return err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (s *Session) failed(kind errors.Kind, msg string) *Result {
	return &Result{State: StateFailed, Kind: kind, Diagnostic: msg}
}

func (s *Session) transition(to State) {
	s.log.Debug().Str("from", s.state.String()).Str("state", to.String()).Msg("session state")
	s.state = to
}
