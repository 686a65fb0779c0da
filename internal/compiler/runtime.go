// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package compiler

import (
	"context"

	"malloy/cli/internal/bridge"
	"malloy/cli/internal/bridge/model"
	"malloy/cli/internal/connection"
	"malloy/cli/internal/errors"
	"malloy/cli/internal/metrics"
	"malloy/cli/internal/source"

	"github.com/rs/zerolog"
)

// Service reports where the compiler service listens.
type Service interface {
	Address(ctx context.Context) (string, error)
}

// StaticAddress is a Service at a fixed address.
type StaticAddress string

func (a StaticAddress) Address(context.Context) (string, error) { return string(a), nil }

// RuntimeConfig holds the collaborators of a Runtime.
type RuntimeConfig struct {
	Dialer  bridge.Dialer
	Service Service
	// Reader defaults to the local filesystem.
	Reader  source.Reader
	Metrics *metrics.Collector
	Logger  zerolog.Logger
}

// Runtime compiles and runs queries. Connections and the schema cache are
// shared by every compilation; each compilation gets its own channel.
type Runtime struct {
	registry *connection.Registry
	cache    *connection.SchemaCache
	dialer   bridge.Dialer
	service  Service
	reader   source.Reader
	metrics  *metrics.Collector
	log      zerolog.Logger
}

// NewRuntime creates a runtime with an empty registry and cache.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	if cfg.Reader == nil {
		cfg.Reader = source.NewFileReader()
	}
	return &Runtime{
		registry: connection.NewRegistry(cfg.Logger),
		cache:    connection.NewSchemaCache(cfg.Metrics, cfg.Logger),
		dialer:   cfg.Dialer,
		service:  cfg.Service,
		reader:   cfg.Reader,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
	}
}

// AddConnection registers c for use by compiled sources.
func (r *Runtime) AddConnection(c connection.Connection) *Runtime {
	r.registry.Add(c)
	return r
}

// Registry returns the runtime's connection registry.
func (r *Runtime) Registry() *connection.Registry { return r.registry }

// CompileSQL runs one compile session on a fresh channel and closes the
// channel afterwards.
func (r *Runtime) CompileSQL(ctx context.Context, in Input) (*Result, error) {
	addr, err := r.service.Address(ctx)
	if err != nil {
		e := errors.Wrap(errors.ServiceFailed, "compiler service unavailable", err)
		r.log.Error().Err(e).Msg("compile ending")
		return &Result{State: StateFailed, Kind: errors.ServiceFailed, Diagnostic: diagnostic(e)}, e
	}
	r.log.Debug().Str("address", addr).Msg("using compiler service")

	ch, err := r.dialer.Dial(ctx, addr)
	if err != nil {
		e := errors.Wrap(errors.ChannelFailed, "dial "+addr, err)
		r.log.Error().Err(e).Msg("compile ending")
		return &Result{State: StateFailed, Kind: errors.ChannelFailed, Diagnostic: diagnostic(e)}, nil
	}
	defer ch.Close()

	return NewSession(ch, Deps{
		Registry: r.registry,
		Cache:    r.cache,
		Reader:   r.reader,
		Metrics:  r.metrics,
		Logger:   r.log,
	}, in).Run(ctx)
}

// Run compiles in and executes the SQL. The connection named by the compiler
// is used; otherwise connectionName, and the default when that is empty.
// Rows is nil when compilation failed.
func (r *Runtime) Run(ctx context.Context, in Input, connectionName string) (connection.Rows, *Result, error) {
	res, err := r.CompileSQL(ctx, in)
	if err != nil || !res.OK() {
		return nil, res, err
	}

	name := res.ConnectionName
	if name == "" {
		name = connectionName
	}
	if name == "" {
		name = model.DefaultConnection
	}
	_, conn, err := r.registry.Resolve(name)
	if err != nil {
		return nil, res, err
	}
	rows, err := conn.RunQuery(ctx, res.SQL)
	if err != nil {
		return nil, res, err
	}
	return rows, res, nil
}

// Close closes every registered connection.
func (r *Runtime) Close() error { return r.registry.Close() }
