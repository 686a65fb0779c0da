// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connection

import (
	stderrors "errors"
	"io"
	"sync"

	"malloy/cli/internal/bridge/model"
	"malloy/cli/internal/errors"

	"github.com/rs/zerolog"
)

// Registry indexes connections by name and tracks the default connection.
// It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	conns       map[string]Connection
	order       []string
	defaultName string
	log         zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		conns: make(map[string]Connection),
		log:   log.With().Str("component", "registry").Logger(),
	}
}

// Add indexes c by its name. A connection with the same name is replaced but
// keeps its original position for default resolution.
func (r *Registry) Add(c Connection) {
	name := c.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[name]; !exists {
		r.order = append(r.order, name)
	}
	r.conns[name] = c
	r.log.Debug().Str("connection", name).Msg("connection added")
}

// Remove drops the named connection. Removing the explicit default clears it.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[name]; !exists {
		return
	}
	delete(r.conns, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.defaultName == name {
		r.defaultName = ""
	}
}

// Get returns the named connection. Unknown names are logged and reported as a
// ConnectionNotFound error.
func (r *Registry) Get(name string) (Connection, error) {
	r.mu.RLock()
	c, ok := r.conns[name]
	r.mu.RUnlock()
	if !ok {
		r.log.Error().Str("connection", name).Msg("connection not found")
		return nil, errors.Newf(errors.ConnectionNotFound, "connection %q not found", name)
	}
	return c, nil
}

// SetDefault makes name the default connection. The connection must already
// be registered.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[name]; !ok {
		return errors.Newf(errors.ConnectionNotFound, "cannot make %q the default: connection not found", name)
	}
	r.defaultName = name
	return nil
}

// DefaultName returns the explicit default, or the first connection added when
// none was set. An empty registry has no default.
func (r *Registry) DefaultName() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultName != "" {
		return r.defaultName, nil
	}
	if len(r.order) == 0 {
		return "", errors.New(errors.NoConnections, "no connections registered")
	}
	return r.order[0], nil
}

// Resolve maps a connection name from a compiler key to a registered
// connection, treating the default-connection sentinel as the default.
func (r *Registry) Resolve(name string) (string, Connection, error) {
	if name == model.DefaultConnection {
		def, err := r.DefaultName()
		if err != nil {
			return "", nil, err
		}
		name = def
	}
	c, err := r.Get(name)
	if err != nil {
		return "", nil, err
	}
	return name, c, nil
}

// Names lists registered connections in the order they were first added.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Close closes every connection that holds resources.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for _, name := range r.order {
		if c, ok := r.conns[name].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}
