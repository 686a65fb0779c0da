// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bridge defines interfaces for bridging between the CLI and the external
// compiler service. It provides abstractions over the transport (a connectivity-aware
// channel carrying one bidirectional stream per compilation) while keeping the compile
// session independent of gRPC and protobuf.
//
// The package enables pluggable transport implementations; grpcclient is the production
// one, and tests drive sessions through scripted in-memory channels.
package bridge

import (
	"context"

	"malloy/cli/internal/bridge/model"
)

// ConnState is the connectivity state of a channel.
type ConnState int

const (
	Idle ConnState = iota
	Connecting
	Ready
	TransientFailure
	Shutdown
)

func (s ConnState) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Connecting:
		return "CONNECTING"
	case Ready:
		return "READY"
	case TransientFailure:
		return "TRANSIENT_FAILURE"
	case Shutdown:
		return "SHUTDOWN"
	default:
		return "INVALID_STATE"
	}
}

// Channel is a connection to the compiler service.
type Channel interface {
	// Connect asks the channel to leave the idle state.
	Connect()
	// State returns the current connectivity state.
	State() ConnState
	// WaitForStateChange blocks until the state differs from s or ctx is done.
	// It returns false when ctx expired first.
	WaitForStateChange(ctx context.Context, s ConnState) bool
	// OpenStream opens the bidirectional compile stream.
	OpenStream(ctx context.Context) (Stream, error)
	Close() error
}

// Stream carries one compilation's request/response exchange.
type Stream interface {
	Send(req model.Request) error
	// Recv returns the next response; io.EOF when the compiler closed the stream.
	Recv() (model.Response, error)
	CloseSend() error
}

// Dialer creates channels to a compiler address.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Channel, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, addr string) (Channel, error)

func (f DialerFunc) Dial(ctx context.Context, addr string) (Channel, error) { return f(ctx, addr) }
