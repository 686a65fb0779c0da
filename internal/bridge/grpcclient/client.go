// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package grpcclient provides a gRPC-backed implementation of the bridge channel.
// It talks to the compiler service over the Compiler.CompileStream bidirectional
// stream, converting between the internal model types and protobuf wire messages,
// and exposes the gRPC connectivity state so a session can wait for readiness.
//
// The package manages connection lifecycle and stream handling; message semantics
// belong to the compiler package.
package grpcclient

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"

	"malloy/cli/internal/bridge"
	"malloy/cli/internal/bridge/compilerpb"
	"malloy/cli/internal/bridge/model"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Dialer creates gRPC channels to the compiler service.
type Dialer struct {
	// Options are appended to the dial options (tests inject a context dialer here).
	Options []grpc.DialOption
}

// Dial implements bridge.Dialer. Addresses prefixed with grpcs:// use TLS with
// the host as server name and port 443 when none is given; everything else is
// dialled in plaintext, which is how a locally spawned compiler listens.
func (d Dialer) Dial(ctx context.Context, addr string) (bridge.Channel, error) {
	return Dial(ctx, addr, d.Options...)
}

// Client implements bridge.Channel over a grpc.ClientConn.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for addr. The connection is established lazily; call
// Connect and watch State to wait for readiness.
func Dial(_ context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	var target string
	var creds credentials.TransportCredentials
	if rest, ok := strings.CutPrefix(addr, "grpcs://"); ok {
		// Derive SNI and ensure default port if missing
		host := rest
		if h, _, err := net.SplitHostPort(rest); err == nil {
			host = h
		}
		target = rest
		if _, _, err := net.SplitHostPort(rest); err != nil {
			target = net.JoinHostPort(rest, "443")
		}
		creds = credentials.NewTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	} else {
		target = strings.TrimPrefix(addr, "grpc://")
		creds = insecure.NewCredentials()
	}

	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Connect() { c.conn.Connect() }

func (c *Client) State() bridge.ConnState { return fromGRPC(c.conn.GetState()) }

func (c *Client) WaitForStateChange(ctx context.Context, s bridge.ConnState) bool {
	return c.conn.WaitForStateChange(ctx, toGRPC(s))
}

// OpenStream opens the CompileStream call.
func (c *Client) OpenStream(ctx context.Context) (bridge.Stream, error) {
	cs, err := c.conn.NewStream(ctx, &grpc.StreamDesc{
		StreamName:    "CompileStream",
		ServerStreams: true,
		ClientStreams: true,
	}, compilerpb.CompileStreamMethod)
	if err != nil {
		return nil, err
	}
	return &stream{cs: cs}, nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

type stream struct {
	cs grpc.ClientStream
}

func (s *stream) Send(req model.Request) error {
	m, err := compilerpb.EncodeRequest(req)
	if err != nil {
		return err
	}
	return s.cs.SendMsg(m)
}

func (s *stream) Recv() (model.Response, error) {
	m := compilerpb.NewResponseMessage()
	if err := s.cs.RecvMsg(m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return compilerpb.DecodeResponse(m)
}

func (s *stream) CloseSend() error { return s.cs.CloseSend() }

func fromGRPC(s connectivity.State) bridge.ConnState {
	switch s {
	case connectivity.Idle:
		return bridge.Idle
	case connectivity.Connecting:
		return bridge.Connecting
	case connectivity.Ready:
		return bridge.Ready
	case connectivity.TransientFailure:
		return bridge.TransientFailure
	default:
		return bridge.Shutdown
	}
}

func toGRPC(s bridge.ConnState) connectivity.State {
	switch s {
	case bridge.Idle:
		return connectivity.Idle
	case bridge.Connecting:
		return connectivity.Connecting
	case bridge.Ready:
		return connectivity.Ready
	case bridge.TransientFailure:
		return connectivity.TransientFailure
	default:
		return connectivity.Shutdown
	}
}
