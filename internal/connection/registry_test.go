// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connection

import (
	"reflect"
	"testing"

	"malloy/cli/internal/bridge/model"
	"malloy/cli/internal/errors"

	"github.com/rs/zerolog"
)

func TestRegistryGet(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	main := &stubConnection{name: "main"}
	r.Add(main)

	got, err := r.Get("main")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != main {
		t.Errorf("Get() = %v, want %v", got, main)
	}

	got, err = r.Get("missing")
	if got != nil {
		t.Errorf("Get(missing) = %v, want nil", got)
	}
	if !errors.IsKind(err, errors.ConnectionNotFound) {
		t.Errorf("Get(missing) error kind = %v, want %v", errors.KindOf(err), errors.ConnectionNotFound)
	}
}

func TestRegistryAddLastWriteWins(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	first := &stubConnection{name: "main"}
	second := &stubConnection{name: "main"}
	r.Add(first)
	r.Add(&stubConnection{name: "other"})
	r.Add(second)

	got, _ := r.Get("main")
	if got != second {
		t.Error("Get() returned the replaced connection")
	}
	if want := []string{"main", "other"}; !reflect.DeepEqual(r.Names(), want) {
		t.Errorf("Names() = %v, want %v", r.Names(), want)
	}
	if name, _ := r.DefaultName(); name != "main" {
		t.Errorf("DefaultName() = %v, want main", name)
	}
}

func TestRegistryDefaultName(t *testing.T) {
	tests := []struct {
		name       string
		add        []string
		setDefault string
		want       string
		wantKind   errors.Kind
	}{
		{name: "empty registry", wantKind: errors.NoConnections},
		{name: "first added", add: []string{"bq", "duck", "pg"}, want: "bq"},
		{name: "explicit default", add: []string{"bq", "duck"}, setDefault: "duck", want: "duck"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(zerolog.Nop())
			for _, n := range tt.add {
				r.Add(&stubConnection{name: n})
			}
			if tt.setDefault != "" {
				if err := r.SetDefault(tt.setDefault); err != nil {
					t.Fatalf("SetDefault() error = %v", err)
				}
			}
			got, err := r.DefaultName()
			if tt.wantKind != "" {
				if !errors.IsKind(err, tt.wantKind) {
					t.Errorf("DefaultName() error = %v, want kind %v", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("DefaultName() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DefaultName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistrySetDefaultUnknown(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Add(&stubConnection{name: "main"})
	if err := r.SetDefault("nope"); !errors.IsKind(err, errors.ConnectionNotFound) {
		t.Errorf("SetDefault(nope) error = %v, want kind %v", err, errors.ConnectionNotFound)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Add(&stubConnection{name: "a"})
	r.Add(&stubConnection{name: "b"})
	_ = r.SetDefault("a")

	r.Remove("a")

	if _, err := r.Get("a"); err == nil {
		t.Error("Get() found a removed connection")
	}
	if name, _ := r.DefaultName(); name != "b" {
		t.Errorf("DefaultName() = %v, want b", name)
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Add(&stubConnection{name: "first"})
	r.Add(&stubConnection{name: "second"})

	tests := []struct {
		in       string
		want     string
		wantKind errors.Kind
	}{
		{in: model.DefaultConnection, want: "first"},
		{in: "second", want: "second"},
		{in: "unknown", wantKind: errors.ConnectionNotFound},
	}
	for _, tt := range tests {
		name, conn, err := r.Resolve(tt.in)
		if tt.wantKind != "" {
			if !errors.IsKind(err, tt.wantKind) {
				t.Errorf("Resolve(%q) error = %v, want kind %v", tt.in, err, tt.wantKind)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", tt.in, err)
		}
		if name != tt.want || conn.Name() != tt.want {
			t.Errorf("Resolve(%q) = %v, want %v", tt.in, name, tt.want)
		}
	}
}

func TestRegistryResolveDefaultOnEmpty(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	if _, _, err := r.Resolve(model.DefaultConnection); !errors.IsKind(err, errors.NoConnections) {
		t.Errorf("Resolve() error = %v, want kind %v", err, errors.NoConnections)
	}
}

type closingConnection struct {
	stubConnection
	closed bool
}

func (c *closingConnection) Close() error {
	c.closed = true
	return nil
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	c := &closingConnection{stubConnection: stubConnection{name: "pg"}}
	r.Add(c)
	r.Add(&stubConnection{name: "plain"})

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !c.closed {
		t.Error("Close() did not close the connection")
	}
}
