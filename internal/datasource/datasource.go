// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package datasource opens database connections from configured DSNs.
package datasource

import (
	"context"
	"errors"
	"fmt"

	"malloy/cli/internal/config"
	"malloy/cli/internal/connection"
	"malloy/cli/internal/connection/mysql"
	"malloy/cli/internal/connection/postgres"
	"malloy/cli/internal/connection/sqlite"
	"malloy/cli/internal/dsn"
	apperrors "malloy/cli/internal/errors"
	"malloy/cli/internal/keychain"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
)

// Pinger is implemented by connections that can verify connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SecretStore looks up connection DSNs. keychain.Manager implements it.
type SecretStore interface {
	LoadDSN(connection string) (string, error)
}

// Spec is everything needed to open one connection.
type Spec struct {
	Name    string
	DSN     string
	HomeDir string
}

// Open opens the connection described by spec. Server connections are
// established lazily; use Pinger to check reachability.
func Open(ctx context.Context, spec Spec, log zerolog.Logger) (connection.Connection, error) {
	info, err := dsn.ParseInfo(spec.DSN)
	if err != nil {
		return nil, err
	}
	resolver, err := dsn.ResolverFor(spec.DSN)
	if err != nil {
		return nil, err
	}
	normalized, err := resolver.Normalize(info)
	if err != nil {
		return nil, err
	}

	switch info.Type {
	case dsn.DBTypePostgreSQL:
		c, err := postgres.Open(ctx, spec.Name, normalized, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case dsn.DBTypeMySQL:
		c, err := mysql.Open(spec.Name, normalized, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case dsn.DBTypeSQLite:
		home, err := homedir.Expand(spec.HomeDir)
		if err != nil {
			return nil, fmt.Errorf("expand home dir %q: %w", spec.HomeDir, err)
		}
		c, err := sqlite.Open(spec.Name, normalized, home, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported database type %s", info.Type)
	}
}

// SpecFor resolves the DSN of a configured connection: the config value wins,
// otherwise the secret store is consulted.
func SpecFor(cc config.ConnectionConfig, secrets SecretStore) (Spec, error) {
	spec := Spec{Name: cc.Name, DSN: cc.DSN, HomeDir: cc.HomeDir}
	if spec.DSN != "" {
		return spec, nil
	}
	if secrets == nil {
		return spec, apperrors.Newf(apperrors.ConfigInvalid, "connection %q has no DSN", cc.Name)
	}
	d, err := secrets.LoadDSN(cc.Name)
	if errors.Is(err, keychain.ErrNotFound) {
		return spec, apperrors.Newf(apperrors.ConfigInvalid, "connection %q has no DSN; run 'malloy connections add %s <dsn>'", cc.Name, cc.Name)
	}
	if err != nil {
		return spec, fmt.Errorf("load DSN for %q: %w", cc.Name, err)
	}
	spec.DSN = d
	return spec, nil
}

// OpenAll opens every configured connection into reg and applies the
// configured default. On error the connections opened so far are closed.
func OpenAll(ctx context.Context, cfg config.Config, secrets SecretStore, reg *connection.Registry, log zerolog.Logger) error {
	for _, cc := range cfg.Connections {
		spec, err := SpecFor(cc, secrets)
		if err != nil {
			_ = reg.Close()
			return err
		}
		conn, err := Open(ctx, spec, log)
		if err != nil {
			_ = reg.Close()
			return fmt.Errorf("open connection %q: %w", cc.Name, err)
		}
		reg.Add(conn)
		log.Debug().Str("connection", cc.Name).Msg("connection opened")
	}
	if cfg.DefaultConnection != "" {
		return reg.SetDefault(cfg.DefaultConnection)
	}
	return nil
}
