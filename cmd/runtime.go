// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"malloy/cli/internal/bridge/grpcclient"
	"malloy/cli/internal/compiler"
	"malloy/cli/internal/datasource"
	"malloy/cli/internal/keychain"
	"malloy/cli/internal/metrics"
	"malloy/cli/internal/service"
	"malloy/cli/internal/source"
)

// environment is a runtime with the processes and servers it depends on.
type environment struct {
	rt         *compiler.Runtime
	service    *service.Manager
	metricsSrv *http.Server
}

// openEnvironment builds a runtime from the loaded config: the compiler
// service, local and S3 readers and every configured connection.
func openEnvironment(ctx context.Context) (*environment, error) {
	mgr := service.New(service.Options{
		ExternalAddress: cfg.Compiler.Address,
		BinaryPath:      cfg.Compiler.ServicePath,
		Logger:          logger,
	})
	collector := metrics.New()
	reader := &source.Router{
		Local: source.NewFileReader(),
		S3: source.NewS3Reader(source.S3Config{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		}),
	}

	rt := compiler.NewRuntime(compiler.RuntimeConfig{
		Dialer:  grpcclient.Dialer{},
		Service: mgr,
		Reader:  reader,
		Metrics: collector,
		Logger:  logger,
	})

	var secrets datasource.SecretStore
	if km, err := keychain.GetManager(); err == nil {
		secrets = km
	} else {
		logger.Debug().Err(err).Msg("keychain unavailable; using DSNs from config only")
	}
	if err := datasource.OpenAll(ctx, cfg, secrets, rt.Registry(), logger); err != nil {
		return nil, err
	}

	env := &environment{rt: rt, service: mgr}
	if cfg.MetricsAddr != "" {
		env.serveMetrics(cfg.MetricsAddr, collector)
	}
	return env, nil
}

func (e *environment) serveMetrics(addr string, c *metrics.Collector) {
	e.metricsSrv = &http.Server{
		Addr:              addr,
		Handler:           c.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := e.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
}

// Close closes connections, stops a spawned compiler and the metrics server.
func (e *environment) Close() error {
	var errs []error
	errs = append(errs, e.rt.Close(), e.service.Shutdown())
	if e.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		errs = append(errs, e.metricsSrv.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
