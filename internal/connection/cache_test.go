// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connection

import (
	"context"
	stderrors "errors"
	"reflect"
	"sort"
	"sync"
	"testing"

	"malloy/cli/internal/errors"
	"malloy/cli/internal/metrics"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func refs(conn string, paths ...string) []TableRef {
	out := make([]TableRef, len(paths))
	for i, p := range paths {
		out[i] = TableRef{Key: conn + ":" + p, Path: p}
	}
	return out
}

func keysOf(m SchemaMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestSchemaCacheServesRepeatsFromCache(t *testing.T) {
	ctx := context.Background()
	conn := &stubConnection{name: "main"}
	cache := NewSchemaCache(nil, zerolog.Nop())

	first, err := cache.GetSchemaForTables(ctx, "main", conn, refs("main", "airports"))
	if err != nil {
		t.Fatalf("GetSchemaForTables() error = %v", err)
	}
	second, err := cache.GetSchemaForTables(ctx, "main", conn, refs("main", "airports"))
	if err != nil {
		t.Fatalf("GetSchemaForTables() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("second lookup = %v, want %v", second, first)
	}
	if got := conn.calls(); got != 1 {
		t.Errorf("connection fetched %d times, want 1", got)
	}
}

func TestSchemaCacheFetchesOnlyUncached(t *testing.T) {
	ctx := context.Background()
	conn := &stubConnection{name: "main"}
	cache := NewSchemaCache(nil, zerolog.Nop())

	if _, err := cache.GetSchemaForTables(ctx, "main", conn, refs("main", "a", "b")); err != nil {
		t.Fatalf("GetSchemaForTables() error = %v", err)
	}
	got, err := cache.GetSchemaForTables(ctx, "main", conn, refs("main", "a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("GetSchemaForTables() error = %v", err)
	}

	if want := []string{"main:a", "main:b", "main:c", "main:d"}; !reflect.DeepEqual(keysOf(got), want) {
		t.Errorf("keys = %v, want %v", keysOf(got), want)
	}
	if conn.calls() != 2 {
		t.Fatalf("connection fetched %d times, want 2", conn.calls())
	}
	if want := refs("main", "c", "d"); !reflect.DeepEqual(conn.fetches[1], want) {
		t.Errorf("second fetch = %v, want %v", conn.fetches[1], want)
	}
}

func TestSchemaCacheSkipsConnectionWhenAllCached(t *testing.T) {
	ctx := context.Background()
	conn := &stubConnection{name: "main"}
	cache := NewSchemaCache(nil, zerolog.Nop())

	_, _ = cache.GetSchemaForTables(ctx, "main", conn, refs("main", "a"))
	_, _ = cache.GetSchemaForTables(ctx, "main", conn, refs("main", "a"))
	_, _ = cache.GetSchemaForTables(ctx, "main", conn, nil)

	if got := conn.calls(); got != 1 {
		t.Errorf("connection fetched %d times, want 1", got)
	}
}

func TestSchemaCachePartitionsByConnection(t *testing.T) {
	ctx := context.Background()
	main := &stubConnection{name: "main"}
	other := &stubConnection{name: "other"}
	cache := NewSchemaCache(nil, zerolog.Nop())

	tables := []TableRef{{Key: "t", Path: "t"}}
	if _, err := cache.GetSchemaForTables(ctx, "main", main, tables); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.GetSchemaForTables(ctx, "other", other, tables); err != nil {
		t.Fatal(err)
	}
	if main.calls() != 1 || other.calls() != 1 {
		t.Errorf("fetches = (%d, %d), want one per connection", main.calls(), other.calls())
	}
	if cache.Len("main") != 1 || cache.Len("other") != 1 {
		t.Errorf("Len() = (%d, %d), want (1, 1)", cache.Len("main"), cache.Len("other"))
	}
}

func TestSchemaCacheFetchError(t *testing.T) {
	ctx := context.Background()
	boom := stderrors.New("relation does not exist")
	conn := &stubConnection{name: "main", err: boom}
	cache := NewSchemaCache(nil, zerolog.Nop())

	_, err := cache.GetSchemaForTables(ctx, "main", conn, refs("main", "missing"))
	if !errors.IsKind(err, errors.SchemaFailed) {
		t.Errorf("error kind = %v, want %v", errors.KindOf(err), errors.SchemaFailed)
	}
	if !stderrors.Is(err, boom) {
		t.Errorf("error %v does not wrap the connection error", err)
	}
	if cache.Len("main") != 0 {
		t.Errorf("failed fetch left %d cached entries", cache.Len("main"))
	}
}

func TestSchemaCacheMissingKeyIsError(t *testing.T) {
	ctx := context.Background()
	conn := &stubConnection{name: "main", drop: map[string]bool{"main:b": true}}
	cache := NewSchemaCache(nil, zerolog.Nop())

	_, err := cache.GetSchemaForTables(ctx, "main", conn, refs("main", "a", "b"))
	if !errors.IsKind(err, errors.SchemaFailed) {
		t.Fatalf("error = %v, want kind %v", err, errors.SchemaFailed)
	}
	if cache.Len("main") != 0 {
		t.Errorf("partial fetch left %d cached entries", cache.Len("main"))
	}
}

func TestSchemaCacheConcurrentSessionsFetchOnce(t *testing.T) {
	ctx := context.Background()
	conn := &stubConnection{name: "main"}
	cache := NewSchemaCache(nil, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.GetSchemaForTables(ctx, "main", conn, refs("main", "a", "b")); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	for _, key := range []string{"main:a", "main:b"} {
		if got := conn.fetchCount(key); got != 1 {
			t.Errorf("%s fetched %d times, want 1", key, got)
		}
	}
}

func TestSchemaCacheRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	cache := NewSchemaCache(metrics.NewWithRegistry(reg), zerolog.Nop())
	conn := &stubConnection{name: "main"}

	_, _ = cache.GetSchemaForTables(ctx, "main", conn, refs("main", "a"))
	_, _ = cache.GetSchemaForTables(ctx, "main", conn, refs("main", "a", "b"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	got := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "malloy_schema_cache_lookups_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" {
					got[lp.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	if got["hit"] != 1 || got["miss"] != 2 {
		t.Errorf("lookups = %v, want hit=1 miss=2", got)
	}
}

func TestProperty_SchemaCacheIdempotence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("second lookup matches first and fetches each key at most once", prop.ForAll(
		func(paths []string) bool {
			ctx := context.Background()
			conn := &stubConnection{name: "main"}
			cache := NewSchemaCache(nil, zerolog.Nop())
			tables := refs("main", paths...)

			first, err := cache.GetSchemaForTables(ctx, "main", conn, tables)
			if err != nil {
				return false
			}
			second, err := cache.GetSchemaForTables(ctx, "main", conn, tables)
			if err != nil || !reflect.DeepEqual(first, second) {
				return false
			}
			for _, tr := range tables {
				if conn.fetchCount(tr.Key) != 1 {
					return false
				}
			}
			return conn.calls() <= 1
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("mixed lookups fetch exactly the uncached subset once", prop.ForAll(
		func(paths []string, split int) bool {
			ctx := context.Background()
			conn := &stubConnection{name: "main"}
			cache := NewSchemaCache(nil, zerolog.Nop())

			unique := dedupe(paths)
			if len(unique) == 0 {
				return true
			}
			split %= len(unique) + 1
			warm, cold := unique[:split], unique[split:]

			if len(warm) > 0 {
				if _, err := cache.GetSchemaForTables(ctx, "main", conn, refs("main", warm...)); err != nil {
					return false
				}
			}
			before := conn.calls()

			got, err := cache.GetSchemaForTables(ctx, "main", conn, refs("main", unique...))
			if err != nil || len(got) != len(unique) {
				return false
			}
			if len(cold) == 0 {
				return conn.calls() == before
			}
			return conn.calls() == before+1 && reflect.DeepEqual(conn.fetches[before], refs("main", cold...))
		},
		gen.SliceOf(gen.Identifier()),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
