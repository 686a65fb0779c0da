// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import "testing"

func TestSQLiteResolver(t *testing.T) {
	resolver := NewSQLiteResolver()

	tests := []struct {
		dsn         string
		want        string
		expectError bool
	}{
		{dsn: "sqlite://data/flights.db", want: "data/flights.db"},
		{dsn: "sqlite:/abs/flights.db", want: "/abs/flights.db"},
		{dsn: "SQLITE://Flights.db", want: "Flights.db"},
		{dsn: ":memory:", want: ":memory:"},
		{dsn: "flights.sqlite", want: "flights.sqlite"},
		{dsn: "sqlite://", expectError: true},
		{dsn: "  ", expectError: true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			info, err := resolver.Parse(tt.dsn)
			if tt.expectError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info.Type != DBTypeSQLite {
				t.Errorf("Type = %v, want %v", info.Type, DBTypeSQLite)
			}
			got, err := resolver.Normalize(info)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Normalize() = %v, want %v", got, tt.want)
			}
		})
	}
}
