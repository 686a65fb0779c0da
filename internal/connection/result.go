// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connection

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Result is a fully materialised query result.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Error   string   `json:"error,omitempty"`
}

// MarshalJSON converts driver values that do not serialise cleanly: 16-byte
// values become UUID strings and other byte slices become \x-prefixed hex.
func (r Result) MarshalJSON() ([]byte, error) {
	type Alias Result
	a := Alias(r)

	if len(r.Rows) > 0 {
		serializableRows := make([][]any, len(r.Rows))
		for i, row := range r.Rows {
			serializableRows[i] = make([]any, len(row))
			for j, val := range row {
				serializableRows[i][j] = jsonValue(val)
			}
		}
		a.Rows = serializableRows
	}
	return json.Marshal(a)
}

func jsonValue(val any) any {
	switch v := val.(type) {
	case []byte:
		if len(v) == 16 {
			return uuid.UUID(v).String()
		}
		return fmt.Sprintf("\\x%x", v)
	case [16]byte:
		return uuid.UUID(v).String()
	default:
		return v
	}
}

// Collect reads rows to the end and closes them. A read error stops
// collection; the partial result is returned together with the error and is
// also recorded in Result.Error.
func Collect(rows Rows) (Result, error) {
	defer rows.Close()

	res := Result{
		Columns: rows.Columns(),
		Rows:    [][]any{},
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			res.Error = err.Error()
			return res, err
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		res.Error = err.Error()
		return res, err
	}
	return res, nil
}
