// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package render prints compile results and query results for the terminal.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"malloy/cli/internal/compiler"
	"malloy/cli/internal/connection"
	"malloy/cli/internal/errors"
	"malloy/cli/internal/logging"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

// Null is how SQL NULL is shown in tables.
const Null = "NULL"

// Format selects how query results are printed.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", errors.Newf(errors.InvalidInput, "unknown format %q (want table or json)", s)
	}
}

// Result prints res in format f.
func Result(w io.Writer, res connection.Result, f Format) error {
	if f == FormatJSON {
		return JSON(w, res)
	}
	return Table(w, res)
}

// Table prints res as a table with a header row and a row count.
func Table(w io.Writer, res connection.Result) error {
	data := make(pterm.TableData, 0, len(res.Rows)+1)
	data = append(data, res.Columns)
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		data = append(data, cells)
	}

	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, out); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, pterm.NewStyle(pterm.FgGray).Sprint(rowCount(len(res.Rows))))
	return err
}

// JSON prints res as indented JSON.
func JSON(w io.Writer, res connection.Result) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// SQL prints generated SQL followed by the connection it targets.
func SQL(w io.Writer, res *compiler.Result) error {
	if _, err := fmt.Fprintln(w, strings.TrimRight(res.SQL, "\n")); err != nil {
		return err
	}
	if res.ConnectionName != "" {
		_, err := fmt.Fprintln(w, pterm.NewStyle(pterm.FgGray).Sprint("-- connection: "+res.ConnectionName))
		return err
	}
	return nil
}

// Failure formats a failed compilation for the user. Channel problems get the
// compiler-unreachable explanation; everything else shows the diagnostic.
func Failure(res *compiler.Result) string {
	if res == nil {
		return ""
	}
	switch res.Kind {
	case errors.ChannelFailed, errors.StreamClosed, errors.ServiceFailed:
		return logging.FormatStreamError(res.Diagnostic)
	}

	var b strings.Builder
	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(title(res.Kind)))
	b.WriteString("\n\n")
	b.WriteString(logging.Mask(res.Diagnostic))
	b.WriteString("\n")
	return b.String()
}

func title(k errors.Kind) string {
	switch k {
	case errors.ImportFailed:
		return "Import Failed"
	case errors.ConnectionNotFound, errors.NoConnections:
		return "Connection Not Found"
	case errors.SchemaFailed:
		return "Schema Lookup Failed"
	case errors.ProtocolLoop:
		return "Compiler Stuck"
	case errors.InvalidInput:
		return "Invalid Input"
	default:
		return "Compilation Failed"
	}
}

// FormatValue renders one driver value for a table cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return Null
	case string:
		return x
	case []byte:
		if len(x) == 16 {
			return uuid.UUID(x).String()
		}
		return string(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func rowCount(n int) string {
	if n == 1 {
		return "1 row"
	}
	return fmt.Sprintf("%d rows", n)
}
