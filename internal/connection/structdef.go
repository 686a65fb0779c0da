// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connection

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// StructDef is a table, SQL block or nested record in the compiler's schema format.
type StructDef struct {
	Type               string             `json:"type"`
	Name               string             `json:"name"`
	Dialect            string             `json:"dialect"`
	StructSource       StructSource       `json:"structSource"`
	StructRelationship StructRelationship `json:"structRelationship"`
	Fields             []Field            `json:"fields"`
}

type StructSource struct {
	Type      string `json:"type"`
	TablePath string `json:"tablePath,omitempty"`
	Method    string `json:"method,omitempty"`
}

type StructRelationship struct {
	Type           string `json:"type"`
	ConnectionName string `json:"connectionName,omitempty"`
	Field          string `json:"field,omitempty"`
	IsArray        *bool  `json:"isArray,omitempty"`
}

// Field is either a scalar *FieldDef or a nested *StructDef.
type Field interface {
	FieldName() string
}

// FieldDef is a scalar column.
type FieldDef struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NumberType string `json:"numberType,omitempty"`
	RawType    string `json:"rawType,omitempty"`
}

func (f *FieldDef) FieldName() string  { return f.Name }
func (s *StructDef) FieldName() string { return s.Name }

// FieldType is the compiler type a database type maps to.
type FieldType struct {
	Type       string
	NumberType string
}

var (
	String    = FieldType{Type: "string"}
	Integer   = FieldType{Type: "number", NumberType: "integer"}
	Float     = FieldType{Type: "number", NumberType: "float"}
	Date      = FieldType{Type: "date"}
	Timestamp = FieldType{Type: "timestamp"}
	Boolean   = FieldType{Type: "boolean"}
)

// TypeMap maps upper-cased database type names, without precision arguments,
// to compiler types.
type TypeMap map[string]FieldType

// Column is a column name and its database type as reported by the source.
// Array columns use a trailing "[]" and record columns use STRUCT(name type, ...).
type Column struct {
	Name string
	Type string
}

// Describer turns database columns into struct definitions for one connection.
type Describer struct {
	Dialect        string
	ConnectionName string
	Types          TypeMap
}

// Table describes a base table at path.
func (d Describer) Table(name, path string, cols []Column) (*StructDef, error) {
	fields, err := d.fields(cols)
	if err != nil {
		return nil, err
	}
	return &StructDef{
		Type:               "struct",
		Name:               name,
		Dialect:            d.Dialect,
		StructSource:       StructSource{Type: "table", TablePath: path},
		StructRelationship: StructRelationship{Type: "basetable", ConnectionName: d.ConnectionName},
		Fields:             fields,
	}, nil
}

// SQLBlock describes the result of a SQL block used as a subquery.
func (d Describer) SQLBlock(name string, cols []Column) (*StructDef, error) {
	fields, err := d.fields(cols)
	if err != nil {
		return nil, err
	}
	return &StructDef{
		Type:               "struct",
		Name:               name,
		Dialect:            d.Dialect,
		StructSource:       StructSource{Type: "sql", Method: "subquery"},
		StructRelationship: StructRelationship{Type: "basetable", ConnectionName: d.ConnectionName},
		Fields:             fields,
	}, nil
}

// Entry encodes a struct definition as a schema entry.
func Entry(def *StructDef) (SchemaEntry, error) {
	b, err := json.Marshal(def)
	if err != nil {
		return nil, err
	}
	return SchemaEntry(b), nil
}

var (
	arrayType  = regexp.MustCompile(`^(.*)\[\]$`)
	structType = regexp.MustCompile(`(?i)^STRUCT\((.*)\)$`)
	columnDecl = regexp.MustCompile(`^(\S+) (.*)$`)
)

func (d Describer) fields(cols []Column) ([]Field, error) {
	fields := make([]Field, 0, len(cols))
	for _, col := range cols {
		fieldType := strings.TrimSpace(col.Type)
		m := arrayType.FindStringSubmatch(fieldType)
		isArray := m != nil
		if isArray {
			fieldType = m[1]
		}

		if sm := structType.FindStringSubmatch(fieldType); sm != nil {
			sub, err := splitStruct(sm[1])
			if err != nil {
				return nil, err
			}
			inner, err := d.fields(sub)
			if err != nil {
				return nil, err
			}
			kind := "inline"
			if isArray {
				kind = "nested"
			}
			fields = append(fields, &StructDef{
				Type:               "struct",
				Name:               col.Name,
				Dialect:            d.Dialect,
				StructSource:       StructSource{Type: kind},
				StructRelationship: StructRelationship{Type: kind, Field: col.Name, IsArray: boolPtr(false)},
				Fields:             inner,
			})
			continue
		}

		scalar := d.scalar(col.Name, fieldType)
		if isArray {
			scalar.Name = "value"
			fields = append(fields, &StructDef{
				Type:               "struct",
				Name:               col.Name,
				Dialect:            d.Dialect,
				StructSource:       StructSource{Type: "nested"},
				StructRelationship: StructRelationship{Type: "nested", Field: col.Name, IsArray: boolPtr(true)},
				Fields:             []Field{scalar},
			})
			continue
		}
		fields = append(fields, scalar)
	}
	return fields, nil
}

func (d Describer) scalar(name, rawType string) *FieldDef {
	if ft, ok := d.Types[baseType(rawType)]; ok {
		return &FieldDef{Name: name, Type: ft.Type, NumberType: ft.NumberType}
	}
	return &FieldDef{Name: name, Type: "unsupported", RawType: strings.ToLower(rawType)}
}

// baseType strips precision arguments: DECIMAL(18,3) -> DECIMAL.
func baseType(raw string) string {
	if i := strings.IndexByte(raw, '('); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}

// splitStruct parses the body of STRUCT(...) into columns, splitting on
// top-level commas only.
func splitStruct(body string) ([]Column, error) {
	var parts []string
	var cur strings.Builder
	depth := 0
	for _, c := range body {
		switch {
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		case c == '(':
			depth++
		case c == ')':
			depth--
		}
		cur.WriteRune(c)
	}
	parts = append(parts, strings.TrimSpace(cur.String()))

	cols := make([]Column, 0, len(parts))
	for _, p := range parts {
		m := columnDecl.FindStringSubmatch(p)
		if m == nil {
			return nil, fmt.Errorf("malformed struct definition %q", body)
		}
		cols = append(cols, Column{Name: m[1], Type: m[2]})
	}
	return cols, nil
}

func boolPtr(b bool) *bool { return &b }
