// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package compilerpb

import (
	"fmt"

	"malloy/cli/internal/bridge/model"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// NewRequestMessage returns an empty CompileRequest wire message.
func NewRequestMessage() *dynamicpb.Message { return dynamicpb.NewMessage(compileRequestDesc) }

// NewResponseMessage returns an empty CompilerRequest wire message, ready for RecvMsg.
func NewResponseMessage() *dynamicpb.Message { return dynamicpb.NewMessage(compilerRequestDesc) }

// EncodeRequest converts a client request into its wire message.
func EncodeRequest(req model.Request) (*dynamicpb.Message, error) {
	m := NewRequestMessage()
	f := compileRequestDesc.Fields()
	switch r := req.(type) {
	case model.CompileRequest:
		m.Set(f.ByName("type"), protoreflect.ValueOfEnum(requestCompile))
		setDocument(m.Mutable(f.ByName("document")).Message(), r.Document)
		if r.NamedQuery != "" {
			m.Set(f.ByName("named_query"), protoreflect.ValueOfString(r.NamedQuery))
		} else {
			m.Set(f.ByName("query"), protoreflect.ValueOfString(r.Query))
		}
	case model.ReferencesRequest:
		m.Set(f.ByName("type"), protoreflect.ValueOfEnum(requestReferences))
		list := m.Mutable(f.ByName("references")).List()
		for _, doc := range r.Documents {
			el := list.NewElement()
			setDocument(el.Message(), doc)
			list.Append(el)
		}
	case model.TableSchemasRequest:
		m.Set(f.ByName("type"), protoreflect.ValueOfEnum(requestTableSchemas))
		m.Set(f.ByName("schema"), protoreflect.ValueOfString(r.SchemaJSON))
	case model.SQLBlockSchemasRequest:
		m.Set(f.ByName("type"), protoreflect.ValueOfEnum(requestSQLBlockSchemas))
		list := m.Mutable(f.ByName("sql_block_schemas")).List()
		sf := sqlBlockSchemaDesc.Fields()
		for _, e := range r.Entries {
			el := list.NewElement()
			em := el.Message()
			em.Set(sf.ByName("name"), protoreflect.ValueOfString(e.Name))
			em.Set(sf.ByName("sql"), protoreflect.ValueOfString(e.SQL))
			em.Set(sf.ByName("schema"), protoreflect.ValueOfString(e.SchemaJSON))
			list.Append(el)
		}
	default:
		return nil, fmt.Errorf("compilerpb: unsupported request %T", req)
	}
	return m, nil
}

// DecodeRequest converts a wire CompileRequest back into a model request.
// It is the server half of the codec and is used by in-process test servers.
func DecodeRequest(m protoreflect.Message) (model.Request, error) {
	if m.Descriptor().FullName() != compileRequestDesc.FullName() {
		return nil, fmt.Errorf("compilerpb: unexpected message %s", m.Descriptor().FullName())
	}
	f := compileRequestDesc.Fields()
	switch t := m.Get(f.ByName("type")).Enum(); t {
	case requestCompile:
		return model.CompileRequest{
			Document:   getDocument(m.Get(f.ByName("document")).Message()),
			Query:      m.Get(f.ByName("query")).String(),
			NamedQuery: m.Get(f.ByName("named_query")).String(),
		}, nil
	case requestReferences:
		list := m.Get(f.ByName("references")).List()
		docs := make([]model.Document, 0, list.Len())
		for i := 0; i < list.Len(); i++ {
			docs = append(docs, getDocument(list.Get(i).Message()))
		}
		return model.ReferencesRequest{Documents: docs}, nil
	case requestTableSchemas:
		return model.TableSchemasRequest{SchemaJSON: m.Get(f.ByName("schema")).String()}, nil
	case requestSQLBlockSchemas:
		list := m.Get(f.ByName("sql_block_schemas")).List()
		sf := sqlBlockSchemaDesc.Fields()
		entries := make([]model.SQLBlockSchema, 0, list.Len())
		for i := 0; i < list.Len(); i++ {
			em := list.Get(i).Message()
			entries = append(entries, model.SQLBlockSchema{
				Name:       em.Get(sf.ByName("name")).String(),
				SQL:        em.Get(sf.ByName("sql")).String(),
				SchemaJSON: em.Get(sf.ByName("schema")).String(),
			})
		}
		return model.SQLBlockSchemasRequest{Entries: entries}, nil
	default:
		return nil, fmt.Errorf("compilerpb: unknown compile request type %d", t)
	}
}

// EncodeResponse converts a compiler response into its wire message.
func EncodeResponse(resp model.Response) (*dynamicpb.Message, error) {
	m := NewResponseMessage()
	f := compilerRequestDesc.Fields()
	switch r := resp.(type) {
	case model.ImportResponse:
		m.Set(f.ByName("type"), protoreflect.ValueOfEnum(responseImport))
		appendStrings(m.Mutable(f.ByName("import_urls")).List(), r.URLs)
	case model.TableSchemasResponse:
		m.Set(f.ByName("type"), protoreflect.ValueOfEnum(responseTableSchemas))
		appendStrings(m.Mutable(f.ByName("table_schemas")).List(), r.TableKeys)
	case model.SQLBlockSchemasResponse:
		m.Set(f.ByName("type"), protoreflect.ValueOfEnum(responseSQLBlockSchemas))
		bf := sqlBlockDesc.Fields()
		block := m.Mutable(f.ByName("sql_block")).Message()
		block.Set(bf.ByName("name"), protoreflect.ValueOfString(r.Block.Name))
		block.Set(bf.ByName("sql"), protoreflect.ValueOfString(r.Block.SQL))
	case model.CompleteResponse:
		m.Set(f.ByName("type"), protoreflect.ValueOfEnum(responseComplete))
		m.Set(f.ByName("content"), protoreflect.ValueOfString(r.SQL))
		appendStrings(m.Mutable(f.ByName("connections")).List(), r.Connections)
	case model.UnknownResponse:
		m.Set(f.ByName("type"), protoreflect.ValueOfEnum(responseUnknown))
		m.Set(f.ByName("content"), protoreflect.ValueOfString(r.Diagnostic))
	default:
		return nil, fmt.Errorf("compilerpb: unsupported response %T", resp)
	}
	return m, nil
}

// DecodeResponse converts a wire CompilerRequest into a model response.
// Type numbers this client does not know are an error.
func DecodeResponse(m protoreflect.Message) (model.Response, error) {
	if m.Descriptor().FullName() != compilerRequestDesc.FullName() {
		return nil, fmt.Errorf("compilerpb: unexpected message %s", m.Descriptor().FullName())
	}
	f := compilerRequestDesc.Fields()
	switch t := m.Get(f.ByName("type")).Enum(); t {
	case responseImport:
		return model.ImportResponse{URLs: getStrings(m.Get(f.ByName("import_urls")).List())}, nil
	case responseTableSchemas:
		return model.TableSchemasResponse{TableKeys: getStrings(m.Get(f.ByName("table_schemas")).List())}, nil
	case responseSQLBlockSchemas:
		bf := sqlBlockDesc.Fields()
		block := m.Get(f.ByName("sql_block")).Message()
		return model.SQLBlockSchemasResponse{Block: model.SQLBlock{
			Name: block.Get(bf.ByName("name")).String(),
			SQL:  block.Get(bf.ByName("sql")).String(),
		}}, nil
	case responseComplete:
		return model.CompleteResponse{
			SQL:         m.Get(f.ByName("content")).String(),
			Connections: getStrings(m.Get(f.ByName("connections")).List()),
		}, nil
	case responseUnknown:
		return model.UnknownResponse{Diagnostic: m.Get(f.ByName("content")).String()}, nil
	default:
		return nil, fmt.Errorf("compilerpb: unknown compiler response type %d", t)
	}
}

// MarshalResponse returns the deterministic wire encoding of resp. Equal
// responses always produce equal bytes.
func MarshalResponse(resp model.Response) ([]byte, error) {
	m, err := EncodeResponse(resp)
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(m)
}

func setDocument(m protoreflect.Message, doc model.Document) {
	f := documentDesc.Fields()
	m.Set(f.ByName("url"), protoreflect.ValueOfString(doc.URL))
	m.Set(f.ByName("content"), protoreflect.ValueOfString(doc.Content))
}

func getDocument(m protoreflect.Message) model.Document {
	f := documentDesc.Fields()
	return model.Document{
		URL:     m.Get(f.ByName("url")).String(),
		Content: m.Get(f.ByName("content")).String(),
	}
}

func appendStrings(list protoreflect.List, values []string) {
	for _, v := range values {
		list.Append(protoreflect.ValueOfString(v))
	}
}

func getStrings(list protoreflect.List) []string {
	if list.Len() == 0 {
		return nil
	}
	out := make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		out = append(out, list.Get(i).String())
	}
	return out
}
