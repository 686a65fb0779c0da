// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package compilerpb

import (
	"bytes"
	"reflect"
	"testing"

	"malloy/cli/internal/bridge/model"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func TestDescriptor(t *testing.T) {
	svc := File().Services().ByName("Compiler")
	if svc == nil {
		t.Fatal("Compiler service missing from descriptor")
	}
	method := svc.Methods().ByName("CompileStream")
	if method == nil || !method.IsStreamingClient() || !method.IsStreamingServer() {
		t.Fatal("CompileStream must be a bidirectional streaming method")
	}
	if got := "/" + string(svc.FullName()) + "/" + string(method.Name()); got != CompileStreamMethod {
		t.Errorf("method path = %v, want %v", got, CompileStreamMethod)
	}
}

// Every response survives the trip through protobuf bytes, which is what the
// gRPC codec does on the wire.
func TestResponseWireRoundTrip(t *testing.T) {
	responses := []model.Response{
		model.ImportResponse{URLs: []string{"mlr:///models/base.malloy"}},
		model.TableSchemasResponse{TableKeys: []string{"main:airports", "default_connection:flights"}},
		model.SQLBlockSchemasResponse{Block: model.SQLBlock{Name: "md5:/main//abc", SQL: "SELECT 1 AS one"}},
		model.CompleteResponse{SQL: "SELECT a, COUNT(1) FROM t GROUP BY 1", Connections: []string{"main"}},
		model.UnknownResponse{Diagnostic: "syntax error at line 3"},
	}

	for _, resp := range responses {
		t.Run(string(resp.Kind()), func(t *testing.T) {
			b, err := MarshalResponse(resp)
			if err != nil {
				t.Fatalf("MarshalResponse() error = %v", err)
			}
			m := NewResponseMessage()
			if err := proto.Unmarshal(b, m); err != nil {
				t.Fatalf("proto.Unmarshal() error = %v", err)
			}
			got, err := DecodeResponse(m)
			if err != nil {
				t.Fatalf("DecodeResponse() error = %v", err)
			}
			if !reflect.DeepEqual(got, resp) {
				t.Errorf("DecodeResponse() = %#v, want %#v", got, resp)
			}
		})
	}
}

func TestRequestWireRoundTrip(t *testing.T) {
	requests := []model.Request{
		model.CompileRequest{Document: model.Document{URL: "mlr:///a.malloy", Content: "source: x is t"}, Query: "run: x -> { select: * }"},
		model.CompileRequest{Document: model.Document{URL: "mlr:///a.malloy"}, NamedQuery: "by_state"},
		model.ReferencesRequest{Documents: []model.Document{{URL: "mlr:///b.malloy", Content: "b"}, {URL: "mlr:///c.malloy", Content: "c"}}},
		model.TableSchemasRequest{SchemaJSON: `{"schemas":{}}`},
		model.SQLBlockSchemasRequest{Entries: []model.SQLBlockSchema{{Name: "md5:/main//abc", SQL: "SELECT 1", SchemaJSON: "{}"}}},
	}

	for _, req := range requests {
		m, err := EncodeRequest(req)
		if err != nil {
			t.Fatalf("EncodeRequest(%T) error = %v", req, err)
		}
		b, err := proto.Marshal(m)
		if err != nil {
			t.Fatalf("proto.Marshal() error = %v", err)
		}
		back := NewRequestMessage()
		if err := proto.Unmarshal(b, back); err != nil {
			t.Fatalf("proto.Unmarshal() error = %v", err)
		}
		got, err := DecodeRequest(back)
		if err != nil {
			t.Fatalf("DecodeRequest() error = %v", err)
		}
		if !reflect.DeepEqual(got, req) {
			t.Errorf("DecodeRequest() = %#v, want %#v", got, req)
		}
	}
}

func TestMarshalResponseDeterministic(t *testing.T) {
	a := model.TableSchemasResponse{TableKeys: []string{"main:a", "main:b"}}
	b := model.TableSchemasResponse{TableKeys: []string{"main:a", "main:b"}}
	c := model.TableSchemasResponse{TableKeys: []string{"main:b", "main:a"}}

	ab, _ := MarshalResponse(a)
	bb, _ := MarshalResponse(b)
	cb, _ := MarshalResponse(c)
	if !bytes.Equal(ab, bb) {
		t.Error("equal responses encoded differently")
	}
	if bytes.Equal(ab, cb) {
		t.Error("different responses encoded identically")
	}
}

func TestDecodeResponseUnknownType(t *testing.T) {
	m := NewResponseMessage()
	m.Set(compilerRequestDesc.Fields().ByName("type"), protoreflect.ValueOfEnum(42))
	if _, err := DecodeResponse(m); err == nil {
		t.Error("expected error for unknown response type")
	}
}

func TestDecodeResponseWrongMessage(t *testing.T) {
	if _, err := DecodeResponse(NewRequestMessage()); err == nil {
		t.Error("expected error when decoding a request message as a response")
	}
}
