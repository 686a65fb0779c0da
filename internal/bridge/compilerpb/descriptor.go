// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package compilerpb provides the protobuf wire format of the compiler service.
// The message set is described at init time with descriptorpb and built into a
// file descriptor with protodesc; messages are instances of dynamicpb so they can
// be sent through any gRPC stream using the default proto codec.
//
// The package converts between the transport-agnostic model types and the wire
// messages, and provides the deterministic encoding used for response fingerprints.
package compilerpb

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	// Package is the protobuf package of the compiler service.
	Package = "malloy.services.v1"
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = Package + ".Compiler"
	// CompileStreamMethod is the full method name of the bidirectional compile stream.
	CompileStreamMethod = "/" + ServiceName + "/CompileStream"
)

// CompileRequest.Type values.
const (
	requestUnknown         protoreflect.EnumNumber = 0
	requestCompile         protoreflect.EnumNumber = 1
	requestReferences      protoreflect.EnumNumber = 2
	requestTableSchemas    protoreflect.EnumNumber = 3
	requestSQLBlockSchemas protoreflect.EnumNumber = 4
)

// CompilerRequest.Type values (the compiler's side of the exchange).
const (
	responseUnknown         protoreflect.EnumNumber = 0
	responseImport          protoreflect.EnumNumber = 1
	responseTableSchemas    protoreflect.EnumNumber = 2
	responseSQLBlockSchemas protoreflect.EnumNumber = 3
	responseComplete        protoreflect.EnumNumber = 4
)

var (
	file protoreflect.FileDescriptor

	documentDesc        protoreflect.MessageDescriptor
	sqlBlockSchemaDesc  protoreflect.MessageDescriptor
	sqlBlockDesc        protoreflect.MessageDescriptor
	compileRequestDesc  protoreflect.MessageDescriptor
	compilerRequestDesc protoreflect.MessageDescriptor
)

func init() {
	fd, err := protodesc.NewFile(fileProto(), new(protoregistry.Files))
	if err != nil {
		panic(fmt.Sprintf("compilerpb: build descriptor: %v", err))
	}
	file = fd
	msgs := fd.Messages()
	documentDesc = msgs.ByName("CompileDocument")
	sqlBlockSchemaDesc = msgs.ByName("SqlBlockSchema")
	sqlBlockDesc = msgs.ByName("SqlBlock")
	compileRequestDesc = msgs.ByName("CompileRequest")
	compilerRequestDesc = msgs.ByName("CompilerRequest")
}

// File returns the descriptor of compiler.proto.
func File() protoreflect.FileDescriptor { return file }

func fileProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("malloy/services/v1/compiler.proto"),
		Package: proto.String(Package),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("CompileDocument"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("url", 1),
					scalar("content", 2),
				},
			},
			{
				Name: proto.String("SqlBlockSchema"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("name", 1),
					scalar("sql", 2),
					scalar("schema", 3),
				},
			},
			{
				Name: proto.String("SqlBlock"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("name", 1),
					scalar("sql", 2),
				},
			},
			{
				Name: proto.String("CompileRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					enumField("type", 1, ".malloy.services.v1.CompileRequest.Type"),
					message("document", 2, ".malloy.services.v1.CompileDocument", false),
					message("references", 3, ".malloy.services.v1.CompileDocument", true),
					scalar("schema", 4),
					message("sql_block_schemas", 5, ".malloy.services.v1.SqlBlockSchema", true),
					scalar("query", 6),
					scalar("named_query", 7),
				},
				EnumType: []*descriptorpb.EnumDescriptorProto{
					enum("Type", "UNKNOWN", "COMPILE", "REFERENCES", "TABLE_SCHEMAS", "SQL_BLOCK_SCHEMAS"),
				},
			},
			{
				Name: proto.String("CompilerRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					enumField("type", 1, ".malloy.services.v1.CompilerRequest.Type"),
					repeatedScalar("import_urls", 2),
					repeatedScalar("table_schemas", 3),
					message("sql_block", 4, ".malloy.services.v1.SqlBlock", false),
					scalar("content", 5),
					repeatedScalar("connections", 6),
				},
				EnumType: []*descriptorpb.EnumDescriptorProto{
					enum("Type", "UNKNOWN", "IMPORT", "TABLE_SCHEMAS", "SQL_BLOCK_SCHEMAS", "COMPLETE"),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{
			{
				Name: proto.String("Compiler"),
				Method: []*descriptorpb.MethodDescriptorProto{
					{
						Name:            proto.String("CompileStream"),
						InputType:       proto.String(".malloy.services.v1.CompileRequest"),
						OutputType:      proto.String(".malloy.services.v1.CompilerRequest"),
						ClientStreaming: proto.Bool(true),
						ServerStreaming: proto.Bool(true),
					},
				},
			},
		},
	}
}

func scalar(name string, num int32) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
	}
}

func repeatedScalar(name string, num int32) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, num)
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func message(name string, num int32, typeName string, repeated bool) *descriptorpb.FieldDescriptorProto {
	label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	if repeated {
		label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	}
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(num),
		Label:    label.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: proto.String(typeName),
	}
}

func enumField(name string, num int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(num),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum(),
		TypeName: proto.String(typeName),
	}
}

// enum builds an enum whose values are numbered in declaration order from zero.
func enum(name string, values ...string) *descriptorpb.EnumDescriptorProto {
	e := &descriptorpb.EnumDescriptorProto{Name: proto.String(name)}
	for i, v := range values {
		e.Value = append(e.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v),
			Number: proto.Int32(int32(i)),
		})
	}
	return e
}
