package internal_gengodynamic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"
)

// buildTestPlugin constructs a protogen.Plugin for a single file declaring
//
//	message Order {
//	  string id = 1;
//	  message Line {
//	    int32 quantity = 1;
//	  }
//	  Line line = 2;
//	}
func buildTestPlugin(t *testing.T) *protogen.Plugin {
	t.Helper()
	fd := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("order.proto"),
		Package: proto.String("orders.v1"),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/example/gen/orders/v1"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Order"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:   proto.String("id"),
						Number: proto.Int32(1),
						Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
						Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
					},
					{
						Name:     proto.String("line"),
						Number:   proto.Int32(2),
						Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
						Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
						TypeName: proto.String(".orders.v1.Order.Line"),
					},
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{
						Name: proto.String("Line"),
						Field: []*descriptorpb.FieldDescriptorProto{
							{
								Name:   proto.String("quantity"),
								Number: proto.Int32(1),
								Type:   descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(),
								Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
							},
						},
					},
				},
			},
		},
	}

	req := &pluginpb.CodeGeneratorRequest{
		FileToGenerate: []string{"order.proto"},
		ProtoFile:      []*descriptorpb.FileDescriptorProto{fd},
	}
	opts := protogen.Options{}
	plugin, err := opts.New(req)
	require.NoError(t, err)
	return plugin
}

func TestGenerateFileEmitsStubTypes(t *testing.T) {
	gen := buildTestPlugin(t)
	var f *protogen.File
	for _, file := range gen.Files {
		if file.Generate {
			f = file
		}
	}
	require.NotNil(t, f, "expected order.proto to be marked for generation")

	g := gen.NewGeneratedFile(f.GeneratedFilenamePrefix+"_dynamic.pb.go", f.GoImportPath)
	GenerateFile(gen, f, g)

	content, err := g.Content()
	require.NoError(t, err)
	src := string(content)

	for _, want := range []string{
		"type Order struct",
		"func NewOrder() *Order",
		"type Order_Line struct",
		"func NewOrder_Line() *Order_Line",
		"reflectgen.Config{",
		"FileDescriptorSetBytes:",
		`MessageName:            "orders.v1.Order"`,
		`MessageName:            "orders.v1.Order.Line"`,
	} {
		assert.Contains(t, src, want)
	}
}

func TestGenerateFileSkipsMapEntries(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("catalog.proto"),
		Package: proto.String("catalog.v1"),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/example/gen/catalog/v1"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Catalog"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:     proto.String("labels"),
						Number:   proto.Int32(1),
						Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
						Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
						TypeName: proto.String(".catalog.v1.Catalog.LabelsEntry"),
					},
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{
						Name:    proto.String("LabelsEntry"),
						Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
						Field: []*descriptorpb.FieldDescriptorProto{
							{Name: proto.String("key"), Number: proto.Int32(1), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
							{Name: proto.String("value"), Number: proto.Int32(2), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
						},
					},
				},
			},
		},
	}
	req := &pluginpb.CodeGeneratorRequest{
		FileToGenerate: []string{"catalog.proto"},
		ProtoFile:      []*descriptorpb.FileDescriptorProto{fd},
	}
	gen, err := (protogen.Options{}).New(req)
	require.NoError(t, err)
	f := gen.Files[0]
	g := gen.NewGeneratedFile(f.GeneratedFilenamePrefix+"_dynamic.pb.go", f.GoImportPath)
	GenerateFile(gen, f, g)

	content, err := g.Content()
	require.NoError(t, err)
	src := string(content)
	assert.NotContains(t, src, "type Catalog_LabelsEntry struct", "map-entry synthetic message should not get a stub type")
	assert.Contains(t, src, "type Catalog struct")
}
