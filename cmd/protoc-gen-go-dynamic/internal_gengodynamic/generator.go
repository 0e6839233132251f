// Package internal_gengodynamic generates, for every message in a compiled
// .proto file, a Go stub type that carries its schema as a runtime
// reflectgen.Base lookup instead of the hand-written marshal/unmarshal code
// protoc-gen-go itself would emit. The stub exists so a caller can hold a
// typed Go value (for documentation, for passing around, for embedding in
// larger structs) whose ReflectMessage descriptor still resolves against a
// descriptor pool built at runtime, mirroring how a dynamic.Message resolves
// against one.
package internal_gengodynamic

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	reflectgenPackage = protogen.GoImportPath("github.com/dynproto/reflect/reflectgen")
)

// GenerateFile emits the stub types for a single compiled file into g.
func GenerateFile(gen *protogen.Plugin, file *protogen.File, g *protogen.GeneratedFile) {
	f := &fileInfo{File: file}
	f.allMessages = append(f.allMessages, f.Messages...)
	walkMessages(f.Messages, func(m *protogen.Message) {
		f.allMessages = append(f.allMessages, m.Messages...)
	})

	g.P("// Code generated by protoc-gen-go-dynamic. DO NOT EDIT.")
	g.P("// source: ", f.Desc.Path())
	g.P()
	g.P("package ", f.GoPackageName)
	g.P()

	rawVar := genRawDescriptorSet(gen, g, f)

	for _, message := range f.allMessages {
		if message.Desc.IsMapEntry() {
			continue
		}
		genMessage(g, f, message, rawVar)
	}
}

type fileInfo struct {
	*protogen.File
	allMessages []*protogen.Message
}

func walkMessages(messages []*protogen.Message, f func(*protogen.Message)) {
	for _, m := range messages {
		f(m)
		walkMessages(m.Messages, f)
	}
}

// genRawDescriptorSet embeds the full transitive FileDescriptorSet the
// request was compiled from (every file gen.Request carries, not just this
// one) so a stub's reflectgen.Config can resolve cross-file message and enum
// references without a separate descriptor-set file on disk.
//
// The const is split on the 0x0a byte the way protoc-gen-go's own rawDesc
// literal is, purely to avoid emitting one very long source line.
func genRawDescriptorSet(gen *protogen.Plugin, g *protogen.GeneratedFile, f *fileInfo) string {
	fds := &descriptorpb.FileDescriptorSet{File: gen.Request.GetProtoFile()}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(fds)
	if err != nil {
		gen.Error(fmt.Errorf("marshaling file descriptor set: %w", err))
		return ""
	}

	dataVar := rawDescriptorSetVarName(f) + "Data"
	fmt.Fprint(g, "const ", dataVar, ` = ""`)
	for _, line := range bytes.SplitAfter(b, []byte{'\x0a'}) {
		g.P("+")
		fmt.Fprintf(g, "%q", line)
	}
	g.P()
	g.P()

	rawVar := rawDescriptorSetVarName(f)
	g.P("var ", rawVar, " = []byte(", dataVar, ")")
	g.P()
	return rawVar
}

func rawDescriptorSetVarName(f *fileInfo) string {
	return "file_" + cleanGoName(f.Desc.Path()) + "_rawDescriptorSet"
}

func cleanGoName(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.' || c == '/' || c == '-':
			b = append(b, '_')
		default:
			b = append(b, c)
		}
	}
	return string(b)
}

// genMessage emits a Go stub type for message, embedding *reflectgen.Base and
// a constructor that resolves the message's descriptor from rawVar.
func genMessage(g *protogen.GeneratedFile, f *fileInfo, message *protogen.Message, rawVar string) {
	ident := message.GoIdent

	g.P("// ", ident.GoName, " is a dynamic-reflection stub for ", message.Desc.FullName(), ".")
	g.P("type ", ident, " struct {")
	g.P("*", reflectgenPackage.Ident("Base"))
	g.P("}")
	g.P()

	g.P("func New", ident, "() *", ident, " {")
	g.P("m := &", ident, "{}")
	g.P("base, err := ", reflectgenPackage.Ident("NewBase"), "(m, ", reflectgenPackage.Ident("Config"), "{")
	g.P("FileDescriptorSetBytes: ", rawVar, ",")
	g.P("MessageName: ", fmt.Sprintf("%q", string(message.Desc.FullName())), ",")
	g.P("})")
	g.P("if err != nil {")
	g.P("panic(err)")
	g.P("}")
	g.P("m.Base = base")
	g.P("return m")
	g.P("}")
	g.P()
}
