package dyntext_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/dynproto/reflect/dynamic"
	"github.com/dynproto/reflect/dynamic/dyntext"
	"github.com/dynproto/reflect/pool"
	"github.com/dynproto/reflect/protoval"
)

func strp(s string) *string { return &s }
func i32p(i int32) *int32   { return &i }

// gizmoDescriptor builds:
//
//	message Gizmo {
//	  string name = 1;
//	  int32 count = 2;
//	  repeated string tags = 3;
//	  Gizmo child = 4;
//	}
func gizmoDescriptor(t *testing.T) protoval.MessageDescriptor {
	t.Helper()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("gizmo.proto"),
		Package: strp("gizmos.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Gizmo"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: strp("name"), Number: i32p(1), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
					{Name: strp("count"), Number: i32p(2), Type: descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
					{Name: strp("tags"), Number: i32p(3), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()},
					{Name: strp("child"), Number: i32p(4), Type: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), TypeName: strp("Gizmo")},
				},
			},
		},
	}
	p := pool.New()
	require.NoError(t, p.AddFileDescriptorProto(f))
	md := p.FindMessageByName("gizmos.v1.Gizmo")
	require.NotNil(t, md, "expected to find gizmos.v1.Gizmo")
	return md
}

func TestMarshalCompact(t *testing.T) {
	md := gizmoDescriptor(t)
	m := dynamic.New(md)
	m.Set(md.Fields().ByName("name"), protoval.ValueOfString("widget"))
	m.Set(md.Fields().ByName("count"), protoval.ValueOfInt32(3))

	b, err := dyntext.Marshal(m)
	require.NoError(t, err)
	got := string(b)
	assert.NotContains(t, got, "\n", "compact output should not contain newlines")
	assert.Contains(t, got, `name: "widget"`)
	assert.Contains(t, got, "count: 3")
}

func TestMarshalMultiline(t *testing.T) {
	md := gizmoDescriptor(t)
	m := dynamic.New(md)
	m.Set(md.Fields().ByName("name"), protoval.ValueOfString("widget"))
	m.Set(md.Fields().ByName("count"), protoval.ValueOfInt32(3))

	opts := dyntext.MarshalOptions{Multiline: true}
	b, err := opts.Marshal(m)
	require.NoError(t, err)
	got := string(b)
	assert.Contains(t, got, "\n")
	assert.False(t, strings.HasPrefix(got, "\n"), "leading newline should be trimmed, got %q", got)
}

func TestTextRoundTripNestedAndRepeated(t *testing.T) {
	md := gizmoDescriptor(t)
	m := dynamic.New(md)
	m.Set(md.Fields().ByName("name"), protoval.ValueOfString("outer"))

	tagsFd := md.Fields().ByName("tags")
	tags := dynamic.NewList(tagsFd)
	tags.Append(protoval.ValueOfString("x"))
	tags.Append(protoval.ValueOfString("y"))
	m.Set(tagsFd, protoval.ValueOfList(tags))

	childFd := md.Fields().ByName("child")
	child := dynamic.New(md)
	child.Set(md.Fields().ByName("name"), protoval.ValueOfString("inner"))
	m.Set(childFd, protoval.ValueOfMessage(child))

	b, err := dyntext.Marshal(m)
	require.NoError(t, err)

	got, err := dyntext.Unmarshal(b, md)
	require.NoError(t, err, "unmarshal %q", b)
	assert.Equal(t, "outer", got.Get(md.Fields().ByName("name")).String())

	gotTags := got.Get(tagsFd).List()
	require.Equal(t, 2, gotTags.Len())
	assert.Equal(t, "x", gotTags.Get(0).String())
	assert.Equal(t, "y", gotTags.Get(1).String())

	gotChild := got.Get(childFd).Message()
	assert.Equal(t, "inner", gotChild.Get(md.Fields().ByName("name")).String())
}

func TestUnmarshalRejectsUnknownField(t *testing.T) {
	md := gizmoDescriptor(t)
	_, err := dyntext.Unmarshal([]byte(`bogus: "x"`), md)
	require.Error(t, err)
	assert.IsType(t, &dyntext.ParseError{}, err)
}

func TestUnmarshalMergesRepeatedScalarFieldEntries(t *testing.T) {
	md := gizmoDescriptor(t)
	got, err := dyntext.Unmarshal([]byte(`tags: "a" tags: "b"`), md)
	require.NoError(t, err)
	tags := got.Get(md.Fields().ByName("tags")).List()
	require.Equal(t, 2, tags.Len())
	assert.Equal(t, "a", tags.Get(0).String())
	assert.Equal(t, "b", tags.Get(1).String())
}
