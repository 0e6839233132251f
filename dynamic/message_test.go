package dynamic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/dynproto/reflect/pool"
	"github.com/dynproto/reflect/protoval"
)

func strp(s string) *string { return &s }
func i32p(i int32) *int32   { return &i }

// widgetPool builds a small schema exercising scalars, a repeated field, a
// map field, a oneof, a nested message reference, and an enum field:
//
//	message Widget {
//	  string name = 1;
//	  repeated int32 counts = 2;
//	  map<string, string> tags = 3;
//	  oneof choice {
//	    string choice_a = 4;
//	    int32 choice_b = 5;
//	  }
//	  Widget child = 6;
//	  Color color = 7;
//	}
//	enum Color { RED = 0; GREEN = 1; }
func widgetPool(t *testing.T) *pool.Pool {
	t.Helper()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("widget.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{
			{
				Name: strp("Color"),
				Value: []*descriptorpb.EnumValueDescriptorProto{
					{Name: strp("RED"), Number: i32p(0)},
					{Name: strp("GREEN"), Number: i32p(1)},
				},
			},
		},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Widget"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: strp("name"), Number: i32p(1), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
					{Name: strp("counts"), Number: i32p(2), Type: descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()},
					{Name: strp("tags"), Number: i32p(3), Type: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(), TypeName: strp("TagsEntry")},
					{Name: strp("choice_a"), Number: i32p(4), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), OneofIndex: i32p(0)},
					{Name: strp("choice_b"), Number: i32p(5), Type: descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), OneofIndex: i32p(0)},
					{Name: strp("child"), Number: i32p(6), Type: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), TypeName: strp("Widget")},
					{Name: strp("color"), Number: i32p(7), Type: descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), TypeName: strp("Color")},
				},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{
					{Name: strp("choice")},
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{
						Name:    strp("TagsEntry"),
						Options: &descriptorpb.MessageOptions{MapEntry: boolp(true)},
						Field: []*descriptorpb.FieldDescriptorProto{
							{Name: strp("key"), Number: i32p(1), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
							{Name: strp("value"), Number: i32p(2), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
						},
					},
				},
			},
		},
	}

	p := pool.New()
	require.NoError(t, p.AddFileDescriptorProto(f))
	return p
}

func boolp(b bool) *bool { return &b }

func widgetDescriptor(t *testing.T) protoval.MessageDescriptor {
	t.Helper()
	p := widgetPool(t)
	md := p.FindMessageByName("widgets.v1.Widget")
	require.NotNil(t, md, "expected to find widgets.v1.Widget")
	return md
}

func TestMessageSetGetHasClear(t *testing.T) {
	md := widgetDescriptor(t)
	m := New(md)

	nameFd := md.Fields().ByName("name")
	assert.False(t, m.Has(nameFd), "unset proto3 string field should not be present")

	m.Set(nameFd, protoval.ValueOfString("gizmo"))
	assert.True(t, m.Has(nameFd), "expected name to be present after Set")
	assert.Equal(t, "gizmo", m.Get(nameFd).String())

	m.Clear(nameFd)
	assert.False(t, m.Has(nameFd), "expected name to be absent after Clear")
	assert.Equal(t, "", m.Get(nameFd).String())
}

func TestMessageProto3ZeroValueNotPresent(t *testing.T) {
	md := widgetDescriptor(t)
	m := New(md)
	nameFd := md.Fields().ByName("name")

	// Setting a proto3 scalar to its zero value must read back as absent:
	// presence for such fields is computed from the stored value, not a
	// separate "was Set ever called" bit.
	m.Set(nameFd, protoval.ValueOfString(""))
	assert.False(t, m.Has(nameFd), "setting a proto3 scalar to its zero value should not count as present")
}

func TestOneofExclusivity(t *testing.T) {
	md := widgetDescriptor(t)
	m := New(md)
	a := md.Fields().ByName("choice_a")
	b := md.Fields().ByName("choice_b")
	oneof := md.Oneofs().ByName("choice")

	m.Set(a, protoval.ValueOfString("hello"))
	require.Equal(t, a, m.WhichOneof(oneof))

	m.Set(b, protoval.ValueOfInt32(7))
	assert.False(t, m.Has(a), "setting choice_b must clear choice_a")
	assert.Equal(t, b, m.WhichOneof(oneof))
}

func TestRepeatedFieldList(t *testing.T) {
	md := widgetDescriptor(t)
	m := New(md)
	counts := md.Fields().ByName("counts")

	assert.False(t, m.Has(counts), "empty repeated field should not be present")

	l := NewList(counts)
	l.Append(protoval.ValueOfInt32(1))
	l.Append(protoval.ValueOfInt32(2))
	m.Set(counts, protoval.ValueOfList(l))

	require.True(t, m.Has(counts), "expected counts to be present once non-empty")
	got := m.Get(counts).List()
	require.Equal(t, 2, got.Len())
	assert.Equal(t, int64(1), got.Get(0).Int())
	assert.Equal(t, int64(2), got.Get(1).Int())
}

func TestMapField(t *testing.T) {
	md := widgetDescriptor(t)
	m := New(md)
	tags := md.Fields().ByName("tags")
	require.True(t, tags.IsMap(), "expected tags to be a map field")

	mp := NewMap(tags)
	mp.Set(protoval.MapKeyOf(protoval.ValueOfString("env")), protoval.ValueOfString("prod"))
	m.Set(tags, protoval.ValueOfMap(mp))

	got := m.Get(tags).Map()
	require.Equal(t, 1, got.Len())
	v := got.Get(protoval.MapKeyOf(protoval.ValueOfString("env")))
	assert.Equal(t, "prod", v.String())
}

func TestRangeVisitsInFieldNumberOrder(t *testing.T) {
	md := widgetDescriptor(t)
	m := New(md)
	m.Set(md.Fields().ByName("color"), protoval.ValueOfEnum(1))
	m.Set(md.Fields().ByName("name"), protoval.ValueOfString("x"))

	var order []protoval.FieldNumber
	m.Range(func(fd protoval.FieldDescriptor, v protoval.Value) bool {
		order = append(order, fd.Number())
		return true
	})
	require.Equal(t, []protoval.FieldNumber{1, 7}, order)
}
