package dynjson_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/dynproto/reflect/dynamic"
	"github.com/dynproto/reflect/dynjson"
	"github.com/dynproto/reflect/pool"
	"github.com/dynproto/reflect/protoval"
)

func strp(s string) *string { return &s }
func i32p(i int32) *int32   { return &i }

// gadgetDescriptor builds:
//
//	message Gadget {
//	  string name = 1;
//	  int32 count = 2;
//	  repeated string tags = 3;
//	  Color color = 4;
//	}
//	enum Color { RED = 0; GREEN = 1; }
func gadgetDescriptor(t *testing.T) protoval.MessageDescriptor {
	t.Helper()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("gadget.proto"),
		Package: strp("gadgets.v1"),
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
				Name: strp("Gadget"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: strp("name"), Number: i32p(1), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
					{Name: strp("count"), Number: i32p(2), Type: descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
					{Name: strp("tags"), Number: i32p(3), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()},
					{Name: strp("color"), Number: i32p(4), Type: descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), TypeName: strp("Color")},
				},
			},
		},
	}
	p := pool.New()
	require.NoError(t, p.AddFileDescriptorProto(f))
	md := p.FindMessageByName("gadgets.v1.Gadget")
	require.NotNil(t, md, "expected to find gadgets.v1.Gadget")
	return md
}

func TestMarshalDefaultOmitsUnpopulated(t *testing.T) {
	md := gadgetDescriptor(t)
	m := dynamic.New(md)
	m.Set(md.Fields().ByName("name"), protoval.ValueOfString("widget-1"))

	b, err := dynjson.Marshal(m)
	require.NoError(t, err)
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &obj))

	_, hasCount := obj["count"]
	assert.False(t, hasCount, "count should be omitted when unset and EmitUnpopulated is false")
	assert.Equal(t, "widget-1", obj["name"])
}

func TestMarshalEmitUnpopulated(t *testing.T) {
	md := gadgetDescriptor(t)
	m := dynamic.New(md)

	opts := dynjson.MarshalOptions{EmitUnpopulated: true}
	b, err := opts.Marshal(m)
	require.NoError(t, err)
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &obj))

	require.Contains(t, obj, "count")
	assert.Equal(t, float64(0), obj["count"])
}

func TestMarshalUseProtoNamesAndEnumNumbers(t *testing.T) {
	md := gadgetDescriptor(t)
	m := dynamic.New(md)
	m.Set(md.Fields().ByName("color"), protoval.ValueOfEnum(1))

	opts := dynjson.MarshalOptions{UseProtoNames: true, UseEnumNumbers: true, EmitUnpopulated: true}
	b, err := opts.Marshal(m)
	require.NoError(t, err)
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &obj))

	require.Contains(t, obj, "color")
	assert.Equal(t, float64(1), obj["color"])
}

func TestJSONRoundTrip(t *testing.T) {
	md := gadgetDescriptor(t)
	m := dynamic.New(md)
	m.Set(md.Fields().ByName("name"), protoval.ValueOfString("widget-2"))
	m.Set(md.Fields().ByName("count"), protoval.ValueOfInt32(42))
	m.Set(md.Fields().ByName("color"), protoval.ValueOfEnum(1))

	tagsFd := md.Fields().ByName("tags")
	tags := dynamic.NewList(tagsFd)
	tags.Append(protoval.ValueOfString("a"))
	tags.Append(protoval.ValueOfString("b"))
	m.Set(tagsFd, protoval.ValueOfList(tags))

	b, err := dynjson.Marshal(m)
	require.NoError(t, err)

	got, err := dynjson.Unmarshal(b, md)
	require.NoError(t, err)
	assert.Equal(t, "widget-2", got.Get(md.Fields().ByName("name")).String())
	assert.Equal(t, int64(42), got.Get(md.Fields().ByName("count")).Int())
	assert.Equal(t, protoval.EnumNumber(1), got.Get(md.Fields().ByName("color")).Enum())

	gotTags := got.Get(tagsFd).List()
	require.Equal(t, 2, gotTags.Len())
	wantTags := []string{"a", "b"}
	gotTagsSlice := []string{gotTags.Get(0).String(), gotTags.Get(1).String()}
	if diff := cmp.Diff(wantTags, gotTagsSlice); diff != "" {
		t.Errorf("tags round-tripped wrong (-want +got):\n%s", diff)
	}
}

func TestUnmarshalEnumByName(t *testing.T) {
	md := gadgetDescriptor(t)
	got, err := dynjson.Unmarshal([]byte(`{"color": "GREEN"}`), md)
	require.NoError(t, err)
	assert.Equal(t, protoval.EnumNumber(1), got.Get(md.Fields().ByName("color")).Enum())
}
