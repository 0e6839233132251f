package dynamic

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/dynproto/reflect/pool"
	"github.com/dynproto/reflect/protoval"
)

func TestWireRoundTripScalarsAndRepeated(t *testing.T) {
	md := widgetDescriptor(t)
	m := New(md)
	m.Set(md.Fields().ByName("name"), protoval.ValueOfString("gizmo"))

	counts := NewList(md.Fields().ByName("counts"))
	counts.Append(protoval.ValueOfInt32(10))
	counts.Append(protoval.ValueOfInt32(-5))
	m.Set(md.Fields().ByName("counts"), protoval.ValueOfList(counts))

	b, err := Marshal(m)
	require.NoError(t, err)

	got, err := Unmarshal(b, md)
	require.NoError(t, err)
	assert.Equal(t, "gizmo", got.Get(md.Fields().ByName("name")).String())

	gotCounts := got.Get(md.Fields().ByName("counts")).List()
	require.Equal(t, 2, gotCounts.Len())
	assert.Equal(t, []int64{10, -5}, []int64{gotCounts.Get(0).Int(), gotCounts.Get(1).Int()})
}

func TestWireRoundTripMapAndNestedMessage(t *testing.T) {
	md := widgetDescriptor(t)
	m := New(md)

	tagsFd := md.Fields().ByName("tags")
	tags := NewMap(tagsFd)
	tags.Set(protoval.MapKeyOf(protoval.ValueOfString("a")), protoval.ValueOfString("1"))
	tags.Set(protoval.MapKeyOf(protoval.ValueOfString("b")), protoval.ValueOfString("2"))
	m.Set(tagsFd, protoval.ValueOfMap(tags))

	childFd := md.Fields().ByName("child")
	child := New(childFd.MessageType())
	child.Set(md.Fields().ByName("name"), protoval.ValueOfString("inner"))
	m.Set(childFd, protoval.ValueOfMessage(child))

	b, err := Marshal(m)
	require.NoError(t, err)
	got, err := Unmarshal(b, md)
	require.NoError(t, err)

	gotTags := got.Get(tagsFd).Map()
	require.Equal(t, 2, gotTags.Len())

	wantTags := map[string]string{"a": "1", "b": "2"}
	gotTagsMap := make(map[string]string, gotTags.Len())
	gotTags.Range(func(k protoval.MapKey, v protoval.Value) bool {
		gotTagsMap[k.Value().String()] = v.String()
		return true
	})
	if diff := cmp.Diff(wantTags, gotTagsMap); diff != "" {
		t.Errorf("tags round-tripped wrong (-want +got):\n%s", diff)
	}

	gotChild := got.Get(childFd).Message()
	assert.Equal(t, "inner", gotChild.Get(md.Fields().ByName("name")).String())
}

func TestWireUnknownFieldsPreservedOnReencode(t *testing.T) {
	md := widgetDescriptor(t)
	m := New(md)
	m.Set(md.Fields().ByName("name"), protoval.ValueOfString("known"))

	// Field number 99 has no descriptor in this schema: it must survive a
	// decode/re-encode cycle as an opaque UnknownField, not get dropped.
	base, err := Marshal(m)
	require.NoError(t, err)
	// Append a varint field #99 = 42 by hand (tag = 99<<3 | 0 = 792).
	withUnknown := append(append([]byte(nil), base...), encodeVarintTag(99, 0)...)
	withUnknown = append(withUnknown, 42)

	decoded, err := Unmarshal(withUnknown, md)
	require.NoError(t, err)
	require.Len(t, decoded.Unknown(), 1)
	assert.Equal(t, protoval.FieldNumber(99), decoded.Unknown()[0].Number)

	reencoded, err := Marshal(decoded)
	require.NoError(t, err)
	redecoded, err := Unmarshal(reencoded, md)
	require.NoError(t, err)
	require.Len(t, redecoded.Unknown(), 1)
	assert.Equal(t, protoval.FieldNumber(99), redecoded.Unknown()[0].Number)
	assert.Equal(t, "known", redecoded.Get(md.Fields().ByName("name")).String())
}

// gapDescriptor builds a two-field schema with a gap between field numbers
// (1 and 10), so a field number decoded in between is genuinely unknown
// rather than shadowing a declared field.
func gapDescriptor(t *testing.T) protoval.MessageDescriptor {
	t.Helper()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("gap.proto"),
		Package: strp("gap.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Sparse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: strp("low"), Number: i32p(1), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
					{Name: strp("high"), Number: i32p(10), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
				},
			},
		},
	}
	p := pool.New()
	require.NoError(t, p.AddFileDescriptorProto(f))
	md := p.FindMessageByName("gap.v1.Sparse")
	require.NotNil(t, md)
	return md
}

func TestWireUnknownFieldInterleavedWithKnownFields(t *testing.T) {
	md := gapDescriptor(t)
	m := New(md)
	m.Set(md.Fields().ByName("low"), protoval.ValueOfString("a"))
	m.Set(md.Fields().ByName("high"), protoval.ValueOfString("z"))

	b, err := Marshal(m)
	require.NoError(t, err)

	// Splice an unknown varint field #5 between "low" (#1) and "high" (#10):
	// the result is already in canonical ascending-number order, so
	// re-encoding must reproduce it exactly rather than moving #5 to the end.
	lowTag := encodeVarintTag(1, 2) // wire type 2 = length-delimited, matches string
	lowEnd := len(lowTag) + 1 + len("a")
	withUnknown := append(append([]byte(nil), b[:lowEnd]...), encodeVarintTag(5, 0)...)
	withUnknown = append(withUnknown, 42)
	withUnknown = append(withUnknown, b[lowEnd:]...)

	decoded, err := Unmarshal(withUnknown, md)
	require.NoError(t, err)
	require.Len(t, decoded.Unknown(), 1)
	assert.Equal(t, protoval.FieldNumber(5), decoded.Unknown()[0].Number)
	assert.Equal(t, "a", decoded.Get(md.Fields().ByName("low")).String())
	assert.Equal(t, "z", decoded.Get(md.Fields().ByName("high")).String())

	reencoded, err := Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, withUnknown, reencoded, "re-encoding already-canonical bytes must reproduce them exactly")
}

// encodeVarintTag returns the wire-format tag byte(s) for (number, wireType),
// small enough here to inline rather than import protowire just for a test.
func encodeVarintTag(number protoval.FieldNumber, wireType protoval.WireType) []byte {
	tag := uint64(number)<<3 | uint64(wireType)
	var b []byte
	for tag >= 0x80 {
		b = append(b, byte(tag)|0x80)
		tag >>= 7
	}
	return append(b, byte(tag))
}
