package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/dynproto/reflect/protoval"
)

func strp(s string) *string { return &s }
func i32p(i int32) *int32   { return &i }

func scalarField(name string, number int32, kind descriptorpb.FieldDescriptorProto_Type, label descriptorpb.FieldDescriptorProto_Label) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   strp(name),
		Number: i32p(number),
		Type:   kind.Enum(),
		Label:  label.Enum(),
	}
}

func personFile() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    strp("person.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Person"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
					scalarField("age", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
					{
						Name:     strp("tags"),
						Number:   i32p(3),
						Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
						Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
						JsonName: strp("tags"),
					},
				},
			},
		},
	}
}

func TestAddFileDescriptorProtoResolvesMessage(t *testing.T) {
	p := New()
	require.NoError(t, p.AddFileDescriptorProto(personFile()))

	md := p.FindMessageByName("widgets.v1.Person")
	require.NotNil(t, md, "expected to find widgets.v1.Person")
	assert.Equal(t, "widgets.v1.Person", string(md.FullName()))

	fields := md.Fields()
	require.Equal(t, 3, fields.Len())
	name := fields.ByName("name")
	require.NotNil(t, name)
	assert.Equal(t, protoval.StringKind, name.Kind())
	tags := fields.ByNumber(3)
	require.NotNil(t, tags)
	assert.Equal(t, protoval.Repeated, tags.Cardinality())
}

func TestDuplicateFileRejected(t *testing.T) {
	p := New()
	require.NoError(t, p.AddFileDescriptorProto(personFile()))

	err := p.AddFileDescriptorProto(personFile())
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok, "got %T, want *Error", err)
	assert.Equal(t, DuplicateFile, perr.Kind)
}

func TestDuplicateNameRolledBack(t *testing.T) {
	p := New()
	require.NoError(t, p.AddFileDescriptorProto(personFile()))

	// Second file redeclares widgets.v1.Person under a different file name;
	// the whole batch (here, a single file) must be rejected and leave the
	// pool exactly as it was.
	dup := personFile()
	dup.Name = strp("person2.proto")
	dup.MessageType = append(dup.MessageType, &descriptorpb.DescriptorProto{
		Name: strp("Person"),
	})

	before := p.data.offsets()
	err := p.AddFileDescriptorProto(dup)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok, "got %T, want *Error", err)
	assert.Equal(t, DuplicateName, perr.Kind)

	after := p.data.offsets()
	assert.Equal(t, before, after, "rollback left arena at a different offset")
	assert.Nil(t, p.FindFileByPath("person2.proto"), "rejected file must not be registered")
}

func TestMissingDependencyRejected(t *testing.T) {
	p := New()
	f := &descriptorpb.FileDescriptorProto{
		Name:       strp("dependent.proto"),
		Dependency: []string{"missing.proto"},
	}
	err := p.AddFileDescriptorProto(f)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok, "got %T, want *Error", err)
	assert.Equal(t, MissingDependency, perr.Kind)
}

func TestEnumAliasConflict(t *testing.T) {
	p := New()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("enum.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{
			{
				Name: strp("Status"),
				Value: []*descriptorpb.EnumValueDescriptorProto{
					{Name: strp("UNKNOWN"), Number: i32p(0)},
					{Name: strp("DUP"), Number: i32p(0)},
				},
			},
		},
	}
	err := p.AddFileDescriptorProto(f)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok, "got %T, want *Error", err)
	assert.Equal(t, EnumAliasConflict, perr.Kind)

	// allow_alias lifts the restriction.
	f.EnumType[0].Options = &descriptorpb.EnumOptions{AllowAlias: proto.Bool(true)}
	require.NoError(t, p.AddFileDescriptorProto(f))
	ed := p.FindEnumByName("widgets.v1.Status")
	require.NotNil(t, ed)
	assert.Equal(t, 2, ed.Values().Len())
}

func TestClosestScopeWinsNameResolution(t *testing.T) {
	p := New()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("scoped.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Inner"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("marker", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
				},
			},
			{
				Name: strp("Outer"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:     strp("inner"),
						Number:   i32p(1),
						Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
						Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
						TypeName: strp("Inner"),
					},
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{Name: strp("Inner")},
				},
			},
		},
	}
	require.NoError(t, p.AddFileDescriptorProto(f))

	outer := p.FindMessageByName("widgets.v1.Outer")
	require.NotNil(t, outer)
	inner := outer.Fields().ByName("inner")
	require.NotNil(t, inner)
	require.NotNil(t, inner.MessageType())
	// The relative name "Inner" must resolve to the nested
	// widgets.v1.Outer.Inner, not the top-level widgets.v1.Inner, because
	// nested scope is tried before the file's package scope.
	assert.Equal(t, "widgets.v1.Outer.Inner", string(inner.MessageType().FullName()))
}

func TestMapEntryShape(t *testing.T) {
	p := New()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("mapped.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Config"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:     strp("labels"),
						Number:   i32p(1),
						Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
						Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
						TypeName: strp("LabelsEntry"),
					},
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{
						Name:    strp("LabelsEntry"),
						Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
						Field: []*descriptorpb.FieldDescriptorProto{
							scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
							scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
						},
					},
				},
			},
		},
	}
	require.NoError(t, p.AddFileDescriptorProto(f))

	cfg := p.FindMessageByName("widgets.v1.Config")
	labels := cfg.Fields().ByName("labels")
	require.NotNil(t, labels)
	require.True(t, labels.IsMap())
	assert.Equal(t, protoval.StringKind, labels.MapKeyType().Kind())
	assert.Equal(t, protoval.StringKind, labels.MapValueType().Kind())
}

func TestCloneIsCopyOnWrite(t *testing.T) {
	p := New()
	require.NoError(t, p.AddFileDescriptorProto(personFile()))
	clone := p.Clone()

	other := &descriptorpb.FileDescriptorProto{
		Name:    strp("extra.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: strp("Extra")},
		},
	}
	require.NoError(t, clone.AddFileDescriptorProto(other))

	assert.Nil(t, p.FindMessageByName("widgets.v1.Extra"), "mutation via clone leaked into the original pool")
	assert.NotNil(t, clone.FindMessageByName("widgets.v1.Extra"), "clone should see its own addition")
	assert.NotNil(t, clone.FindMessageByName("widgets.v1.Person"), "clone should still see the shared pre-clone data")
}

func TestMapEntryMissingKeyFieldRejected(t *testing.T) {
	p := New()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("badmap.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Config"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:     strp("labels"),
						Number:   i32p(1),
						Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
						Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
						TypeName: strp("LabelsEntry"),
					},
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{
						// Hand-crafted: map_entry set but no field numbered 1.
						Name:    strp("LabelsEntry"),
						Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
						Field: []*descriptorpb.FieldDescriptorProto{
							scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
						},
					},
				},
			},
		},
	}
	err := p.AddFileDescriptorProto(f)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok, "got %T, want *Error", err)
	assert.Equal(t, InvalidMapEntry, perr.Kind)
}

func TestMapEntryIllegalKeyKindRejected(t *testing.T) {
	p := New()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("badkey.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Config"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:     strp("labels"),
						Number:   i32p(1),
						Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
						Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
						TypeName: strp("LabelsEntry"),
					},
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{
						// A bytes key is not a legal protobuf map key kind.
						Name:    strp("LabelsEntry"),
						Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
						Field: []*descriptorpb.FieldDescriptorProto{
							scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_BYTES, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
							scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
						},
					},
				},
			},
		},
	}
	err := p.AddFileDescriptorProto(f)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok, "got %T, want *Error", err)
	assert.Equal(t, InvalidMapEntry, perr.Kind)
}

func TestFieldNumberOutOfRangeRejected(t *testing.T) {
	p := New()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("toobig.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Huge"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("n", maxFieldNumber+1, descriptorpb.FieldDescriptorProto_TYPE_INT32, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
				},
			},
		},
	}
	err := p.AddFileDescriptorProto(f)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok, "got %T, want *Error", err)
	assert.Equal(t, InvalidFieldNumber, perr.Kind)
}

func TestFieldNumberInReservedRangeRejected(t *testing.T) {
	p := New()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("reserved.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Reserved"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("n", 19500, descriptorpb.FieldDescriptorProto_TYPE_INT32, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
				},
			},
		},
	}
	err := p.AddFileDescriptorProto(f)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok, "got %T, want *Error", err)
	assert.Equal(t, InvalidFieldNumber, perr.Kind)
}

func TestDuplicateFieldNameAcrossNestedTypeRejected(t *testing.T) {
	p := New()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("collide.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Outer"),
				Field: []*descriptorpb.FieldDescriptorProto{
					// A field named the same as a sibling nested message must
					// collide in the pool's global name index.
					scalarField("Inner", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{Name: strp("Inner")},
				},
			},
		},
	}
	err := p.AddFileDescriptorProto(f)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok, "got %T, want *Error", err)
	assert.Equal(t, DuplicateName, perr.Kind)
}

func TestDuplicateFieldNumberWithinMessageRejected(t *testing.T) {
	p := New()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("dupnum.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Dup"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
					scalarField("b", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
				},
			},
		},
	}
	err := p.AddFileDescriptorProto(f)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok, "got %T, want *Error", err)
	assert.Equal(t, DuplicateName, perr.Kind)
}

func TestDuplicateMethodNameRejected(t *testing.T) {
	p := New()
	f := &descriptorpb.FileDescriptorProto{
		Name:    strp("dupmethod.proto"),
		Package: strp("widgets.v1"),
		Syntax:  strp("proto3"),
		Service: []*descriptorpb.ServiceDescriptorProto{
			{
				Name: strp("Widgets"),
				Method: []*descriptorpb.MethodDescriptorProto{
					{Name: strp("Get"), InputType: strp(".widgets.v1.Person"), OutputType: strp(".widgets.v1.Person")},
					{Name: strp("Get"), InputType: strp(".widgets.v1.Person"), OutputType: strp(".widgets.v1.Person")},
				},
			},
		},
	}
	require.NoError(t, p.AddFileDescriptorProto(personFile()))
	err := p.AddFileDescriptorProto(f)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok, "got %T, want *Error", err)
	assert.Equal(t, DuplicateName, perr.Kind)
}

func TestResolveAnyAndAnyTypeURL(t *testing.T) {
	p := New()
	require.NoError(t, p.AddFileDescriptorProto(personFile()))
	md := p.FindMessageByName("widgets.v1.Person")
	require.NotNil(t, md)

	url := AnyTypeURL(md)
	assert.Equal(t, "type.googleapis.com/widgets.v1.Person", url)

	resolved, err := p.ResolveAny(url)
	require.NoError(t, err)
	assert.Equal(t, md.FullName(), resolved.FullName())

	resolved, err = p.ResolveAny("widgets.v1.Person")
	require.NoError(t, err)
	assert.Equal(t, md.FullName(), resolved.FullName())

	_, err = p.ResolveAny("type.googleapis.com/widgets.v1.Missing")
	assert.Error(t, err)
}
