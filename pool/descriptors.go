package pool

import (
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/dynproto/reflect/protoval"
)

// fileDescriptor implements protoval.FileDescriptor over a
// *descriptorpb.FileDescriptorProto that has already passed the build
// passes in build.go (every cross-reference below is resolved, never nil
// where the proto says it shouldn't be).
type fileDescriptor struct {
	proto   *descriptorpb.FileDescriptorProto
	syntax  protoval.Syntax
	pkg     protoval.FullName
	imports []protoval.FileImport

	messages   messageDescriptorList
	enums      enumDescriptorList
	extensions extensionDescriptorList
	services   serviceDescriptorList

	byName map[protoval.FullName]protoval.Descriptor
}

func (f *fileDescriptor) Parent() protoval.Descriptor { return nil }
func (f *fileDescriptor) Index() int                  { return 0 }
func (f *fileDescriptor) Syntax() protoval.Syntax      { return f.syntax }
func (f *fileDescriptor) Name() protoval.Name          { return protoval.Name(f.proto.GetName()) }
func (f *fileDescriptor) FullName() protoval.FullName  { return protoval.FullName(f.proto.GetName()) }
func (f *fileDescriptor) IsPlaceholder() bool          { return false }
func (f *fileDescriptor) Path() string                 { return f.proto.GetName() }
func (f *fileDescriptor) Package() protoval.FullName    { return f.pkg }
func (f *fileDescriptor) Imports() []protoval.FileImport { return f.imports }
func (f *fileDescriptor) Messages() protoval.MessageDescriptors     { return &f.messages }
func (f *fileDescriptor) Enums() protoval.EnumDescriptors           { return &f.enums }
func (f *fileDescriptor) Extensions() protoval.ExtensionDescriptors { return &f.extensions }
func (f *fileDescriptor) Services() protoval.ServiceDescriptors     { return &f.services }
func (f *fileDescriptor) DescriptorByName(n protoval.FullName) protoval.Descriptor {
	return f.byName[n]
}

// messageDescriptor implements protoval.MessageDescriptor.
type messageDescriptor struct {
	file     *fileDescriptor
	parent   protoval.Descriptor
	index    int
	proto    *descriptorpb.DescriptorProto
	fullName protoval.FullName

	fields protoval.FieldDescriptors
	oneofs oneofDescriptorList

	isMapEntry      bool
	reservedNames   []protoval.Name
	reservedRanges  [][2]protoval.FieldNumber
	requiredNumbers []protoval.FieldNumber
	extensionRanges [][2]protoval.FieldNumber

	nestedMessages   messageDescriptorList
	nestedEnums      enumDescriptorList
	nestedExtensions extensionDescriptorList
}

func (m *messageDescriptor) Parent() protoval.Descriptor { return m.parent }
func (m *messageDescriptor) Index() int                  { return m.index }
func (m *messageDescriptor) Syntax() protoval.Syntax      { return m.file.syntax }
func (m *messageDescriptor) Name() protoval.Name          { return m.fullName.Name() }
func (m *messageDescriptor) FullName() protoval.FullName  { return m.fullName }
func (m *messageDescriptor) IsPlaceholder() bool          { return false }
func (m *messageDescriptor) IsMapEntry() bool             { return m.isMapEntry }
func (m *messageDescriptor) Fields() protoval.FieldDescriptors { return m.fields }
func (m *messageDescriptor) Oneofs() protoval.OneofDescriptors { return &m.oneofs }
func (m *messageDescriptor) ReservedNames() []protoval.Name            { return m.reservedNames }
func (m *messageDescriptor) ReservedRanges() [][2]protoval.FieldNumber { return m.reservedRanges }
func (m *messageDescriptor) RequiredNumbers() []protoval.FieldNumber   { return m.requiredNumbers }
func (m *messageDescriptor) ExtensionRanges() [][2]protoval.FieldNumber {
	return m.extensionRanges
}
func (m *messageDescriptor) Messages() protoval.MessageDescriptors     { return &m.nestedMessages }
func (m *messageDescriptor) Enums() protoval.EnumDescriptors           { return &m.nestedEnums }
func (m *messageDescriptor) Extensions() protoval.ExtensionDescriptors { return &m.nestedExtensions }

// fieldDescriptor implements protoval.FieldDescriptor. The same type serves
// both ordinary message fields and extension fields (ExtensionDescriptor is
// a type alias of FieldDescriptor); isExtension and extendedType distinguish
// them.
type fieldDescriptor struct {
	owner    protoval.Descriptor // containing message (field) or file/message (extension declaration site)
	index    int
	proto    *descriptorpb.FieldDescriptorProto
	fullName protoval.FullName
	syntax   protoval.Syntax

	// declScope is the lexical scope this field/extension was declared in,
	// used to resolve its own TypeName/Extendee references with
	// closest-scope-wins: the containing message for a nested declaration,
	// or the file's package for a top-level one.
	declScope protoval.FullName

	cardinality protoval.Cardinality
	kind        protoval.Kind

	jsonName    string
	hasJSONName bool
	hasPresence bool
	isPacked    bool
	isMap       bool
	isExtension bool

	hasDefault       bool
	defaultValue     protoval.Value
	defaultEnumValue *enumValueDescriptor

	containingOneof *oneofDescriptor
	containingMsg   *messageDescriptor
	extendedType    *messageDescriptor

	messageType *messageDescriptor
	enumType    *enumDescriptor

	mapKeyType *fieldDescriptor
	mapValType *fieldDescriptor
}

func (fd *fieldDescriptor) Parent() protoval.Descriptor { return fd.owner }
func (fd *fieldDescriptor) Index() int                  { return fd.index }
func (fd *fieldDescriptor) Syntax() protoval.Syntax      { return fd.syntax }
func (fd *fieldDescriptor) Name() protoval.Name          { return fd.fullName.Name() }
func (fd *fieldDescriptor) FullName() protoval.FullName  { return fd.fullName }
func (fd *fieldDescriptor) IsPlaceholder() bool          { return false }
func (fd *fieldDescriptor) Number() protoval.FieldNumber { return protoval.FieldNumber(fd.proto.GetNumber()) }
func (fd *fieldDescriptor) Cardinality() protoval.Cardinality { return fd.cardinality }
func (fd *fieldDescriptor) Kind() protoval.Kind               { return fd.kind }
func (fd *fieldDescriptor) JSONName() string                  { return fd.jsonName }
func (fd *fieldDescriptor) HasJSONName() bool                 { return fd.hasJSONName }
func (fd *fieldDescriptor) HasPresence() bool                 { return fd.hasPresence }
func (fd *fieldDescriptor) IsPacked() bool                    { return fd.isPacked }
func (fd *fieldDescriptor) IsMap() bool                       { return fd.isMap }
func (fd *fieldDescriptor) IsExtension() bool                 { return fd.isExtension }
func (fd *fieldDescriptor) HasDefault() bool                  { return fd.hasDefault }
func (fd *fieldDescriptor) Default() protoval.Value           { return fd.defaultValue }
func (fd *fieldDescriptor) DefaultEnumValue() protoval.EnumValueDescriptor {
	if fd.defaultEnumValue == nil {
		return nil
	}
	return fd.defaultEnumValue
}
func (fd *fieldDescriptor) ContainingOneof() protoval.OneofDescriptor {
	if fd.containingOneof == nil {
		return nil
	}
	return fd.containingOneof
}
func (fd *fieldDescriptor) ContainingMessage() protoval.MessageDescriptor {
	if fd.containingMsg == nil {
		return nil
	}
	return fd.containingMsg
}
func (fd *fieldDescriptor) ExtendedType() protoval.MessageDescriptor {
	if fd.extendedType == nil {
		return nil
	}
	return fd.extendedType
}
func (fd *fieldDescriptor) MessageType() protoval.MessageDescriptor {
	if fd.messageType == nil {
		return nil
	}
	return fd.messageType
}
func (fd *fieldDescriptor) EnumType() protoval.EnumDescriptor {
	if fd.enumType == nil {
		return nil
	}
	return fd.enumType
}
func (fd *fieldDescriptor) MapKeyType() protoval.FieldDescriptor {
	if fd.mapKeyType == nil {
		return nil
	}
	return fd.mapKeyType
}
func (fd *fieldDescriptor) MapValueType() protoval.FieldDescriptor {
	if fd.mapValType == nil {
		return nil
	}
	return fd.mapValType
}

// oneofDescriptor implements protoval.OneofDescriptor.
type oneofDescriptor struct {
	parentMsg *messageDescriptor
	index     int
	proto     *descriptorpb.OneofDescriptorProto
	fullName  protoval.FullName
	fields    fieldDescriptorList
}

func (o *oneofDescriptor) Parent() protoval.Descriptor { return o.parentMsg }
func (o *oneofDescriptor) Index() int                  { return o.index }
func (o *oneofDescriptor) Syntax() protoval.Syntax      { return o.parentMsg.file.syntax }
func (o *oneofDescriptor) Name() protoval.Name          { return o.fullName.Name() }
func (o *oneofDescriptor) FullName() protoval.FullName  { return o.fullName }
func (o *oneofDescriptor) IsPlaceholder() bool          { return false }
func (o *oneofDescriptor) Fields() protoval.FieldDescriptors { return &o.fields }

// enumDescriptor implements protoval.EnumDescriptor.
type enumDescriptor struct {
	file     *fileDescriptor
	parent   protoval.Descriptor
	index    int
	proto    *descriptorpb.EnumDescriptorProto
	fullName protoval.FullName

	values         enumValueDescriptorList
	reservedNames  []protoval.Name
	reservedRanges [][2]protoval.EnumNumber
	allowAlias     bool
}

func (e *enumDescriptor) Parent() protoval.Descriptor { return e.parent }
func (e *enumDescriptor) Index() int                  { return e.index }
func (e *enumDescriptor) Syntax() protoval.Syntax      { return e.file.syntax }
func (e *enumDescriptor) Name() protoval.Name          { return e.fullName.Name() }
func (e *enumDescriptor) FullName() protoval.FullName  { return e.fullName }
func (e *enumDescriptor) IsPlaceholder() bool          { return false }
func (e *enumDescriptor) Values() protoval.EnumValueDescriptors { return &e.values }
func (e *enumDescriptor) ReservedNames() []protoval.Name            { return e.reservedNames }
func (e *enumDescriptor) ReservedRanges() [][2]protoval.EnumNumber  { return e.reservedRanges }
func (e *enumDescriptor) AllowAlias() bool                          { return e.allowAlias }

// enumValueDescriptor implements protoval.EnumValueDescriptor. Its FullName
// is relative to the enum's *parent* scope (protobuf enum values are
// siblings of the enum itself in C++ scoping rules), not to the enum.
type enumValueDescriptor struct {
	parentEnum *enumDescriptor
	index      int
	proto      *descriptorpb.EnumValueDescriptorProto
	fullName   protoval.FullName
}

func (v *enumValueDescriptor) Parent() protoval.Descriptor { return v.parentEnum }
func (v *enumValueDescriptor) Index() int                  { return v.index }
func (v *enumValueDescriptor) Syntax() protoval.Syntax      { return v.parentEnum.file.syntax }
func (v *enumValueDescriptor) Name() protoval.Name          { return v.fullName.Name() }
func (v *enumValueDescriptor) FullName() protoval.FullName  { return v.fullName }
func (v *enumValueDescriptor) IsPlaceholder() bool          { return false }
func (v *enumValueDescriptor) Number() protoval.EnumNumber {
	return protoval.EnumNumber(v.proto.GetNumber())
}

// serviceDescriptor implements protoval.ServiceDescriptor.
type serviceDescriptor struct {
	file     *fileDescriptor
	index    int
	proto    *descriptorpb.ServiceDescriptorProto
	fullName protoval.FullName
	methods  methodDescriptorList
}

func (s *serviceDescriptor) Parent() protoval.Descriptor { return s.file }
func (s *serviceDescriptor) Index() int                  { return s.index }
func (s *serviceDescriptor) Syntax() protoval.Syntax      { return s.file.syntax }
func (s *serviceDescriptor) Name() protoval.Name          { return s.fullName.Name() }
func (s *serviceDescriptor) FullName() protoval.FullName  { return s.fullName }
func (s *serviceDescriptor) IsPlaceholder() bool          { return false }
func (s *serviceDescriptor) Methods() protoval.MethodDescriptors { return &s.methods }

// methodDescriptor implements protoval.MethodDescriptor.
type methodDescriptor struct {
	parentSvc  *serviceDescriptor
	index      int
	proto      *descriptorpb.MethodDescriptorProto
	fullName   protoval.FullName
	inputType  *messageDescriptor
	outputType *messageDescriptor
}

func (m *methodDescriptor) Parent() protoval.Descriptor { return m.parentSvc }
func (m *methodDescriptor) Index() int                  { return m.index }
func (m *methodDescriptor) Syntax() protoval.Syntax      { return m.parentSvc.file.syntax }
func (m *methodDescriptor) Name() protoval.Name          { return m.fullName.Name() }
func (m *methodDescriptor) FullName() protoval.FullName  { return m.fullName }
func (m *methodDescriptor) IsPlaceholder() bool          { return false }
func (m *methodDescriptor) InputType() protoval.MessageDescriptor  { return m.inputType }
func (m *methodDescriptor) OutputType() protoval.MessageDescriptor { return m.outputType }
func (m *methodDescriptor) IsStreamingClient() bool                { return m.proto.GetClientStreaming() }
func (m *methodDescriptor) IsStreamingServer() bool                { return m.proto.GetServerStreaming() }

// extensionDescriptor is a FieldDescriptor known to be an extension
// declaration; it is the concrete element type of extensionDescriptorList.
type extensionDescriptor = fieldDescriptor
