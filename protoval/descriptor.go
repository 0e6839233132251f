package protoval

// Descriptor is the set of accessors common to every descriptor kind. Each
// descriptor wraps the equivalent google.protobuf.XxxDescriptorProto message
// but is indexed for O(1) lookup instead of linear scan.
type Descriptor interface {
	// Parent returns the enclosing declaration, or nil for a FileDescriptor.
	Parent() Descriptor
	// Index is this descriptor's position within its parent's list.
	Index() int
	Syntax() Syntax
	Name() Name
	FullName() FullName
	// IsPlaceholder reports a descriptor synthesized for an unresolved
	// dependency: only Name/FullName (and, for files, Path/Package) are valid.
	IsPlaceholder() bool
}

// FileDescriptor describes one compiled .proto file.
type FileDescriptor interface {
	Descriptor

	Path() string
	Package() FullName
	Imports() []FileImport

	Messages() MessageDescriptors
	Enums() EnumDescriptors
	Extensions() ExtensionDescriptors
	Services() ServiceDescriptors

	// DescriptorByName looks up any declaration in this file by full name.
	DescriptorByName(FullName) Descriptor
}

// FileImport records one dependency of a FileDescriptor.
type FileImport struct {
	FileDescriptor
	IsPublic bool
	IsWeak   bool
}

// MessageDescriptor describes a message type.
type MessageDescriptor interface {
	Descriptor

	// IsMapEntry reports whether this is the synthetic two-field message
	// generated for a map<K, V> field.
	IsMapEntry() bool

	Fields() FieldDescriptors
	Oneofs() OneofDescriptors

	ReservedNames() []Name
	ReservedRanges() [][2]FieldNumber
	RequiredNumbers() []FieldNumber
	ExtensionRanges() [][2]FieldNumber

	Messages() MessageDescriptors
	Enums() EnumDescriptors
	Extensions() ExtensionDescriptors
}

// MessageDescriptors is an ordered, by-name-indexable list of messages.
type MessageDescriptors interface {
	Len() int
	Get(i int) MessageDescriptor
	ByName(Name) MessageDescriptor
}

// FieldDescriptor describes a field declared within a message, or an
// extension field declared against some other message (ExtendedType()).
type FieldDescriptor interface {
	Descriptor

	Number() FieldNumber
	Cardinality() Cardinality
	Kind() Kind

	JSONName() string
	HasJSONName() bool

	// HasPresence reports whether Has/Clear can distinguish "set to the
	// default" from "not set" for this field (see spec §4.1 presence rules).
	HasPresence() bool

	IsPacked() bool
	IsMap() bool
	IsExtension() bool

	// HasDefault reports whether the field declares a proto2 explicit
	// default, and Default returns it; when HasDefault is false, Default
	// returns the invalid zero Value rather than the kind's zero value.
	HasDefault() bool
	Default() Value
	DefaultEnumValue() EnumValueDescriptor

	ContainingOneof() OneofDescriptor
	ContainingMessage() MessageDescriptor
	// ExtendedType is non-nil only for extension fields.
	ExtendedType() MessageDescriptor

	MessageType() MessageDescriptor
	EnumType() EnumDescriptor

	// MapKeyType/MapValueType are non-nil only when IsMap is true.
	MapKeyType() FieldDescriptor
	MapValueType() FieldDescriptor
}

// ExtensionDescriptor is a FieldDescriptor declared as an extension.
type ExtensionDescriptor = FieldDescriptor

type FieldDescriptors interface {
	Len() int
	Get(i int) FieldDescriptor
	ByName(Name) FieldDescriptor
	ByJSONName(string) FieldDescriptor
	ByNumber(FieldNumber) FieldDescriptor
}

type ExtensionDescriptors interface {
	Len() int
	Get(i int) ExtensionDescriptor
	ByName(Name) ExtensionDescriptor
	ByNumber(FieldNumber) ExtensionDescriptor
}

// OneofDescriptor describes a oneof declaration.
type OneofDescriptor interface {
	Descriptor
	Fields() FieldDescriptors
}

type OneofDescriptors interface {
	Len() int
	Get(i int) OneofDescriptor
	ByName(Name) OneofDescriptor
}

// EnumDescriptor describes an enum type.
type EnumDescriptor interface {
	Descriptor
	Values() EnumValueDescriptors
	ReservedNames() []Name
	ReservedRanges() [][2]EnumNumber
	AllowAlias() bool
}

type EnumDescriptors interface {
	Len() int
	Get(i int) EnumDescriptor
	ByName(Name) EnumDescriptor
}

// EnumValueDescriptor describes one member of an enum. Unlike every other
// declaration, its FullName is relative to the enum's *parent*, not the enum
// itself (protobuf enum values share their enclosing scope's namespace).
type EnumValueDescriptor interface {
	Descriptor
	Number() EnumNumber
}

type EnumValueDescriptors interface {
	Len() int
	Get(i int) EnumValueDescriptor
	ByName(Name) EnumValueDescriptor
	// ByNumber returns the first-declared value descriptor for n.
	ByNumber(EnumNumber) EnumValueDescriptor
	// AllByNumber returns every value descriptor sharing number n, in
	// declaration order (only more than one when AllowAlias is true).
	AllByNumber(EnumNumber) []EnumValueDescriptor
}

// ServiceDescriptor describes an RPC service.
type ServiceDescriptor interface {
	Descriptor
	Methods() MethodDescriptors
}

type ServiceDescriptors interface {
	Len() int
	Get(i int) ServiceDescriptor
	ByName(Name) ServiceDescriptor
}

// MethodDescriptor describes one RPC method.
type MethodDescriptor interface {
	Descriptor
	InputType() MessageDescriptor
	OutputType() MessageDescriptor
	IsStreamingClient() bool
	IsStreamingServer() bool
}

type MethodDescriptors interface {
	Len() int
	Get(i int) MethodDescriptor
	ByName(Name) MethodDescriptor
}
