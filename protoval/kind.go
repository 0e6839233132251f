// Package protoval holds the vocabulary shared by the descriptor pool and
// the dynamic message implementation: the wire-level Kind/Cardinality/Syntax
// enumerations, qualified names, and the tagged Value used to carry a single
// field's contents without any compile-time generated type.
//
// It declares only leaf types, the descriptor interfaces the pool
// implements, and the narrow Message/List/Map interfaces that a dynamic
// message satisfies, so that neither the pool nor
// the dynamic package needs to import the other through this package.
package protoval

import (
	"regexp"
	"strings"
)

// Syntax is the language version that a .proto file declared.
type Syntax int8

const (
	Proto2 Syntax = 2
	Proto3 Syntax = 3
)

func (s Syntax) IsValid() bool { return s == Proto2 || s == Proto3 }

func (s Syntax) String() string {
	switch s {
	case Proto2:
		return "proto2"
	case Proto3:
		return "proto3"
	default:
		return "<unknown syntax>"
	}
}

// Cardinality determines whether a field is optional, required, or repeated.
type Cardinality int8

const (
	Optional Cardinality = 1
	Required Cardinality = 2 // proto2 only
	Repeated Cardinality = 3
)

func (c Cardinality) IsValid() bool {
	switch c {
	case Optional, Required, Repeated:
		return true
	}
	return false
}

func (c Cardinality) String() string {
	switch c {
	case Optional:
		return "optional"
	case Required:
		return "required"
	case Repeated:
		return "repeated"
	default:
		return "<unknown cardinality>"
	}
}

// Kind is the basic wire-level type of a field, matching the numbering of
// google.protobuf.FieldDescriptorProto.Type.
type Kind int8

const (
	DoubleKind   Kind = 1
	FloatKind    Kind = 2
	Int64Kind    Kind = 3
	Uint64Kind   Kind = 4
	Int32Kind    Kind = 5
	Fixed64Kind  Kind = 6
	Fixed32Kind  Kind = 7
	BoolKind     Kind = 8
	StringKind   Kind = 9
	GroupKind    Kind = 10
	MessageKind  Kind = 11
	BytesKind    Kind = 12
	Uint32Kind   Kind = 13
	EnumKind     Kind = 14
	Sfixed32Kind Kind = 15
	Sfixed64Kind Kind = 16
	Sint32Kind   Kind = 17
	Sint64Kind   Kind = 18
)

func (k Kind) IsValid() bool {
	return k >= DoubleKind && k <= Sint64Kind
}

func (k Kind) String() string {
	switch k {
	case DoubleKind:
		return "double"
	case FloatKind:
		return "float"
	case Int64Kind:
		return "int64"
	case Uint64Kind:
		return "uint64"
	case Int32Kind:
		return "int32"
	case Fixed64Kind:
		return "fixed64"
	case Fixed32Kind:
		return "fixed32"
	case BoolKind:
		return "bool"
	case StringKind:
		return "string"
	case GroupKind:
		return "group"
	case MessageKind:
		return "message"
	case BytesKind:
		return "bytes"
	case Uint32Kind:
		return "uint32"
	case EnumKind:
		return "enum"
	case Sfixed32Kind:
		return "sfixed32"
	case Sfixed64Kind:
		return "sfixed64"
	case Sint32Kind:
		return "sint32"
	case Sint64Kind:
		return "sint64"
	default:
		return "<unknown kind>"
	}
}

// IsPackable reports whether repeated fields of this kind may use the packed
// wire encoding. Strings, bytes, messages, and groups never pack.
func (k Kind) IsPackable() bool {
	switch k {
	case StringKind, BytesKind, MessageKind, GroupKind:
		return false
	default:
		return k.IsValid()
	}
}

// WireType is the low three bits of a protobuf tag.
type WireType int8

const (
	VarintWire     WireType = 0
	Fixed64Wire    WireType = 1
	BytesWire      WireType = 2
	StartGroupWire WireType = 3
	EndGroupWire   WireType = 4
	Fixed32Wire    WireType = 5
)

// WireType reports the wire type used to encode a singular, unpacked value
// of this kind.
func (k Kind) WireType() WireType {
	switch k {
	case Int32Kind, Int64Kind, Uint32Kind, Uint64Kind, Sint32Kind, Sint64Kind,
		BoolKind, EnumKind:
		return VarintWire
	case Fixed64Kind, Sfixed64Kind, DoubleKind:
		return Fixed64Wire
	case Fixed32Kind, Sfixed32Kind, FloatKind:
		return Fixed32Wire
	case StringKind, BytesKind, MessageKind:
		return BytesWire
	case GroupKind:
		return StartGroupWire
	default:
		return VarintWire
	}
}

// FieldNumber is a protobuf field or extension number.
type FieldNumber int32

// EnumNumber is the integer value of an enum constant.
type EnumNumber int32

var (
	regexName     = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`)
	regexFullName = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*(\.[_a-zA-Z][_a-zA-Z0-9]*)*$`)
)

// Name is the short (undotted) name of a declaration.
type Name string

func (n Name) IsValid() bool { return regexName.MatchString(string(n)) }

// FullName is the dot-joined, fully qualified name of a declaration, without
// a leading dot.
type FullName string

func (n FullName) IsValid() bool { return regexFullName.MatchString(string(n)) }

// Name returns the last path segment.
func (n FullName) Name() Name {
	if i := strings.LastIndexByte(string(n), '.'); i >= 0 {
		return Name(n[i+1:])
	}
	return Name(n)
}

// Parent returns the full name with the trailing segment removed.
func (n FullName) Parent() FullName {
	if i := strings.LastIndexByte(string(n), '.'); i >= 0 {
		return n[:i]
	}
	return ""
}

// Append joins a short name onto this full name.
func (n FullName) Append(s Name) FullName {
	if n == "" {
		return FullName(s)
	}
	return n + "." + FullName(s)
}
