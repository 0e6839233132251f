// Package dynamic implements messages, lists, and maps whose field layout
// comes entirely from a protoval/pool descriptor at run time: no generated
// Go struct is required to read or write a protobuf message.
package dynamic

import (
	"sort"

	"github.com/dynproto/reflect/protoval"
)

// Message is a protobuf message value addressed purely through its
// MessageDescriptor: every known field is held as a protoval.Value keyed by
// field number, and every field the descriptor doesn't recognize is kept as
// a raw UnknownField record so re-encoding never silently drops data.
//
// The zero Message is not usable; construct with New.
type Message struct {
	md protoval.MessageDescriptor

	known  map[protoval.FieldNumber]protoval.Value
	extFds map[protoval.FieldNumber]protoval.FieldDescriptor // remembers which FieldDescriptor backs an extension number

	unknown []UnknownField
}

// New returns an empty message of the given type: no fields set, no unknown
// data.
func New(md protoval.MessageDescriptor) *Message {
	return &Message{md: md, known: make(map[protoval.FieldNumber]protoval.Value)}
}

func (m *Message) Descriptor() protoval.MessageDescriptor { return m.md }

// Has reports field presence per spec: for repeated/map fields, whether the
// collection is non-empty; for fields with explicit presence tracking,
// whether Set (or decode) has touched the field; for proto3 fields without
// presence tracking, whether the stored value differs from the type's zero.
func (m *Message) Has(fd protoval.FieldDescriptor) bool {
	v, ok := m.known[fd.Number()]
	if !ok {
		return false
	}
	switch {
	case fd.IsMap():
		return v.Map().Len() > 0
	case fd.Cardinality() == protoval.Repeated:
		return v.List().Len() > 0
	case !fd.HasPresence():
		return !isZero(fd, v)
	default:
		return true
	}
}

// Get returns fd's value, or its default/zero representation if absent: an
// empty List for a repeated field, an empty Map for a map field, a fresh
// empty Message for an unset message-typed field, the proto2 explicit
// default (or first enum value) for an unset scalar/enum field, or the
// type's natural zero value otherwise.
func (m *Message) Get(fd protoval.FieldDescriptor) protoval.Value {
	if v, ok := m.known[fd.Number()]; ok {
		return v
	}
	return zeroValue(fd)
}

// Set stores v under fd, clearing every other member of fd's oneof (if any)
// so oneof exclusivity always holds after Set returns.
func (m *Message) Set(fd protoval.FieldDescriptor, v protoval.Value) {
	if oneof := fd.ContainingOneof(); oneof != nil {
		fields := oneof.Fields()
		for i := 0; i < fields.Len(); i++ {
			if other := fields.Get(i); other.Number() != fd.Number() {
				delete(m.known, other.Number())
			}
		}
	}
	if fd.IsExtension() {
		if m.extFds == nil {
			m.extFds = make(map[protoval.FieldNumber]protoval.FieldDescriptor)
		}
		m.extFds[fd.Number()] = fd
	}
	m.known[fd.Number()] = v
}

// Clear removes fd's value, if any. A cleared map/message-typed field or
// nested field may still be referenced by a List/Map obtained before the
// Clear; mutating it afterward has no effect on this message.
func (m *Message) Clear(fd protoval.FieldDescriptor) {
	delete(m.known, fd.Number())
}

// Range visits every set field, in ascending field-number order, matching
// the canonical encode order used by the wire codec.
func (m *Message) Range(f func(protoval.FieldDescriptor, protoval.Value) bool) {
	nums := make([]protoval.FieldNumber, 0, len(m.known))
	for n := range m.known {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	for _, n := range nums {
		fd := m.fieldByNumber(n)
		if fd == nil {
			continue
		}
		if !f(fd, m.known[n]) {
			return
		}
	}
}

// WhichOneof returns the field currently set within od, or nil if none is.
func (m *Message) WhichOneof(od protoval.OneofDescriptor) protoval.FieldDescriptor {
	fields := od.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if _, ok := m.known[fd.Number()]; ok {
			return fd
		}
	}
	return nil
}

// Unknown returns the raw unknown-field records accumulated by decoding, in
// the order they were encountered on the wire.
func (m *Message) Unknown() []UnknownField { return m.unknown }

// SetUnknown replaces the unknown-field set wholesale (used by the wire
// decoder, and by callers that want to discard unknown data before
// re-encoding).
func (m *Message) SetUnknown(u []UnknownField) { m.unknown = u }

func (m *Message) fieldByNumber(n protoval.FieldNumber) protoval.FieldDescriptor {
	if fd := m.md.Fields().ByNumber(n); fd != nil {
		return fd
	}
	if m.extFds != nil {
		if fd, ok := m.extFds[n]; ok {
			return fd
		}
	}
	return nil
}

func zeroValue(fd protoval.FieldDescriptor) protoval.Value {
	if fd.IsMap() {
		return protoval.ValueOfMap(NewMap(fd))
	}
	if fd.Cardinality() == protoval.Repeated {
		return protoval.ValueOfList(NewList(fd))
	}
	switch fd.Kind() {
	case protoval.MessageKind, protoval.GroupKind:
		return protoval.ValueOfMessage(New(fd.MessageType()))
	case protoval.EnumKind:
		if fd.HasDefault() {
			return fd.Default()
		}
		vals := fd.EnumType().Values()
		if vals.Len() > 0 {
			return protoval.ValueOfEnum(vals.Get(0).Number())
		}
		return protoval.ValueOfEnum(0)
	case protoval.BoolKind:
		if fd.HasDefault() {
			return fd.Default()
		}
		return protoval.ValueOfBool(false)
	case protoval.StringKind:
		if fd.HasDefault() {
			return fd.Default()
		}
		return protoval.ValueOfString("")
	case protoval.BytesKind:
		if fd.HasDefault() {
			return fd.Default()
		}
		return protoval.ValueOfBytes(nil)
	case protoval.FloatKind:
		if fd.HasDefault() {
			return fd.Default()
		}
		return protoval.ValueOfFloat32(0)
	case protoval.DoubleKind:
		if fd.HasDefault() {
			return fd.Default()
		}
		return protoval.ValueOfFloat64(0)
	case protoval.Int32Kind, protoval.Sint32Kind, protoval.Sfixed32Kind:
		if fd.HasDefault() {
			return fd.Default()
		}
		return protoval.ValueOfInt32(0)
	case protoval.Int64Kind, protoval.Sint64Kind, protoval.Sfixed64Kind:
		if fd.HasDefault() {
			return fd.Default()
		}
		return protoval.ValueOfInt64(0)
	case protoval.Uint32Kind, protoval.Fixed32Kind:
		if fd.HasDefault() {
			return fd.Default()
		}
		return protoval.ValueOfUint32(0)
	case protoval.Uint64Kind, protoval.Fixed64Kind:
		if fd.HasDefault() {
			return fd.Default()
		}
		return protoval.ValueOfUint64(0)
	default:
		return protoval.Value{}
	}
}

func isZero(fd protoval.FieldDescriptor, v protoval.Value) bool {
	switch fd.Kind() {
	case protoval.BoolKind:
		return !v.Bool()
	case protoval.StringKind:
		return v.String() == ""
	case protoval.BytesKind:
		return len(v.Bytes()) == 0
	case protoval.EnumKind:
		return v.Enum() == 0
	case protoval.FloatKind, protoval.DoubleKind:
		return v.Float() == 0
	case protoval.Uint32Kind, protoval.Uint64Kind, protoval.Fixed32Kind, protoval.Fixed64Kind:
		return v.Uint() == 0
	default:
		return v.Int() == 0
	}
}
