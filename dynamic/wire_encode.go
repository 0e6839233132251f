package dynamic

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dynproto/reflect/protoval"
)

// Marshal encodes m using protobuf binary wire format: known and unknown
// fields are interleaved in ascending field-number order (spec §4.3's
// canonical encoding), so re-encoding a message decoded from already-
// canonical bytes reproduces them exactly.
func Marshal(m *Message) ([]byte, error) {
	return appendMessage(nil, m)
}

func appendMessage(b []byte, m *Message) ([]byte, error) {
	knownNums := make([]protoval.FieldNumber, 0, len(m.known))
	for n := range m.known {
		knownNums = append(knownNums, n)
	}
	sort.Slice(knownNums, func(i, j int) bool { return knownNums[i] < knownNums[j] })

	ki, ui := 0, 0
	for ki < len(knownNums) || ui < len(m.unknown) {
		if ui >= len(m.unknown) || (ki < len(knownNums) && knownNums[ki] <= m.unknown[ui].Number) {
			n := knownNums[ki]
			ki++
			fd := m.fieldByNumber(n)
			if fd == nil {
				continue
			}
			var err error
			b, err = appendField(b, fd, m.known[n])
			if err != nil {
				return nil, err
			}
			continue
		}
		b = appendUnknown(b, m.unknown[ui])
		ui++
	}
	return b, nil
}

func appendUnknown(b []byte, u UnknownField) []byte {
	b = protowire.AppendTag(b, protowire.Number(u.Number), protowire.Type(u.Wire))
	switch u.Wire {
	case protoval.BytesWire:
		b = protowire.AppendBytes(b, u.Raw)
	case protoval.VarintWire, protoval.Fixed32Wire, protoval.Fixed64Wire:
		b = append(b, u.Raw...)
	case protoval.StartGroupWire:
		b = append(b, u.Raw...)
		b = protowire.AppendTag(b, protowire.Number(u.Number), protowire.EndGroupType)
	}
	return b
}

func appendField(b []byte, fd protoval.FieldDescriptor, v protoval.Value) ([]byte, error) {
	num := protowire.Number(fd.Number())

	if fd.IsMap() {
		mp := v.Map()
		var err error
		mp.Range(func(k protoval.MapKey, ev protoval.Value) bool {
			entry, e := appendMapEntry(fd, k, ev)
			if e != nil {
				err = e
				return false
			}
			b = protowire.AppendTag(b, num, protowire.BytesType)
			b = protowire.AppendBytes(b, entry)
			return true
		})
		return b, err
	}

	if fd.Cardinality() == protoval.Repeated {
		list := v.List()
		if fd.IsPacked() {
			var payload []byte
			for i := 0; i < list.Len(); i++ {
				var err error
				payload, err = appendScalar(payload, fd.Kind(), list.Get(i))
				if err != nil {
					return nil, err
				}
			}
			b = protowire.AppendTag(b, num, protowire.BytesType)
			b = protowire.AppendBytes(b, payload)
			return b, nil
		}
		for i := 0; i < list.Len(); i++ {
			var err error
			b, err = appendSingular(b, num, fd.Kind(), list.Get(i))
			if err != nil {
				return nil, err
			}
		}
		return b, nil
	}

	return appendSingular(b, num, fd.Kind(), v)
}

func appendMapEntry(fd protoval.FieldDescriptor, k protoval.MapKey, v protoval.Value) ([]byte, error) {
	var b []byte
	var err error
	b, err = appendSingular(b, 1, fd.MapKeyType().Kind(), k.Value())
	if err != nil {
		return nil, err
	}
	b, err = appendSingular(b, 2, fd.MapValueType().Kind(), v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// appendSingular appends one tag+value pair (or, for a group, a
// start-tag/content/end-tag triple) for a non-packed occurrence of kind.
func appendSingular(b []byte, num protowire.Number, kind protoval.Kind, v protoval.Value) ([]byte, error) {
	switch kind {
	case protoval.GroupKind:
		b = protowire.AppendTag(b, num, protowire.StartGroupType)
		sub, err := appendMessage(b, v.Message().(*Message))
		if err != nil {
			return nil, err
		}
		b = sub
		b = protowire.AppendTag(b, num, protowire.EndGroupType)
		return b, nil
	case protoval.MessageKind:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		sub, err := Marshal(v.Message().(*Message))
		if err != nil {
			return nil, err
		}
		b = protowire.AppendBytes(b, sub)
		return b, nil
	case protoval.StringKind:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v.String())
		return b, nil
	case protoval.BytesKind:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, v.Bytes())
		return b, nil
	default:
		b = protowire.AppendTag(b, num, protowire.Type(kind.WireType()))
		return appendScalar(b, kind, v)
	}
}

// appendScalar appends just the value bytes (no tag) for a varint/fixed32/
// fixed64 kind; used both after a normal tag and inside a packed payload.
func appendScalar(b []byte, kind protoval.Kind, v protoval.Value) ([]byte, error) {
	switch kind {
	case protoval.BoolKind:
		return protowire.AppendVarint(b, protowire.EncodeBool(v.Bool())), nil
	case protoval.Int32Kind:
		return protowire.AppendVarint(b, uint64(v.Int())), nil
	case protoval.Int64Kind:
		return protowire.AppendVarint(b, uint64(v.Int())), nil
	case protoval.Uint32Kind, protoval.Uint64Kind:
		return protowire.AppendVarint(b, v.Uint()), nil
	case protoval.Sint32Kind, protoval.Sint64Kind:
		return protowire.AppendVarint(b, protowire.EncodeZigZag(v.Int())), nil
	case protoval.EnumKind:
		return protowire.AppendVarint(b, uint64(int64(v.Enum()))), nil
	case protoval.Fixed32Kind:
		return protowire.AppendFixed32(b, uint32(v.Uint())), nil
	case protoval.Sfixed32Kind:
		return protowire.AppendFixed32(b, uint32(v.Int())), nil
	case protoval.FloatKind:
		return protowire.AppendFixed32(b, floatBits(v.Float())), nil
	case protoval.Fixed64Kind:
		return protowire.AppendFixed64(b, v.Uint()), nil
	case protoval.Sfixed64Kind:
		return protowire.AppendFixed64(b, uint64(v.Int())), nil
	case protoval.DoubleKind:
		return protowire.AppendFixed64(b, doubleBits(v.Float())), nil
	default:
		return nil, fmt.Errorf("dynamic: cannot encode scalar of kind %v", kind)
	}
}
