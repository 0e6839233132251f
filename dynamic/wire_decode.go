package dynamic

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dynproto/reflect/protoval"
)

// defaultRecursionLimit bounds nested message/group depth during decode,
// guarding against a maliciously or accidentally self-referential message
// chain exhausting the stack.
const defaultRecursionLimit = 10000

// ExtensionResolver looks up the FieldDescriptor for an extension number
// declared against extendee. *pool.Pool satisfies this.
type ExtensionResolver interface {
	FindExtensionByNumber(extendee protoval.FullName, num protoval.FieldNumber) protoval.FieldDescriptor
}

// UnmarshalOptions configures binary decoding.
type UnmarshalOptions struct {
	// Resolver looks up extension fields by number; nil means extensions
	// decode as unknown fields.
	Resolver ExtensionResolver
	// RecursionLimit overrides defaultRecursionLimit when positive.
	RecursionLimit int
}

// Unmarshal decodes b into a new message of type md using default options.
func Unmarshal(b []byte, md protoval.MessageDescriptor) (*Message, error) {
	return UnmarshalOptions{}.Unmarshal(b, md)
}

// Unmarshal decodes b into a new message of type md.
func (o UnmarshalOptions) Unmarshal(b []byte, md protoval.MessageDescriptor) (*Message, error) {
	m := New(md)
	if err := o.unmarshalInto(b, m, 0); err != nil {
		return nil, err
	}
	return m, nil
}

func (o UnmarshalOptions) limit() int {
	if o.RecursionLimit > 0 {
		return o.RecursionLimit
	}
	return defaultRecursionLimit
}

func (o UnmarshalOptions) unmarshalInto(b []byte, m *Message, depth int) error {
	if depth > o.limit() {
		return fmt.Errorf("dynamic: exceeded recursion limit of %d", o.limit())
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		fd := m.md.Fields().ByNumber(protoval.FieldNumber(num))
		if fd == nil && o.Resolver != nil {
			fd = o.Resolver.FindExtensionByNumber(m.md.FullName(), protoval.FieldNumber(num))
		}
		if fd == nil {
			raw, consumed, err := skipValue(b, num, typ)
			if err != nil {
				return err
			}
			m.unknown = append(m.unknown, UnknownField{
				Number: protoval.FieldNumber(num), Wire: protoval.WireType(typ), Raw: raw,
			})
			b = b[consumed:]
			continue
		}

		consumed, err := o.consumeField(b, m, fd, num, typ, depth)
		if err != nil {
			return err
		}
		b = b[consumed:]
	}
	return nil
}

func (o UnmarshalOptions) consumeField(b []byte, m *Message, fd protoval.FieldDescriptor, num protowire.Number, typ protowire.Type, depth int) (int, error) {
	if fd.IsMap() {
		if typ != protowire.BytesType {
			return 0, fmt.Errorf("dynamic: map field %s: expected length-delimited wire type", fd.FullName())
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		key, val, err := o.consumeMapEntry(raw, fd, depth+1)
		if err != nil {
			return 0, err
		}
		getOrCreateMap(m, fd).Set(key, val)
		return n, nil
	}

	if fd.Cardinality() == protoval.Repeated {
		if typ == protowire.BytesType && fd.Kind().IsPackable() {
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			list := getOrCreateList(m, fd)
			rest := raw
			for len(rest) > 0 {
				v, c, err := consumeScalar(rest, fd.Kind())
				if err != nil {
					return 0, err
				}
				list.Append(v)
				rest = rest[c:]
			}
			return n, nil
		}
		v, n, err := o.consumeSingularValue(b, fd, num, typ, depth)
		if err != nil {
			return 0, err
		}
		getOrCreateList(m, fd).Append(v)
		return n, nil
	}

	v, n, err := o.consumeSingularValue(b, fd, num, typ, depth)
	if err != nil {
		return 0, err
	}
	if (fd.Kind() == protoval.MessageKind || fd.Kind() == protoval.GroupKind) && m.Has(fd) {
		mergeMessage(m.Get(fd).Message().(*Message), v.Message().(*Message))
		return n, nil
	}
	m.Set(fd, v)
	return n, nil
}

func (o UnmarshalOptions) consumeSingularValue(b []byte, fd protoval.FieldDescriptor, num protowire.Number, typ protowire.Type, depth int) (protoval.Value, int, error) {
	switch fd.Kind() {
	case protoval.GroupKind:
		if typ != protowire.StartGroupType {
			return protoval.Value{}, 0, fmt.Errorf("dynamic: field %s: expected start-group wire type", fd.FullName())
		}
		content, n := protowire.ConsumeGroup(num, b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		sub := New(fd.MessageType())
		if err := o.unmarshalInto(content, sub, depth+1); err != nil {
			return protoval.Value{}, 0, err
		}
		return protoval.ValueOfMessage(sub), n, nil
	case protoval.MessageKind:
		if typ != protowire.BytesType {
			return protoval.Value{}, 0, fmt.Errorf("dynamic: field %s: expected length-delimited wire type", fd.FullName())
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		sub := New(fd.MessageType())
		if err := o.unmarshalInto(raw, sub, depth+1); err != nil {
			return protoval.Value{}, 0, err
		}
		return protoval.ValueOfMessage(sub), n, nil
	case protoval.StringKind:
		if typ != protowire.BytesType {
			return protoval.Value{}, 0, fmt.Errorf("dynamic: field %s: expected length-delimited wire type", fd.FullName())
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfString(string(raw)), n, nil
	case protoval.BytesKind:
		if typ != protowire.BytesType {
			return protoval.Value{}, 0, fmt.Errorf("dynamic: field %s: expected length-delimited wire type", fd.FullName())
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfBytes(append([]byte(nil), raw...)), n, nil
	default:
		return consumeScalarTagged(b, fd.Kind(), typ, fd.FullName())
	}
}

func consumeScalarTagged(b []byte, kind protoval.Kind, typ protowire.Type, name protoval.FullName) (protoval.Value, int, error) {
	if protowire.Type(kind.WireType()) != typ {
		return protoval.Value{}, 0, fmt.Errorf("dynamic: field %s: unexpected wire type %d for %v", name, typ, kind)
	}
	return consumeScalar(b, kind)
}

func consumeScalar(b []byte, kind protoval.Kind) (protoval.Value, int, error) {
	switch kind {
	case protoval.BoolKind:
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfBool(protowire.DecodeBool(x)), n, nil
	case protoval.Int32Kind:
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfInt32(int32(x)), n, nil
	case protoval.Int64Kind:
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfInt64(int64(x)), n, nil
	case protoval.Uint32Kind:
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfUint32(uint32(x)), n, nil
	case protoval.Uint64Kind:
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfUint64(x), n, nil
	case protoval.Sint32Kind:
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfInt32(int32(protowire.DecodeZigZag(x))), n, nil
	case protoval.Sint64Kind:
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfInt64(protowire.DecodeZigZag(x)), n, nil
	case protoval.EnumKind:
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfEnum(protoval.EnumNumber(int32(x))), n, nil
	case protoval.Fixed32Kind:
		x, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfUint32(x), n, nil
	case protoval.Sfixed32Kind:
		x, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfInt32(int32(x)), n, nil
	case protoval.FloatKind:
		x, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfFloat32(math.Float32frombits(x)), n, nil
	case protoval.Fixed64Kind:
		x, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfUint64(x), n, nil
	case protoval.Sfixed64Kind:
		x, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfInt64(int64(x)), n, nil
	case protoval.DoubleKind:
		x, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return protoval.Value{}, 0, protowire.ParseError(n)
		}
		return protoval.ValueOfFloat64(math.Float64frombits(x)), n, nil
	default:
		return protoval.Value{}, 0, fmt.Errorf("dynamic: cannot decode scalar of kind %v", kind)
	}
}

func (o UnmarshalOptions) consumeMapEntry(raw []byte, fd protoval.FieldDescriptor, depth int) (protoval.MapKey, protoval.Value, error) {
	keyFd, valFd := fd.MapKeyType(), fd.MapValueType()
	var keyV, valV protoval.Value
	haveKey, haveVal := false, false

	b := raw
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protoval.MapKey{}, protoval.Value{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n2, err := o.consumeSingularValue(b, keyFd, num, typ, depth)
			if err != nil {
				return protoval.MapKey{}, protoval.Value{}, err
			}
			keyV, haveKey, b = v, true, b[n2:]
		case 2:
			v, n2, err := o.consumeSingularValue(b, valFd, num, typ, depth)
			if err != nil {
				return protoval.MapKey{}, protoval.Value{}, err
			}
			valV, haveVal, b = v, true, b[n2:]
		default:
			_, n2, err := skipValue(b, num, typ)
			if err != nil {
				return protoval.MapKey{}, protoval.Value{}, err
			}
			b = b[n2:]
		}
	}
	if !haveKey {
		keyV = zeroValue(keyFd)
	}
	if !haveVal {
		valV = zeroValue(valFd)
	}
	return protoval.MapKeyOf(keyV), valV, nil
}

// skipValue consumes one field's value (tag already consumed) and returns
// the raw content bytes suitable for storing as an UnknownField.Raw, plus
// the total length consumed from b.
func skipValue(b []byte, num protowire.Number, typ protowire.Type) ([]byte, int, error) {
	switch typ {
	case protowire.VarintType:
		_, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return append([]byte(nil), b[:n]...), n, nil
	case protowire.Fixed32Type:
		_, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return append([]byte(nil), b[:n]...), n, nil
	case protowire.Fixed64Type:
		_, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return append([]byte(nil), b[:n]...), n, nil
	case protowire.BytesType:
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return append([]byte(nil), raw...), n, nil
	case protowire.StartGroupType:
		content, n := protowire.ConsumeGroup(num, b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return append([]byte(nil), content...), n, nil
	default:
		return nil, 0, fmt.Errorf("dynamic: unsupported wire type %d", typ)
	}
}

func getOrCreateList(m *Message, fd protoval.FieldDescriptor) *List {
	if v, ok := m.known[fd.Number()]; ok {
		return v.List().(*List)
	}
	l := NewList(fd)
	m.Set(fd, protoval.ValueOfList(l))
	return l
}

func getOrCreateMap(m *Message, fd protoval.FieldDescriptor) *Map {
	if v, ok := m.known[fd.Number()]; ok {
		return v.Map().(*Map)
	}
	mp := NewMap(fd)
	m.Set(fd, protoval.ValueOfMap(mp))
	return mp
}

// mergeMessage merges src into dst per protobuf merge semantics: singular
// scalars are overwritten, singular messages merge recursively, repeated
// fields and maps append/union, and unknown data concatenates.
func mergeMessage(dst, src *Message) {
	src.Range(func(fd protoval.FieldDescriptor, v protoval.Value) bool {
		switch {
		case fd.IsMap():
			dstMap := getOrCreateMap(dst, fd)
			v.Map().Range(func(k protoval.MapKey, mv protoval.Value) bool {
				dstMap.Set(k, mv)
				return true
			})
		case fd.Cardinality() == protoval.Repeated:
			dstList := getOrCreateList(dst, fd)
			l := v.List()
			for i := 0; i < l.Len(); i++ {
				dstList.Append(l.Get(i))
			}
		case fd.Kind() == protoval.MessageKind || fd.Kind() == protoval.GroupKind:
			if dst.Has(fd) {
				mergeMessage(dst.Get(fd).Message().(*Message), v.Message().(*Message))
			} else {
				dst.Set(fd, v)
			}
		default:
			dst.Set(fd, v)
		}
		return true
	})
	dst.unknown = append(dst.unknown, src.unknown...)
}
