package pool

import (
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/dynproto/reflect/protoval"
)

// computeJSONName mirrors protoc's default camelCase derivation, used only
// when the FieldDescriptorProto has no explicit json_name (protoc always
// fills one in, but hand-built FileDescriptorProtos may omit it).
func computeJSONName(proto *descriptorpb.FieldDescriptorProto) (name string, explicit bool) {
	if proto.JsonName != nil {
		return proto.GetJsonName(), true
	}
	return jsonCamelCase(proto.GetName()), false
}

func jsonCamelCase(s string) string {
	var b strings.Builder
	upcaseNext := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_':
			upcaseNext = true
		case upcaseNext && 'a' <= c && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
			upcaseNext = false
		default:
			b.WriteByte(c)
			upcaseNext = false
		}
	}
	return b.String()
}

// computeHasPresence implements spec §4.1's presence rules: proto2 always
// tracks presence (except repeated/map fields); proto3 only tracks it for
// message-typed fields, oneof members (including synthetic ones from
// `optional`), and extensions.
func computeHasPresence(syntax protoval.Syntax, card protoval.Cardinality, kind protoval.Kind, inOneof, isExtension bool) bool {
	if card == protoval.Repeated {
		return false
	}
	if kind == protoval.MessageKind || kind == protoval.GroupKind {
		return true
	}
	if inOneof || isExtension {
		return true
	}
	return syntax == protoval.Proto2
}

// computeIsPacked implements the packed-encoding default: proto3 packs
// packable repeated scalar fields unless options.packed=false; proto2 never
// packs unless options.packed=true.
func computeIsPacked(syntax protoval.Syntax, card protoval.Cardinality, kind protoval.Kind, opts *descriptorpb.FieldOptions) bool {
	if card != protoval.Repeated || !kind.IsPackable() {
		return false
	}
	if opts != nil && opts.Packed != nil {
		return opts.GetPacked()
	}
	return syntax == protoval.Proto3
}

// computeDefault parses a proto2 explicit default_value string (only
// meaningful for scalar/enum fields; message and repeated fields never carry
// one). Returns ok=false when the field has no explicit default.
func computeDefault(proto *descriptorpb.FieldDescriptorProto, kind protoval.Kind, values *enumValueDescriptorList) (protoval.Value, bool, *enumValueDescriptor, error) {
	if proto.DefaultValue == nil {
		return protoval.Value{}, false, nil, nil
	}
	s := proto.GetDefaultValue()
	switch kind {
	case protoval.BoolKind:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return protoval.Value{}, false, nil, errf(InvalidReference, proto.GetName(), "bad bool default %q", s)
		}
		return protoval.ValueOfBool(b), true, nil, nil
	case protoval.Int32Kind, protoval.Sint32Kind, protoval.Sfixed32Kind:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return protoval.Value{}, false, nil, errf(InvalidReference, proto.GetName(), "bad int32 default %q", s)
		}
		return protoval.ValueOfInt32(int32(n)), true, nil, nil
	case protoval.Int64Kind, protoval.Sint64Kind, protoval.Sfixed64Kind:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return protoval.Value{}, false, nil, errf(InvalidReference, proto.GetName(), "bad int64 default %q", s)
		}
		return protoval.ValueOfInt64(n), true, nil, nil
	case protoval.Uint32Kind, protoval.Fixed32Kind:
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return protoval.Value{}, false, nil, errf(InvalidReference, proto.GetName(), "bad uint32 default %q", s)
		}
		return protoval.ValueOfUint32(uint32(n)), true, nil, nil
	case protoval.Uint64Kind, protoval.Fixed64Kind:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return protoval.Value{}, false, nil, errf(InvalidReference, proto.GetName(), "bad uint64 default %q", s)
		}
		return protoval.ValueOfUint64(n), true, nil, nil
	case protoval.FloatKind:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return protoval.Value{}, false, nil, errf(InvalidReference, proto.GetName(), "bad float default %q", s)
		}
		return protoval.ValueOfFloat32(float32(f)), true, nil, nil
	case protoval.DoubleKind:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return protoval.Value{}, false, nil, errf(InvalidReference, proto.GetName(), "bad double default %q", s)
		}
		return protoval.ValueOfFloat64(f), true, nil, nil
	case protoval.StringKind:
		return protoval.ValueOfString(s), true, nil, nil
	case protoval.BytesKind:
		return protoval.ValueOfBytes(unescapeCString(s)), true, nil, nil
	case protoval.EnumKind:
		if values == nil {
			return protoval.Value{}, false, nil, errf(InvalidReference, proto.GetName(), "enum default before enum type resolved")
		}
		ev, ok := values.byName[protoval.Name(s)]
		if !ok {
			return protoval.Value{}, false, nil, errf(InvalidReference, proto.GetName(), "unknown enum default %q", s)
		}
		return protoval.ValueOfEnum(ev.Number()), true, ev, nil
	default:
		return protoval.Value{}, false, nil, nil
	}
}

// unescapeCString decodes the C-style octal/hex escapes protoc uses when
// serializing a bytes field's default_value.
func unescapeCString(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			out = append(out, s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case '\\', '\'', '"':
			out = append(out, s[i])
		case 'x':
			j := i + 1
			for j < len(s) && j < i+3 && isHex(s[j]) {
				j++
			}
			if v, err := strconv.ParseUint(s[i+1:j], 16, 8); err == nil {
				out = append(out, byte(v))
			}
			i = j - 1
		default:
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			if v, err := strconv.ParseUint(s[i:j], 8, 8); err == nil {
				out = append(out, byte(v))
				i = j - 1
			} else {
				out = append(out, s[i])
			}
		}
	}
	return out
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// CustomOption is one resolved uninterpreted_option entry: the extension
// field it names and the literal value parsed from its source syntax. This
// deliberately stops short of materializing a full dynamic message for the
// enclosing Options value (which would require the dynamic package, creating
// an import cycle) — most custom options in practice are a single scalar
// extension, which this covers directly.
type CustomOption struct {
	Field protoval.FieldDescriptor
	Value protoval.Value
}

// interpretUninterpretedOptions resolves each entry in raw against the
// extensions already registered for extendeeName, matching spec §4.1 pass
// 3. Entries naming an extension this pool doesn't know about, or using
// aggregate ({...}) syntax, are skipped rather than erroring: unlike a
// malformed core declaration, an uninterpretable custom option does not
// invalidate the surrounding file.
func interpretUninterpretedOptions(d *poolData, extendeeName protoval.FullName, raw []*descriptorpb.UninterpretedOption) []CustomOption {
	var out []CustomOption
	for _, opt := range raw {
		parts := opt.GetName()
		if len(parts) != 1 || parts[0].GetIsExtension() == false {
			continue
		}
		ext := findExtensionByName(d, extendeeName, protoval.FullName(parts[0].GetNamePart()))
		if ext == nil {
			continue
		}
		v, ok := literalValue(opt, ext.Kind())
		if !ok {
			continue
		}
		out = append(out, CustomOption{Field: ext, Value: v})
	}
	return out
}

func findExtensionByName(d *poolData, extendee, name protoval.FullName) *extensionDescriptor {
	def, ok := d.names[name]
	if !ok || def.kind != defExtension {
		return nil
	}
	ext := d.extensions[def.index]
	if ext.extendedType == nil || ext.extendedType.FullName() != extendee {
		return nil
	}
	return ext
}

func literalValue(opt *descriptorpb.UninterpretedOption, kind protoval.Kind) (protoval.Value, bool) {
	switch {
	case opt.IdentifierValue != nil && kind == protoval.BoolKind:
		return protoval.ValueOfBool(opt.GetIdentifierValue() == "true"), true
	case opt.PositiveIntValue != nil:
		return coerceUint(opt.GetPositiveIntValue(), kind)
	case opt.NegativeIntValue != nil:
		return coerceInt(opt.GetNegativeIntValue(), kind)
	case opt.DoubleValue != nil:
		if kind == protoval.FloatKind {
			return protoval.ValueOfFloat32(float32(opt.GetDoubleValue())), true
		}
		return protoval.ValueOfFloat64(opt.GetDoubleValue()), true
	case opt.StringValue != nil:
		if kind == protoval.BytesKind {
			return protoval.ValueOfBytes(opt.GetStringValue()), true
		}
		return protoval.ValueOfString(string(opt.GetStringValue())), true
	}
	return protoval.Value{}, false
}

func coerceUint(n uint64, kind protoval.Kind) (protoval.Value, bool) {
	switch kind {
	case protoval.Uint32Kind, protoval.Fixed32Kind:
		return protoval.ValueOfUint32(uint32(n)), true
	case protoval.Uint64Kind, protoval.Fixed64Kind:
		return protoval.ValueOfUint64(n), true
	case protoval.Int32Kind, protoval.Sint32Kind, protoval.Sfixed32Kind:
		return protoval.ValueOfInt32(int32(n)), true
	case protoval.Int64Kind, protoval.Sint64Kind, protoval.Sfixed64Kind:
		return protoval.ValueOfInt64(int64(n)), true
	}
	return protoval.Value{}, false
}

func coerceInt(n int64, kind protoval.Kind) (protoval.Value, bool) {
	switch kind {
	case protoval.Int32Kind, protoval.Sint32Kind, protoval.Sfixed32Kind:
		return protoval.ValueOfInt32(int32(n)), true
	case protoval.Int64Kind, protoval.Sint64Kind, protoval.Sfixed64Kind:
		return protoval.ValueOfInt64(n), true
	}
	return protoval.Value{}, false
}
