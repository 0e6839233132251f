package dynjson

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dynproto/reflect/dynamic"
	"github.com/dynproto/reflect/protoval"
)

// UnmarshalOptions configures JSON decoding.
type UnmarshalOptions struct {
	// AllowUnknownFields accepts (and discards) object keys with no
	// matching field instead of erroring.
	AllowUnknownFields bool
	// Resolver looks up the message type named by an Any's type_url.
	Resolver AnyResolver
}

// Unmarshal decodes canonical protobuf JSON data into a new message of type
// md, using default options.
func Unmarshal(data []byte, md protoval.MessageDescriptor) (*dynamic.Message, error) {
	return UnmarshalOptions{}.Unmarshal(data, md)
}

func (o UnmarshalOptions) Unmarshal(data []byte, md protoval.MessageDescriptor) (*dynamic.Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree interface{}
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("dynjson: %w", err)
	}
	return o.unmarshalMessageValue(tree, md)
}

func (o UnmarshalOptions) unmarshalMessageValue(raw interface{}, md protoval.MessageDescriptor) (*dynamic.Message, error) {
	if m, ok, err := o.unmarshalWellKnown(raw, md); ok || err != nil {
		return m, err
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("dynjson: %s: expected a JSON object", md.FullName())
	}
	m := dynamic.New(md)
	fields := md.Fields()
	oneofSet := make(map[protoval.FullName]string)

	for key, val := range obj {
		if key == "@type" {
			continue
		}
		fd := findField(fields, key)
		if fd == nil {
			if o.AllowUnknownFields {
				continue
			}
			return nil, fmt.Errorf("dynjson: %s: unknown field %q", md.FullName(), key)
		}
		if od := fd.ContainingOneof(); od != nil {
			if prev, dup := oneofSet[od.FullName()]; dup {
				return nil, fmt.Errorf("dynjson: %s: oneof %s already set by %q, cannot also set %q", md.FullName(), od.Name(), prev, key)
			}
			oneofSet[od.FullName()] = key
		}
		if val == nil && !isValueMessage(fd) {
			// An explicit JSON null leaves the field unset, except when the
			// field's type is google.protobuf.Value, where null is itself a
			// meaningful value (NullValue).
			continue
		}
		v, err := o.unmarshalFieldValue(fd, val)
		if err != nil {
			return nil, err
		}
		m.Set(fd, v)
	}
	return m, nil
}

func isValueMessage(fd protoval.FieldDescriptor) bool {
	return fd.Kind() == protoval.MessageKind && fd.MessageType().FullName() == "google.protobuf.Value"
}

func findField(fields protoval.FieldDescriptors, key string) protoval.FieldDescriptor {
	if fd := fields.ByJSONName(key); fd != nil {
		return fd
	}
	return fields.ByName(protoval.Name(key))
}

func (o UnmarshalOptions) unmarshalFieldValue(fd protoval.FieldDescriptor, raw interface{}) (protoval.Value, error) {
	if fd.IsMap() {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: expected a JSON object", fd.FullName())
		}
		mp := dynamic.NewMap(fd)
		for k, v := range obj {
			key, err := unmarshalMapKey(fd.MapKeyType(), k)
			if err != nil {
				return protoval.Value{}, err
			}
			val, err := o.unmarshalScalar(fd.MapValueType(), v)
			if err != nil {
				return protoval.Value{}, err
			}
			mp.Set(key, val)
		}
		return protoval.ValueOfMap(mp), nil
	}
	if fd.Cardinality() == protoval.Repeated {
		arr, ok := raw.([]interface{})
		if !ok {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: expected a JSON array", fd.FullName())
		}
		list := dynamic.NewList(fd)
		for _, el := range arr {
			v, err := o.unmarshalScalar(fd, el)
			if err != nil {
				return protoval.Value{}, err
			}
			list.Append(v)
		}
		return protoval.ValueOfList(list), nil
	}
	return o.unmarshalScalar(fd, raw)
}

func unmarshalMapKey(keyFd protoval.FieldDescriptor, s string) (protoval.MapKey, error) {
	switch keyFd.Kind() {
	case protoval.StringKind:
		return protoval.MapKeyOf(protoval.ValueOfString(s)), nil
	case protoval.BoolKind:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return protoval.MapKey{}, fmt.Errorf("dynjson: bad bool map key %q", s)
		}
		return protoval.MapKeyOf(protoval.ValueOfBool(b)), nil
	case protoval.Int32Kind, protoval.Sint32Kind, protoval.Sfixed32Kind:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return protoval.MapKey{}, fmt.Errorf("dynjson: bad int32 map key %q", s)
		}
		return protoval.MapKeyOf(protoval.ValueOfInt32(int32(n))), nil
	case protoval.Int64Kind, protoval.Sint64Kind, protoval.Sfixed64Kind:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return protoval.MapKey{}, fmt.Errorf("dynjson: bad int64 map key %q", s)
		}
		return protoval.MapKeyOf(protoval.ValueOfInt64(n)), nil
	case protoval.Uint32Kind, protoval.Fixed32Kind:
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return protoval.MapKey{}, fmt.Errorf("dynjson: bad uint32 map key %q", s)
		}
		return protoval.MapKeyOf(protoval.ValueOfUint32(uint32(n))), nil
	case protoval.Uint64Kind, protoval.Fixed64Kind:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return protoval.MapKey{}, fmt.Errorf("dynjson: bad uint64 map key %q", s)
		}
		return protoval.MapKeyOf(protoval.ValueOfUint64(n)), nil
	default:
		return protoval.MapKey{}, fmt.Errorf("dynjson: invalid map key kind %v", keyFd.Kind())
	}
}

func (o UnmarshalOptions) unmarshalScalar(fd protoval.FieldDescriptor, raw interface{}) (protoval.Value, error) {
	switch fd.Kind() {
	case protoval.MessageKind, protoval.GroupKind:
		sub, err := o.unmarshalMessageValue(raw, fd.MessageType())
		if err != nil {
			return protoval.Value{}, err
		}
		return protoval.ValueOfMessage(sub), nil
	case protoval.EnumKind:
		return unmarshalEnum(fd, raw)
	case protoval.BoolKind:
		b, ok := raw.(bool)
		if !ok {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: expected a JSON bool", fd.FullName())
		}
		return protoval.ValueOfBool(b), nil
	case protoval.StringKind:
		s, ok := raw.(string)
		if !ok {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: expected a JSON string", fd.FullName())
		}
		return protoval.ValueOfString(s), nil
	case protoval.BytesKind:
		s, ok := raw.(string)
		if !ok {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: expected a JSON string", fd.FullName())
		}
		b, err := decodeBase64(s)
		if err != nil {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: %w", fd.FullName(), err)
		}
		return protoval.ValueOfBytes(b), nil
	case protoval.Int32Kind, protoval.Sint32Kind, protoval.Sfixed32Kind:
		n, err := asInt64(raw)
		if err != nil {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: %w", fd.FullName(), err)
		}
		return protoval.ValueOfInt32(int32(n)), nil
	case protoval.Uint32Kind, protoval.Fixed32Kind:
		n, err := asUint64(raw)
		if err != nil {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: %w", fd.FullName(), err)
		}
		return protoval.ValueOfUint32(uint32(n)), nil
	case protoval.Int64Kind, protoval.Sint64Kind, protoval.Sfixed64Kind:
		n, err := asInt64(raw)
		if err != nil {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: %w", fd.FullName(), err)
		}
		return protoval.ValueOfInt64(n), nil
	case protoval.Uint64Kind, protoval.Fixed64Kind:
		n, err := asUint64(raw)
		if err != nil {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: %w", fd.FullName(), err)
		}
		return protoval.ValueOfUint64(n), nil
	case protoval.FloatKind:
		f, err := asFloat64(raw)
		if err != nil {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: %w", fd.FullName(), err)
		}
		return protoval.ValueOfFloat32(float32(f)), nil
	case protoval.DoubleKind:
		f, err := asFloat64(raw)
		if err != nil {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: %w", fd.FullName(), err)
		}
		return protoval.ValueOfFloat64(f), nil
	default:
		return protoval.Value{}, fmt.Errorf("dynjson: field %s: unsupported kind %v", fd.FullName(), fd.Kind())
	}
}

func unmarshalEnum(fd protoval.FieldDescriptor, raw interface{}) (protoval.Value, error) {
	switch v := raw.(type) {
	case string:
		ev := fd.EnumType().Values().ByName(protoval.Name(v))
		if ev == nil {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: unknown enum name %q", fd.FullName(), v)
		}
		return protoval.ValueOfEnum(ev.Number()), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return protoval.Value{}, fmt.Errorf("dynjson: field %s: bad enum number %q", fd.FullName(), v)
		}
		return protoval.ValueOfEnum(protoval.EnumNumber(int32(n))), nil
	default:
		return protoval.Value{}, fmt.Errorf("dynjson: field %s: expected enum name or number", fd.FullName())
	}
}

func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

func asInt64(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("expected a JSON number or numeric string, got %T", raw)
	}
}

func asUint64(raw interface{}) (uint64, error) {
	switch v := raw.(type) {
	case json.Number:
		return strconv.ParseUint(v.String(), 10, 64)
	case string:
		return strconv.ParseUint(v, 10, 64)
	default:
		return 0, fmt.Errorf("expected a JSON number or numeric string, got %T", raw)
	}
}

func asFloat64(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case json.Number:
		return v.Float64()
	case string:
		switch v {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		default:
			return strconv.ParseFloat(v, 64)
		}
	default:
		return 0, fmt.Errorf("expected a JSON number or numeric string, got %T", raw)
	}
}

func unCamelCase(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			b.WriteByte('_')
			b.WriteByte(c - 'A' + 'a')
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}
