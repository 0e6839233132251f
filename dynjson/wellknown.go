package dynjson

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dynproto/reflect/dynamic"
	"github.com/dynproto/reflect/protoval"
)

var wrapperFields = map[protoval.FullName]bool{
	"google.protobuf.BoolValue":   true,
	"google.protobuf.Int32Value":  true,
	"google.protobuf.Int64Value":  true,
	"google.protobuf.UInt32Value": true,
	"google.protobuf.UInt64Value": true,
	"google.protobuf.FloatValue":  true,
	"google.protobuf.DoubleValue": true,
	"google.protobuf.StringValue": true,
	"google.protobuf.BytesValue":  true,
}

// marshalWellKnown renders m's JSON form when its type is one of the
// google.protobuf well-known types (Empty, Timestamp, Duration, FieldMask,
// Struct, Value, ListValue, Any, and the wrapper types), which the canonical
// mapping represents
// specially instead of as a plain field object. ok is false for any other
// message type, in which case the caller falls back to the field-by-field
// object rendering.
func (o MarshalOptions) marshalWellKnown(m *dynamic.Message, md protoval.MessageDescriptor) (interface{}, bool, error) {
	switch md.FullName() {
	case "google.protobuf.Empty":
		return map[string]interface{}{}, true, nil
	case "google.protobuf.Timestamp":
		v, err := marshalTimestamp(m, md)
		return v, true, err
	case "google.protobuf.Duration":
		v, err := marshalDuration(m, md)
		return v, true, err
	case "google.protobuf.FieldMask":
		v, err := marshalFieldMask(m, md)
		return v, true, err
	case "google.protobuf.Struct":
		v, err := o.marshalStruct(m, md)
		return v, true, err
	case "google.protobuf.Value":
		v, err := o.marshalValueWKT(m, md)
		return v, true, err
	case "google.protobuf.ListValue":
		v, err := o.marshalListValueWKT(m, md)
		return v, true, err
	case "google.protobuf.Any":
		v, err := o.marshalAny(m, md)
		return v, true, err
	}
	if wrapperFields[md.FullName()] {
		fd := md.Fields().ByNumber(1)
		v, err := o.marshalScalar(fd, m.Get(fd))
		return v, true, err
	}
	return nil, false, nil
}

func marshalTimestamp(m *dynamic.Message, md protoval.MessageDescriptor) (string, error) {
	secFd, nsFd := md.Fields().ByNumber(1), md.Fields().ByNumber(2)
	sec := m.Get(secFd).Int()
	nanos := m.Get(nsFd).Int()
	if nanos < 0 || nanos > 999999999 {
		return "", fmt.Errorf("dynjson: timestamp nanos %d out of range", nanos)
	}
	t := time.Unix(sec, nanos).UTC()
	return t.Format("2006-01-02T15:04:05") + fracSeconds(int32(nanos)) + "Z", nil
}

func fracSeconds(nanos int32) string {
	switch {
	case nanos == 0:
		return ""
	case nanos%1000000 == 0:
		return fmt.Sprintf(".%03d", nanos/1000000)
	case nanos%1000 == 0:
		return fmt.Sprintf(".%06d", nanos/1000)
	default:
		return fmt.Sprintf(".%09d", nanos)
	}
}

func marshalDuration(m *dynamic.Message, md protoval.MessageDescriptor) (string, error) {
	secFd, nsFd := md.Fields().ByNumber(1), md.Fields().ByNumber(2)
	sec := m.Get(secFd).Int()
	nanos := m.Get(nsFd).Int()
	neg := sec < 0 || nanos < 0
	if sec < 0 {
		sec = -sec
	}
	if nanos < 0 {
		nanos = -nanos
	}
	sign := ""
	if neg {
		sign = "-"
	}
	return sign + strconv.FormatInt(sec, 10) + fracSecondsOrZero(int32(nanos)) + "s", nil
}

func fracSecondsOrZero(nanos int32) string {
	if nanos == 0 {
		return ""
	}
	return fracSeconds(nanos)
}

func marshalFieldMask(m *dynamic.Message, md protoval.MessageDescriptor) (string, error) {
	pathsFd := md.Fields().ByNumber(1)
	list := m.Get(pathsFd).List()
	parts := make([]string, list.Len())
	for i := 0; i < list.Len(); i++ {
		segs := strings.Split(list.Get(i).String(), ".")
		for j, s := range segs {
			segs[j] = jsonCamelCase(s)
		}
		parts[i] = strings.Join(segs, ".")
	}
	return strings.Join(parts, ","), nil
}

func jsonCamelCase(s string) string {
	var b strings.Builder
	upper := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_':
			upper = true
		case upper && 'a' <= c && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
			upper = false
		default:
			b.WriteByte(c)
			upper = false
		}
	}
	return b.String()
}

func (o MarshalOptions) marshalStruct(m *dynamic.Message, md protoval.MessageDescriptor) (interface{}, error) {
	fieldsFd := md.Fields().ByNumber(1)
	mp := m.Get(fieldsFd).Map()
	obj := make(map[string]interface{}, mp.Len())
	var err error
	mp.Range(func(k protoval.MapKey, v protoval.Value) bool {
		var jv interface{}
		jv, err = o.marshalMessage(v.Message().(*dynamic.Message))
		if err != nil {
			return false
		}
		obj[k.String()] = jv
		return true
	})
	return obj, err
}

func (o MarshalOptions) marshalValueWKT(m *dynamic.Message, md protoval.MessageDescriptor) (interface{}, error) {
	fields := md.Fields()
	switch {
	case m.Has(fields.ByNumber(1)): // null_value
		return nil, nil
	case m.Has(fields.ByNumber(2)): // number_value
		return m.Get(fields.ByNumber(2)).Float(), nil
	case m.Has(fields.ByNumber(3)): // string_value
		return m.Get(fields.ByNumber(3)).String(), nil
	case m.Has(fields.ByNumber(4)): // bool_value
		return m.Get(fields.ByNumber(4)).Bool(), nil
	case m.Has(fields.ByNumber(5)): // struct_value
		return o.marshalMessage(m.Get(fields.ByNumber(5)).Message().(*dynamic.Message))
	case m.Has(fields.ByNumber(6)): // list_value
		return o.marshalMessage(m.Get(fields.ByNumber(6)).Message().(*dynamic.Message))
	default:
		return nil, nil
	}
}

func (o MarshalOptions) marshalListValueWKT(m *dynamic.Message, md protoval.MessageDescriptor) (interface{}, error) {
	valuesFd := md.Fields().ByNumber(1)
	list := m.Get(valuesFd).List()
	out := make([]interface{}, list.Len())
	for i := 0; i < list.Len(); i++ {
		jv, err := o.marshalMessage(list.Get(i).Message().(*dynamic.Message))
		if err != nil {
			return nil, err
		}
		out[i] = jv
	}
	return out, nil
}

func (o MarshalOptions) marshalAny(m *dynamic.Message, md protoval.MessageDescriptor) (interface{}, error) {
	fields := md.Fields()
	typeURL := m.Get(fields.ByNumber(1)).String()
	raw := m.Get(fields.ByNumber(2)).Bytes()

	if o.Resolver == nil {
		return nil, fmt.Errorf("dynjson: cannot marshal Any %q without a Resolver", typeURL)
	}
	name := typeURL
	if i := strings.LastIndexByte(typeURL, '/'); i >= 0 {
		name = typeURL[i+1:]
	}
	inner := o.Resolver.FindMessageByName(protoval.FullName(name))
	if inner == nil {
		return nil, fmt.Errorf("dynjson: cannot resolve Any type %q", typeURL)
	}
	innerMsg, err := dynamic.Unmarshal(raw, inner)
	if err != nil {
		return nil, fmt.Errorf("dynjson: decoding Any payload for %q: %w", typeURL, err)
	}

	if wkt, ok, err := o.marshalWellKnown(innerMsg, inner); ok {
		if err != nil {
			return nil, err
		}
		if obj, isObj := wkt.(map[string]interface{}); isObj {
			obj["@type"] = typeURL
			return obj, nil
		}
		return map[string]interface{}{"@type": typeURL, "value": wkt}, nil
	}

	obj, err := o.marshalMessage(innerMsg)
	if err != nil {
		return nil, err
	}
	asMap := obj.(map[string]interface{})
	asMap["@type"] = typeURL
	return asMap, nil
}

// unmarshalWellKnown decodes raw into a new message of type md when md is
// one of the well-known types with a special JSON mapping. ok is
// false for any other message type, in which case the caller falls back to
// the field-by-field object parsing.
func (o UnmarshalOptions) unmarshalWellKnown(raw interface{}, md protoval.MessageDescriptor) (*dynamic.Message, bool, error) {
	switch md.FullName() {
	case "google.protobuf.Empty":
		if _, ok := raw.(map[string]interface{}); !ok {
			return nil, true, fmt.Errorf("dynjson: %s: expected a JSON object", md.FullName())
		}
		return dynamic.New(md), true, nil
	case "google.protobuf.Timestamp":
		s, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("dynjson: %s: expected a JSON string", md.FullName())
		}
		m, err := unmarshalTimestamp(s, md)
		return m, true, err
	case "google.protobuf.Duration":
		s, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("dynjson: %s: expected a JSON string", md.FullName())
		}
		m, err := unmarshalDuration(s, md)
		return m, true, err
	case "google.protobuf.FieldMask":
		s, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("dynjson: %s: expected a JSON string", md.FullName())
		}
		m, err := unmarshalFieldMask(s, md)
		return m, true, err
	case "google.protobuf.Struct":
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return nil, true, fmt.Errorf("dynjson: %s: expected a JSON object", md.FullName())
		}
		m, err := o.unmarshalStruct(obj, md)
		return m, true, err
	case "google.protobuf.Value":
		m, err := o.unmarshalValueWKT(raw, md)
		return m, true, err
	case "google.protobuf.ListValue":
		arr, ok := raw.([]interface{})
		if !ok {
			return nil, true, fmt.Errorf("dynjson: %s: expected a JSON array", md.FullName())
		}
		m, err := o.unmarshalListValueWKT(arr, md)
		return m, true, err
	case "google.protobuf.Any":
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return nil, true, fmt.Errorf("dynjson: %s: expected a JSON object", md.FullName())
		}
		m, err := o.unmarshalAny(obj, md)
		return m, true, err
	}
	if wrapperFields[md.FullName()] {
		fd := md.Fields().ByNumber(1)
		v, err := o.unmarshalScalar(fd, raw)
		if err != nil {
			return nil, true, err
		}
		m := dynamic.New(md)
		m.Set(fd, v)
		return m, true, nil
	}
	return nil, false, nil
}

func unmarshalTimestamp(s string, md protoval.MessageDescriptor) (*dynamic.Message, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("dynjson: invalid timestamp %q: %w", s, err)
	}
	secFd, nsFd := md.Fields().ByNumber(1), md.Fields().ByNumber(2)
	m := dynamic.New(md)
	m.Set(secFd, protoval.ValueOfInt64(t.Unix()))
	m.Set(nsFd, protoval.ValueOfInt32(int32(t.Nanosecond())))
	return m, nil
}

func unmarshalDuration(s string, md protoval.MessageDescriptor) (*dynamic.Message, error) {
	str := s
	neg := strings.HasPrefix(str, "-")
	if neg {
		str = str[1:]
	}
	if !strings.HasSuffix(str, "s") {
		return nil, fmt.Errorf("dynjson: invalid duration %q", s)
	}
	str = strings.TrimSuffix(str, "s")

	parts := strings.SplitN(str, ".", 2)
	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("dynjson: invalid duration %q: %w", s, err)
	}
	var nanos int64
	if len(parts) == 2 {
		frac := parts[1]
		for len(frac) < 9 {
			frac += "0"
		}
		nanos, err = strconv.ParseInt(frac[:9], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("dynjson: invalid duration %q: %w", s, err)
		}
	}
	if neg {
		sec, nanos = -sec, -nanos
	}
	secFd, nsFd := md.Fields().ByNumber(1), md.Fields().ByNumber(2)
	m := dynamic.New(md)
	m.Set(secFd, protoval.ValueOfInt64(sec))
	m.Set(nsFd, protoval.ValueOfInt32(int32(nanos)))
	return m, nil
}

func unmarshalFieldMask(s string, md protoval.MessageDescriptor) (*dynamic.Message, error) {
	pathsFd := md.Fields().ByNumber(1)
	list := dynamic.NewList(pathsFd)
	if s != "" {
		for _, p := range strings.Split(s, ",") {
			segs := strings.Split(p, ".")
			for i, seg := range segs {
				segs[i] = unCamelCase(seg)
			}
			list.Append(protoval.ValueOfString(strings.Join(segs, ".")))
		}
	}
	m := dynamic.New(md)
	m.Set(pathsFd, protoval.ValueOfList(list))
	return m, nil
}

func (o UnmarshalOptions) unmarshalStruct(obj map[string]interface{}, md protoval.MessageDescriptor) (*dynamic.Message, error) {
	fieldsFd := md.Fields().ByNumber(1)
	valueMd := fieldsFd.MapValueType().MessageType()
	mp := dynamic.NewMap(fieldsFd)
	for k, v := range obj {
		sub, err := o.unmarshalMessageValue(v, valueMd)
		if err != nil {
			return nil, err
		}
		mp.Set(protoval.MapKeyOf(protoval.ValueOfString(k)), protoval.ValueOfMessage(sub))
	}
	m := dynamic.New(md)
	m.Set(fieldsFd, protoval.ValueOfMap(mp))
	return m, nil
}

func (o UnmarshalOptions) unmarshalValueWKT(raw interface{}, md protoval.MessageDescriptor) (*dynamic.Message, error) {
	fields := md.Fields()
	m := dynamic.New(md)
	switch v := raw.(type) {
	case nil:
		m.Set(fields.ByNumber(1), protoval.ValueOfEnum(0))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("dynjson: %s: bad number %q", md.FullName(), v)
		}
		m.Set(fields.ByNumber(2), protoval.ValueOfFloat64(f))
	case string:
		m.Set(fields.ByNumber(3), protoval.ValueOfString(v))
	case bool:
		m.Set(fields.ByNumber(4), protoval.ValueOfBool(v))
	case map[string]interface{}:
		structMd := fields.ByNumber(5).MessageType()
		sub, err := o.unmarshalStruct(v, structMd)
		if err != nil {
			return nil, err
		}
		m.Set(fields.ByNumber(5), protoval.ValueOfMessage(sub))
	case []interface{}:
		listMd := fields.ByNumber(6).MessageType()
		sub, err := o.unmarshalListValueWKT(v, listMd)
		if err != nil {
			return nil, err
		}
		m.Set(fields.ByNumber(6), protoval.ValueOfMessage(sub))
	default:
		return nil, fmt.Errorf("dynjson: %s: unsupported JSON value %T", md.FullName(), raw)
	}
	return m, nil
}

func (o UnmarshalOptions) unmarshalListValueWKT(arr []interface{}, md protoval.MessageDescriptor) (*dynamic.Message, error) {
	valuesFd := md.Fields().ByNumber(1)
	valueMd := valuesFd.MessageType()
	list := dynamic.NewList(valuesFd)
	for _, el := range arr {
		sub, err := o.unmarshalValueWKT(el, valueMd)
		if err != nil {
			return nil, err
		}
		list.Append(protoval.ValueOfMessage(sub))
	}
	m := dynamic.New(md)
	m.Set(valuesFd, protoval.ValueOfList(list))
	return m, nil
}

func (o UnmarshalOptions) unmarshalAny(obj map[string]interface{}, md protoval.MessageDescriptor) (*dynamic.Message, error) {
	typeURL, _ := obj["@type"].(string)
	if typeURL == "" {
		return nil, fmt.Errorf("dynjson: Any missing @type")
	}
	if o.Resolver == nil {
		return nil, fmt.Errorf("dynjson: cannot unmarshal Any %q without a Resolver", typeURL)
	}
	name := typeURL
	if i := strings.LastIndexByte(typeURL, '/'); i >= 0 {
		name = typeURL[i+1:]
	}
	inner := o.Resolver.FindMessageByName(protoval.FullName(name))
	if inner == nil {
		return nil, fmt.Errorf("dynjson: cannot resolve Any type %q", typeURL)
	}

	var innerMsg *dynamic.Message
	var err error
	if val, ok := obj["value"]; ok {
		innerMsg, err = o.unmarshalMessageValue(val, inner)
	} else {
		rest := make(map[string]interface{}, len(obj))
		for k, v := range obj {
			if k != "@type" {
				rest[k] = v
			}
		}
		innerMsg, err = o.unmarshalMessageValue(rest, inner)
	}
	if err != nil {
		return nil, fmt.Errorf("dynjson: decoding Any payload for %q: %w", typeURL, err)
	}

	raw, err := dynamic.Marshal(innerMsg)
	if err != nil {
		return nil, err
	}
	m := dynamic.New(md)
	fields := md.Fields()
	m.Set(fields.ByNumber(1), protoval.ValueOfString(typeURL))
	m.Set(fields.ByNumber(2), protoval.ValueOfBytes(raw))
	return m, nil
}
