// Package dynjson implements the protobuf canonical JSON mapping (the same
// mapping implemented by google.golang.org/protobuf/encoding/protojson) over
// dynamic.Message values instead of generated types.
package dynjson

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/dynproto/reflect/dynamic"
	"github.com/dynproto/reflect/protoval"
)

// MarshalOptions configures JSON encoding.
type MarshalOptions struct {
	// EmitUnpopulated emits fields at their zero value instead of omitting
	// them (message-typed, oneof, and proto3-optional fields are still
	// omitted unless actually set, matching protojson).
	EmitUnpopulated bool
	// UseProtoNames emits original field names (foo_bar) instead of the
	// default lowerCamelCase JSON names.
	UseProtoNames bool
	// UseEnumNumbers emits enum values as their numeric value instead of
	// their declared name.
	UseEnumNumbers bool
	// Indent, if non-empty, is used as the per-level indentation string.
	Indent string
	// Resolver looks up the message type named by an Any's type_url; nil
	// means Any values without a registered type fail to marshal.
	Resolver AnyResolver
}

// AnyResolver resolves the message full name carried in an Any's type_url.
type AnyResolver interface {
	FindMessageByName(protoval.FullName) protoval.MessageDescriptor
}

// Marshal encodes m as canonical protobuf JSON using default options.
func Marshal(m *dynamic.Message) ([]byte, error) {
	return MarshalOptions{}.Marshal(m)
}

func (o MarshalOptions) Marshal(m *dynamic.Message) ([]byte, error) {
	tree, err := o.marshalMessage(m)
	if err != nil {
		return nil, err
	}
	if o.Indent != "" {
		return json.MarshalIndent(tree, "", o.Indent)
	}
	return json.Marshal(tree)
}

func (o MarshalOptions) marshalMessage(m *dynamic.Message) (interface{}, error) {
	md := m.Descriptor()
	if wkt, ok, err := o.marshalWellKnown(m, md); ok || err != nil {
		return wkt, err
	}

	obj := make(map[string]interface{})
	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		has := m.Has(fd)
		if !has && !o.shouldEmitZero(fd) {
			continue
		}
		v := m.Get(fd)
		jv, err := o.marshalFieldValue(fd, v)
		if err != nil {
			return nil, err
		}
		obj[o.fieldName(fd)] = jv
	}
	return obj, nil
}

// shouldEmitZero reports whether an absent field should still be emitted at
// its zero value under EmitUnpopulated: repeated and map fields are emitted
// as an empty array or object, while singular message-typed and
// oneof-member fields are always omitted when unset (there is no
// "unpopulated" rendering of a missing submessage or an empty oneof).
func (o MarshalOptions) shouldEmitZero(fd protoval.FieldDescriptor) bool {
	if !o.EmitUnpopulated {
		return false
	}
	if fd.Cardinality() == protoval.Repeated {
		return true
	}
	if fd.ContainingOneof() != nil {
		return false
	}
	if fd.Kind() == protoval.MessageKind || fd.Kind() == protoval.GroupKind {
		return false
	}
	return true
}

func (o MarshalOptions) fieldName(fd protoval.FieldDescriptor) string {
	if o.UseProtoNames {
		return string(fd.Name())
	}
	return fd.JSONName()
}

func (o MarshalOptions) marshalFieldValue(fd protoval.FieldDescriptor, v protoval.Value) (interface{}, error) {
	switch {
	case fd.IsMap():
		return o.marshalMap(fd, v.Map())
	case fd.Cardinality() == protoval.Repeated:
		return o.marshalList(fd, v.List())
	default:
		return o.marshalScalar(fd, v)
	}
}

func (o MarshalOptions) marshalMap(fd protoval.FieldDescriptor, m protoval.Map) (interface{}, error) {
	type entry struct {
		key string
		val interface{}
	}
	var entries []entry
	var err error
	m.Range(func(k protoval.MapKey, v protoval.Value) bool {
		var jv interface{}
		jv, err = o.marshalScalar(fd.MapValueType(), v)
		if err != nil {
			return false
		}
		entries = append(entries, entry{key: mapKeyString(k), val: jv})
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	obj := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		obj[e.key] = e.val
	}
	return obj, nil
}

func mapKeyString(k protoval.MapKey) string {
	if s, ok := k.Interface().(string); ok {
		return s
	}
	return fmt.Sprint(k.Interface())
}

func (o MarshalOptions) marshalList(fd protoval.FieldDescriptor, l protoval.List) (interface{}, error) {
	out := make([]interface{}, l.Len())
	for i := 0; i < l.Len(); i++ {
		jv, err := o.marshalScalar(fd, l.Get(i))
		if err != nil {
			return nil, err
		}
		out[i] = jv
	}
	return out, nil
}

func (o MarshalOptions) marshalScalar(fd protoval.FieldDescriptor, v protoval.Value) (interface{}, error) {
	switch fd.Kind() {
	case protoval.MessageKind, protoval.GroupKind:
		return o.marshalMessage(v.Message().(*dynamic.Message))
	case protoval.EnumKind:
		return o.marshalEnum(fd, v.Enum())
	case protoval.BoolKind:
		return v.Bool(), nil
	case protoval.StringKind:
		return v.String(), nil
	case protoval.BytesKind:
		return base64.StdEncoding.EncodeToString(v.Bytes()), nil
	case protoval.Int32Kind, protoval.Sint32Kind, protoval.Sfixed32Kind:
		return float64(v.Int()), nil
	case protoval.Uint32Kind, protoval.Fixed32Kind:
		return float64(v.Uint()), nil
	case protoval.Int64Kind, protoval.Sint64Kind, protoval.Sfixed64Kind:
		return strconv.FormatInt(v.Int(), 10), nil
	case protoval.Uint64Kind, protoval.Fixed64Kind:
		return strconv.FormatUint(v.Uint(), 10), nil
	case protoval.FloatKind:
		return marshalFloat(v.Float(), 32), nil
	case protoval.DoubleKind:
		return marshalFloat(v.Float(), 64), nil
	default:
		return nil, fmt.Errorf("dynjson: cannot marshal kind %v", fd.Kind())
	}
}

func (o MarshalOptions) marshalEnum(fd protoval.FieldDescriptor, n protoval.EnumNumber) (interface{}, error) {
	if o.UseEnumNumbers {
		return float64(n), nil
	}
	if ev := fd.EnumType().Values().ByNumber(n); ev != nil {
		return string(ev.Name()), nil
	}
	return float64(n), nil
}

func marshalFloat(f float64, bits int) interface{} {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return f
	}
}
