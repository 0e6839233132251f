package protoval

import (
	"fmt"
	"math"
)

// vkind tags which variant of Value is populated.
type vkind uint8

const (
	vInvalid vkind = iota
	vBool
	vI32
	vI64
	vU32
	vU64
	vF32
	vF64
	vString
	vBytes
	vEnum
	vMessage
	vList
	vMap
)

// Value is a tagged union holding exactly one field's contents: a scalar, an
// enum number, a message, a list, or a map. The zero Value is invalid and
// carries no field.
//
// Value is deliberately a plain data holder: it does not know which
// FieldDescriptor it came from, so callers validate kind compatibility
// themselves (dynamic.Message.Set stores whatever Value it is given without
// checking it against the field's kind).
type Value struct {
	kind vkind
	num  uint64
	str  string
	bin  []byte
	any  interface{}
}

func (v Value) IsValid() bool { return v.kind != vInvalid }

func ValueOfBool(x bool) Value {
	var n uint64
	if x {
		n = 1
	}
	return Value{kind: vBool, num: n}
}
func ValueOfInt32(x int32) Value   { return Value{kind: vI32, num: uint64(uint32(x))} }
func ValueOfInt64(x int64) Value   { return Value{kind: vI64, num: uint64(x)} }
func ValueOfUint32(x uint32) Value { return Value{kind: vU32, num: uint64(x)} }
func ValueOfUint64(x uint64) Value { return Value{kind: vU64, num: x} }
func ValueOfFloat32(x float32) Value {
	return Value{kind: vF32, num: uint64(math.Float32bits(x))}
}
func ValueOfFloat64(x float64) Value {
	return Value{kind: vF64, num: math.Float64bits(x)}
}
func ValueOfString(x string) Value      { return Value{kind: vString, str: x} }
func ValueOfBytes(x []byte) Value       { return Value{kind: vBytes, bin: x} }
func ValueOfEnum(x EnumNumber) Value    { return Value{kind: vEnum, num: uint64(uint32(x))} }
func ValueOfMessage(x Message) Value    { return Value{kind: vMessage, any: x} }
func ValueOfList(x List) Value          { return Value{kind: vList, any: x} }
func ValueOfMap(x Map) Value            { return Value{kind: vMap, any: x} }

func (v Value) Bool() bool { v.mustBe(vBool); return v.num != 0 }
func (v Value) Int() int64 {
	v.mustBeOneOf(vI32, vI64)
	if v.kind == vI32 {
		return int64(int32(v.num))
	}
	return int64(v.num)
}
func (v Value) Uint() uint64 { v.mustBeOneOf(vU32, vU64); return v.num }
func (v Value) Float() float64 {
	switch v.kind {
	case vF32:
		return float64(math.Float32frombits(uint32(v.num)))
	case vF64:
		return math.Float64frombits(v.num)
	}
	panic(fmt.Sprintf("protoval: Value holds %v, not a float", v.kind))
}
func (v Value) String() string    { v.mustBe(vString); return v.str }
func (v Value) Bytes() []byte     { v.mustBe(vBytes); return v.bin }
func (v Value) Enum() EnumNumber  { v.mustBe(vEnum); return EnumNumber(int32(v.num)) }
func (v Value) Message() Message  { v.mustBe(vMessage); return v.any.(Message) }
func (v Value) List() List        { v.mustBe(vList); return v.any.(List) }
func (v Value) Map() Map          { v.mustBe(vMap); return v.any.(Map) }

// Interface unwraps the Value to its native Go representation: bool, int32,
// int64, uint32, uint64, float32, float64, string, []byte, EnumNumber,
// Message, List, or Map.
func (v Value) Interface() interface{} {
	switch v.kind {
	case vBool:
		return v.Bool()
	case vI32:
		return int32(v.num)
	case vI64:
		return int64(v.num)
	case vU32:
		return uint32(v.num)
	case vU64:
		return v.num
	case vF32:
		return math.Float32frombits(uint32(v.num))
	case vF64:
		return math.Float64frombits(v.num)
	case vString:
		return v.str
	case vBytes:
		return v.bin
	case vEnum:
		return EnumNumber(int32(v.num))
	case vMessage, vList, vMap:
		return v.any
	default:
		return nil
	}
}

func (v Value) mustBe(k vkind) {
	if v.kind != k {
		panic(fmt.Sprintf("protoval: Value holds %v, not %v", v.kind, k))
	}
}
func (v Value) mustBeOneOf(ks ...vkind) {
	for _, k := range ks {
		if v.kind == k {
			return
		}
	}
	panic(fmt.Sprintf("protoval: Value holds %v, not one of %v", v.kind, ks))
}

func (k vkind) String() string {
	names := [...]string{"invalid", "bool", "int32", "int64", "uint32", "uint64",
		"float32", "float64", "string", "bytes", "enum", "message", "list", "map"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// MapKey is the restricted subset of Value usable as a map key: bool, the
// four integer kinds, or string.
type MapKey struct{ v Value }

func MapKeyOf(v Value) MapKey {
	switch v.kind {
	case vBool, vI32, vI64, vU32, vU64, vString:
		return MapKey{v}
	default:
		panic(fmt.Sprintf("protoval: %v cannot be a map key", v.kind))
	}
}

func (k MapKey) Value() Value { return k.v }
func (k MapKey) Bool() bool   { return k.v.Bool() }
func (k MapKey) Int() int64   { return k.v.Int() }
func (k MapKey) Uint() uint64 { return k.v.Uint() }
func (k MapKey) String() string {
	if k.v.kind == vString {
		return k.v.str
	}
	return fmt.Sprint(k.v.Interface())
}

// Interface returns a value comparable with ==, suitable for use as a Go map
// key (the dynamic package's Map implementation keys an internal map on this).
func (k MapKey) Interface() interface{} { return k.v.Interface() }

// Message, List, and Map are the composite value interfaces. They are
// declared here (rather than in the dynamic package) so that Value can hold
// them without creating an import cycle between the pool, protoval, and
// dynamic packages.
type Message interface {
	Descriptor() MessageDescriptor
	Has(FieldDescriptor) bool
	Get(FieldDescriptor) Value
	Set(FieldDescriptor, Value)
	Clear(FieldDescriptor)
	Range(func(FieldDescriptor, Value) bool)
}

type List interface {
	Len() int
	Get(int) Value
	Set(int, Value)
	Append(Value)
	Truncate(int)
}

type Map interface {
	Len() int
	Has(MapKey) bool
	Get(MapKey) Value
	Set(MapKey, Value)
	Clear(MapKey)
	Range(func(MapKey, Value) bool)
}
