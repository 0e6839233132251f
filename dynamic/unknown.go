package dynamic

import "github.com/dynproto/reflect/protoval"

// UnknownField is one wire-format field the decoder's descriptor didn't
// recognize (an out-of-range number, or a number with no matching
// FieldDescriptor at all). Raw holds the exact encoded bytes of the field's
// value only (tag excluded, varint-length-prefix excluded for
// length-delimited fields — callers re-derive the tag from Number/Wire when
// re-emitting), so a decode-then-encode round trip is byte-identical even
// for data this pool has never seen a schema for.
type UnknownField struct {
	Number protoval.FieldNumber
	Wire   protoval.WireType
	Raw    []byte
}
