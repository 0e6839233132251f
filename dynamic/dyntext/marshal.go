// Package dyntext implements the protobuf text format (the mapping used by
// google.golang.org/protobuf/encoding/prototext) over dynamic.Message values.
package dyntext

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dynproto/reflect/dynamic"
	"github.com/dynproto/reflect/protoval"
)

// AnyResolver resolves the message full name carried in an Any's type_url,
// used to expand an Any payload inline as `[type_url] { ... }` on print, or
// to decode one back on parse.
type AnyResolver interface {
	FindMessageByName(protoval.FullName) protoval.MessageDescriptor
}

// MarshalOptions configures text-format encoding. Only known fields are
// printed; a message's unknown fields are omitted from the output.
type MarshalOptions struct {
	// Multiline selects the pretty (newline + indent) rendering. The zero
	// value is compact (comma-separated, single line).
	Multiline bool
	// Indent is the per-level indentation string used when Multiline is
	// set; defaults to two spaces.
	Indent string
	// Resolver, if set, lets an Any field expand to `[type_url] { ... }`
	// instead of printing its literal type_url/value fields.
	Resolver AnyResolver
}

// Marshal renders m as protobuf text format using default (compact) options.
func Marshal(m *dynamic.Message) ([]byte, error) {
	return MarshalOptions{}.Marshal(m)
}

func (o MarshalOptions) Marshal(m *dynamic.Message) ([]byte, error) {
	if o.Indent == "" {
		o.Indent = "  "
	}
	p := &printer{opts: o}
	if err := p.writeMessageBody(m, 0); err != nil {
		return nil, err
	}
	out := p.buf.String()
	if o.Multiline {
		out = strings.TrimPrefix(out, "\n")
	}
	return []byte(out), nil
}

type printer struct {
	buf  strings.Builder
	opts MarshalOptions
}

// writeMessageBody writes m's fields, each one prefixed by the separator
// appropriate to the current mode (", " compact, "\n"+indent pretty); the
// leading separator before the very first field is trimmed by the top-level
// caller in compact output is naturally absent (i==0 skips it) and in
// pretty output is trimmed once by Marshal.
func (p *printer) writeMessageBody(m *dynamic.Message, depth int) error {
	md := m.Descriptor()
	if md.FullName() == "google.protobuf.Any" {
		if ok, err := p.tryWriteAnyExpansion(m, depth); ok {
			return err
		}
	}

	i := 0
	var outerErr error
	m.Range(func(fd protoval.FieldDescriptor, v protoval.Value) bool {
		if p.opts.Multiline {
			p.buf.WriteByte('\n')
			p.buf.WriteString(strings.Repeat(p.opts.Indent, depth))
		} else if i > 0 {
			p.buf.WriteString(", ")
		}
		i++
		if err := p.writeField(fd, v, depth); err != nil {
			outerErr = err
			return false
		}
		return true
	})
	return outerErr
}

func fieldTextName(fd protoval.FieldDescriptor) string {
	if fd.Kind() == protoval.GroupKind {
		return string(fd.MessageType().Name())
	}
	return string(fd.Name())
}

func (p *printer) writeField(fd protoval.FieldDescriptor, v protoval.Value, depth int) error {
	name := fieldTextName(fd)
	switch {
	case fd.IsMap():
		return p.writeMapField(name, fd, v.Map(), depth)
	case fd.Cardinality() == protoval.Repeated:
		return p.writeRepeatedField(name, fd, v.List(), depth)
	default:
		return p.writeSingularField(name, fd, v, depth)
	}
}

func (p *printer) writeSingularField(name string, fd protoval.FieldDescriptor, v protoval.Value, depth int) error {
	isMsg := fd.Kind() == protoval.MessageKind || fd.Kind() == protoval.GroupKind
	p.buf.WriteString(name)
	if isMsg {
		p.buf.WriteString(" ")
	} else {
		p.buf.WriteString(": ")
	}
	return p.writeValue(fd, v, depth)
}

func (p *printer) writeRepeatedField(name string, fd protoval.FieldDescriptor, list protoval.List, depth int) error {
	if !p.opts.Multiline {
		p.buf.WriteString(name)
		p.buf.WriteString(":[")
		for i := 0; i < list.Len(); i++ {
			if i > 0 {
				p.buf.WriteString(", ")
			}
			if err := p.writeValue(fd, list.Get(i), depth); err != nil {
				return err
			}
		}
		p.buf.WriteString("]")
		return nil
	}
	for i := 0; i < list.Len(); i++ {
		if i > 0 {
			p.buf.WriteByte('\n')
			p.buf.WriteString(strings.Repeat(p.opts.Indent, depth))
		}
		if err := p.writeSingularField(name, fd, list.Get(i), depth); err != nil {
			return err
		}
	}
	return nil
}

// writeMapField renders a map field as a sequence of {key: ..., value: ...}
// entries sharing the map field's own name, matching how repeated-message
// fields print.
func (p *printer) writeMapField(name string, fd protoval.FieldDescriptor, mp protoval.Map, depth int) error {
	type kv struct {
		k protoval.MapKey
		v protoval.Value
	}
	var entries []kv
	mp.Range(func(k protoval.MapKey, v protoval.Value) bool {
		entries = append(entries, kv{k, v})
		return true
	})

	writeEntry := func(e kv) error {
		p.buf.WriteByte('{')
		if p.opts.Multiline {
			p.buf.WriteByte('\n')
			p.buf.WriteString(strings.Repeat(p.opts.Indent, depth+1))
		}
		p.buf.WriteString("key: ")
		if err := p.writeScalar(fd.MapKeyType(), e.k.Value()); err != nil {
			return err
		}
		if p.opts.Multiline {
			p.buf.WriteByte('\n')
			p.buf.WriteString(strings.Repeat(p.opts.Indent, depth+1))
		} else {
			p.buf.WriteString(", ")
		}
		p.buf.WriteString("value: ")
		if err := p.writeValue(fd.MapValueType(), e.v, depth+1); err != nil {
			return err
		}
		if p.opts.Multiline {
			p.buf.WriteByte('\n')
			p.buf.WriteString(strings.Repeat(p.opts.Indent, depth))
		}
		p.buf.WriteByte('}')
		return nil
	}

	if !p.opts.Multiline {
		p.buf.WriteString(name)
		p.buf.WriteString(":[")
		for i, e := range entries {
			if i > 0 {
				p.buf.WriteString(", ")
			}
			if err := writeEntry(e); err != nil {
				return err
			}
		}
		p.buf.WriteString("]")
		return nil
	}
	for i, e := range entries {
		if i > 0 {
			p.buf.WriteByte('\n')
			p.buf.WriteString(strings.Repeat(p.opts.Indent, depth))
		}
		p.buf.WriteString(name)
		p.buf.WriteString(" ")
		if err := writeEntry(e); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) writeValue(fd protoval.FieldDescriptor, v protoval.Value, depth int) error {
	if fd.Kind() == protoval.MessageKind || fd.Kind() == protoval.GroupKind {
		p.buf.WriteByte('{')
		if err := p.writeMessageBody(v.Message().(*dynamic.Message), depth+1); err != nil {
			return err
		}
		if p.opts.Multiline {
			p.buf.WriteByte('\n')
			p.buf.WriteString(strings.Repeat(p.opts.Indent, depth))
		}
		p.buf.WriteByte('}')
		return nil
	}
	return p.writeScalar(fd, v)
}

func (p *printer) writeScalar(fd protoval.FieldDescriptor, v protoval.Value) error {
	switch fd.Kind() {
	case protoval.EnumKind:
		if ev := fd.EnumType().Values().ByNumber(v.Enum()); ev != nil {
			p.buf.WriteString(string(ev.Name()))
		} else {
			p.buf.WriteString(strconv.FormatInt(int64(v.Enum()), 10))
		}
	case protoval.BoolKind:
		p.buf.WriteString(strconv.FormatBool(v.Bool()))
	case protoval.StringKind:
		p.buf.WriteString(quoteText(v.String()))
	case protoval.BytesKind:
		p.buf.WriteString(quoteBytes(v.Bytes()))
	case protoval.Int32Kind, protoval.Sint32Kind, protoval.Sfixed32Kind,
		protoval.Int64Kind, protoval.Sint64Kind, protoval.Sfixed64Kind:
		p.buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case protoval.Uint32Kind, protoval.Fixed32Kind, protoval.Uint64Kind, protoval.Fixed64Kind:
		p.buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case protoval.FloatKind:
		p.buf.WriteString(formatFloat(v.Float()))
	case protoval.DoubleKind:
		p.buf.WriteString(formatFloat(v.Float()))
	default:
		return fmt.Errorf("dyntext: cannot print value of kind %v", fd.Kind())
	}
	return nil
}

// tryWriteAnyExpansion writes `[type_url] { ... }` in place of the Any's
// literal type_url/value fields, iff a Resolver is set and the payload
// decodes; otherwise it reports ok=false so the caller falls through to the
// plain field-by-field rendering.
func (p *printer) tryWriteAnyExpansion(m *dynamic.Message, depth int) (bool, error) {
	if p.opts.Resolver == nil {
		return false, nil
	}
	fields := m.Descriptor().Fields()
	typeURLFd, valueFd := fields.ByNumber(1), fields.ByNumber(2)
	if !m.Has(typeURLFd) {
		return false, nil
	}
	typeURL := m.Get(typeURLFd).String()
	name := typeURL
	if i := strings.LastIndexByte(typeURL, '/'); i >= 0 {
		name = typeURL[i+1:]
	}
	inner := p.opts.Resolver.FindMessageByName(protoval.FullName(name))
	if inner == nil {
		return false, nil
	}
	raw := m.Get(valueFd).Bytes()
	innerMsg, err := dynamic.Unmarshal(raw, inner)
	if err != nil {
		return false, nil
	}

	p.buf.WriteByte('[')
	p.buf.WriteString(typeURL)
	p.buf.WriteString("] {")
	if err := p.writeMessageBody(innerMsg, depth+1); err != nil {
		return true, err
	}
	if p.opts.Multiline {
		p.buf.WriteByte('\n')
		p.buf.WriteString(strings.Repeat(p.opts.Indent, depth))
	}
	p.buf.WriteByte('}')
	return true, nil
}

func quoteText(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	data := []byte(s)
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&b, "\\%03o", data[i])
			i++
			continue
		}
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, "\\%03o", r)
			} else {
				b.WriteRune(r)
			}
		}
		i += size
	}
	b.WriteByte('"')
	return b.String()
}

// quoteBytes escapes arbitrary binary content byte-by-byte, since a bytes
// field has no UTF-8 obligation: every byte outside printable ASCII becomes
// an octal \NNN triplet.
func quoteBytes(raw []byte) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, c := range raw {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c >= 0x20 && c < 0x7f {
				b.WriteByte(c)
			} else {
				fmt.Fprintf(&b, "\\%03o", c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}
