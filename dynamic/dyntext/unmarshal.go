package dyntext

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dynproto/reflect/dynamic"
	"github.com/dynproto/reflect/protoval"
)

// UnmarshalOptions configures text-format decoding.
type UnmarshalOptions struct {
	// Resolver, if set, lets `[type_url] { ... }` Any expansions decode;
	// without it, such input is rejected.
	Resolver AnyResolver
}

// Unmarshal parses protobuf text format data into a new message of type md.
func Unmarshal(data []byte, md protoval.MessageDescriptor) (*dynamic.Message, error) {
	return UnmarshalOptions{}.Unmarshal(data, md)
}

func (o UnmarshalOptions) Unmarshal(data []byte, md protoval.MessageDescriptor) (*dynamic.Message, error) {
	p := &parser{lex: newLexer(string(data)), opts: o}
	if err := p.advance(); err != nil {
		return nil, err
	}
	m, err := p.parseMessageBody(md, "")
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, &ParseError{Pos: p.cur.pos, Msg: "unexpected trailing input"}
	}
	return m, nil
}

type parser struct {
	lex  *lexer
	cur  token
	opts UnmarshalOptions
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

// parseMessageBody parses field entries until EOF (closer == "") or until
// the matching close token (closer == "}" or ">"), which it consumes.
func (p *parser) parseMessageBody(md protoval.MessageDescriptor, closer string) (*dynamic.Message, error) {
	m := dynamic.New(md)
	for {
		if closer != "" {
			if p.cur.kind == tokPunct && p.cur.text == closer {
				if err := p.advance(); err != nil {
					return nil, err
				}
				return m, nil
			}
			if p.cur.kind == tokEOF {
				return nil, &ParseError{Pos: p.cur.pos, Msg: fmt.Sprintf("unexpected EOF, expected %q", closer)}
			}
		} else if p.cur.kind == tokEOF {
			return m, nil
		}

		if p.cur.kind == tokPunct && p.cur.text == "[" {
			if md.FullName() != "google.protobuf.Any" {
				return nil, &ParseError{Pos: p.cur.pos, Msg: "extension fields are not supported"}
			}
			if err := p.parseAnyExpansion(m, md); err != nil {
				return nil, err
			}
			p.skipSeparator()
			continue
		}

		if p.cur.kind != tokIdent {
			return nil, &ParseError{Pos: p.cur.pos, Msg: "expected a field name"}
		}
		name := p.cur.text
		namePos := p.cur.pos
		if err := p.advance(); err != nil {
			return nil, err
		}

		fd := resolveFieldName(md, name)
		if fd == nil {
			return nil, &ParseError{Pos: namePos, Msg: fmt.Sprintf("unknown field %q in %s", name, md.FullName())}
		}

		hasColon := false
		if p.cur.kind == tokPunct && p.cur.text == ":" {
			hasColon = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		isMsg := fd.Kind() == protoval.MessageKind || fd.Kind() == protoval.GroupKind
		startsBrace := p.cur.kind == tokPunct && (p.cur.text == "{" || p.cur.text == "<")
		if !hasColon && !(isMsg && startsBrace) {
			return nil, &ParseError{Pos: p.cur.pos, Msg: fmt.Sprintf("field %q requires ':'", name)}
		}

		if p.cur.kind == tokPunct && p.cur.text == "[" && !fd.IsMap() && fd.Cardinality() == protoval.Repeated {
			if err := p.advance(); err != nil {
				return nil, err
			}
			for {
				if p.cur.kind == tokPunct && p.cur.text == "]" {
					if err := p.advance(); err != nil {
						return nil, err
					}
					break
				}
				v, err := p.parseSingularValue(fd)
				if err != nil {
					return nil, err
				}
				appendFieldValue(m, fd, v)
				if p.cur.kind == tokPunct && p.cur.text == "," {
					if err := p.advance(); err != nil {
						return nil, err
					}
				}
			}
		} else {
			v, err := p.parseSingularValue(fd)
			if err != nil {
				return nil, err
			}
			appendFieldValue(m, fd, v)
		}
		p.skipSeparator()
	}
}

func (p *parser) skipSeparator() {
	if p.cur.kind == tokPunct && (p.cur.text == "," || p.cur.text == ";") {
		p.advance()
	}
}

// resolveFieldName matches an ordinary field by its declared name, and a
// group field by its message type's (capitalized) name in addition to its
// lowercase field name, per the legacy `group` text-format form.
func resolveFieldName(md protoval.MessageDescriptor, name string) protoval.FieldDescriptor {
	fields := md.Fields()
	if fd := fields.ByName(protoval.Name(name)); fd != nil {
		return fd
	}
	lower := protoval.Name(strings.ToLower(name))
	if gd := fields.ByName(lower); gd != nil && gd.Kind() == protoval.GroupKind && string(gd.MessageType().Name()) == name {
		return gd
	}
	return nil
}

func (p *parser) parseSingularValue(fd protoval.FieldDescriptor) (protoval.Value, error) {
	switch fd.Kind() {
	case protoval.MessageKind, protoval.GroupKind:
		if p.cur.kind != tokPunct || (p.cur.text != "{" && p.cur.text != "<") {
			return protoval.Value{}, &ParseError{Pos: p.cur.pos, Msg: "expected '{' or '<'"}
		}
		closer := "}"
		if p.cur.text == "<" {
			closer = ">"
		}
		if err := p.advance(); err != nil {
			return protoval.Value{}, err
		}
		sub, err := p.parseMessageBody(fd.MessageType(), closer)
		if err != nil {
			return protoval.Value{}, err
		}
		return protoval.ValueOfMessage(sub), nil
	case protoval.EnumKind:
		return p.parseEnum(fd)
	case protoval.BoolKind:
		return p.parseBool()
	case protoval.StringKind:
		s, err := p.parseStringLiteral()
		return protoval.ValueOfString(s), err
	case protoval.BytesKind:
		s, err := p.parseStringLiteral()
		return protoval.ValueOfBytes([]byte(s)), err
	default:
		return p.parseNumeric(fd.Kind())
	}
}

func (p *parser) parseStringLiteral() (string, error) {
	if p.cur.kind != tokString {
		return "", &ParseError{Pos: p.cur.pos, Msg: "expected a string literal"}
	}
	var b strings.Builder
	for p.cur.kind == tokString {
		b.WriteString(p.cur.text)
		if err := p.advance(); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func (p *parser) parseEnum(fd protoval.FieldDescriptor) (protoval.Value, error) {
	switch p.cur.kind {
	case tokIdent:
		name, pos := p.cur.text, p.cur.pos
		if err := p.advance(); err != nil {
			return protoval.Value{}, err
		}
		ev := fd.EnumType().Values().ByName(protoval.Name(name))
		if ev == nil {
			return protoval.Value{}, &ParseError{Pos: pos, Msg: fmt.Sprintf("unknown enum value %q", name)}
		}
		return protoval.ValueOfEnum(ev.Number()), nil
	case tokNumber:
		pos := p.cur.pos
		n, err := strconv.ParseInt(trimNumberSuffix(p.cur.text), 0, 32)
		if err != nil {
			return protoval.Value{}, &ParseError{Pos: pos, Msg: err.Error()}
		}
		if err := p.advance(); err != nil {
			return protoval.Value{}, err
		}
		return protoval.ValueOfEnum(protoval.EnumNumber(int32(n))), nil
	default:
		return protoval.Value{}, &ParseError{Pos: p.cur.pos, Msg: "expected an enum name or number"}
	}
}

func (p *parser) parseBool() (protoval.Value, error) {
	if p.cur.kind == tokIdent {
		switch p.cur.text {
		case "true", "True", "t":
			if err := p.advance(); err != nil {
				return protoval.Value{}, err
			}
			return protoval.ValueOfBool(true), nil
		case "false", "False", "f":
			if err := p.advance(); err != nil {
				return protoval.Value{}, err
			}
			return protoval.ValueOfBool(false), nil
		}
	}
	if p.cur.kind == tokNumber && (p.cur.text == "1" || p.cur.text == "0") {
		v := p.cur.text == "1"
		if err := p.advance(); err != nil {
			return protoval.Value{}, err
		}
		return protoval.ValueOfBool(v), nil
	}
	return protoval.Value{}, &ParseError{Pos: p.cur.pos, Msg: "expected a bool literal"}
}

func (p *parser) parseNumeric(kind protoval.Kind) (protoval.Value, error) {
	tok := p.cur
	if tok.kind != tokNumber && tok.kind != tokIdent {
		return protoval.Value{}, &ParseError{Pos: tok.pos, Msg: "expected a numeric literal"}
	}

	switch kind {
	case protoval.Int32Kind, protoval.Sint32Kind, protoval.Sfixed32Kind:
		n, err := strconv.ParseInt(trimNumberSuffix(tok.text), 0, 32)
		if err != nil {
			return protoval.Value{}, &ParseError{Pos: tok.pos, Msg: err.Error()}
		}
		if err := p.advance(); err != nil {
			return protoval.Value{}, err
		}
		return protoval.ValueOfInt32(int32(n)), nil
	case protoval.Int64Kind, protoval.Sint64Kind, protoval.Sfixed64Kind:
		n, err := strconv.ParseInt(trimNumberSuffix(tok.text), 0, 64)
		if err != nil {
			return protoval.Value{}, &ParseError{Pos: tok.pos, Msg: err.Error()}
		}
		if err := p.advance(); err != nil {
			return protoval.Value{}, err
		}
		return protoval.ValueOfInt64(n), nil
	case protoval.Uint32Kind, protoval.Fixed32Kind:
		n, err := strconv.ParseUint(trimNumberSuffix(tok.text), 0, 32)
		if err != nil {
			return protoval.Value{}, &ParseError{Pos: tok.pos, Msg: err.Error()}
		}
		if err := p.advance(); err != nil {
			return protoval.Value{}, err
		}
		return protoval.ValueOfUint32(uint32(n)), nil
	case protoval.Uint64Kind, protoval.Fixed64Kind:
		n, err := strconv.ParseUint(trimNumberSuffix(tok.text), 0, 64)
		if err != nil {
			return protoval.Value{}, &ParseError{Pos: tok.pos, Msg: err.Error()}
		}
		if err := p.advance(); err != nil {
			return protoval.Value{}, err
		}
		return protoval.ValueOfUint64(n), nil
	case protoval.FloatKind:
		f, err := parseFloatToken(tok.text)
		if err != nil {
			return protoval.Value{}, &ParseError{Pos: tok.pos, Msg: err.Error()}
		}
		if err := p.advance(); err != nil {
			return protoval.Value{}, err
		}
		return protoval.ValueOfFloat32(float32(f)), nil
	case protoval.DoubleKind:
		f, err := parseFloatToken(tok.text)
		if err != nil {
			return protoval.Value{}, &ParseError{Pos: tok.pos, Msg: err.Error()}
		}
		if err := p.advance(); err != nil {
			return protoval.Value{}, err
		}
		return protoval.ValueOfFloat64(f), nil
	default:
		return protoval.Value{}, &ParseError{Pos: tok.pos, Msg: fmt.Sprintf("unsupported numeric kind %v", kind)}
	}
}

func trimNumberSuffix(s string) string {
	if strings.HasSuffix(s, "f") || strings.HasSuffix(s, "F") {
		return s[:len(s)-1]
	}
	return s
}

func parseFloatToken(text string) (float64, error) {
	switch text {
	case "inf", "Inf", "Infinity", "infinity":
		return math.Inf(1), nil
	case "-inf", "-Inf", "-Infinity", "-infinity":
		return math.Inf(-1), nil
	case "nan", "NaN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(trimNumberSuffix(text), 64)
}

// parseAnyExpansion parses `[type_url] { ... }`, assuming p.cur is the
// opening '[' of the bracket. The bracket content uses characters ('.',
// '/') the regular tokenizer does not lex as part of an identifier, so it
// is read directly off the underlying lexer.
func (p *parser) parseAnyExpansion(m *dynamic.Message, md protoval.MessageDescriptor) error {
	bracketPos := p.cur.pos
	// The lexer already consumed '[' when it produced p.cur.
	typeURL, err := p.lex.readRawUntil(']')
	if err != nil {
		return err
	}
	p.lex.advance() // consume ']'
	if err := p.advance(); err != nil {
		return err
	}

	if p.cur.kind == tokPunct && p.cur.text == ":" {
		if err := p.advance(); err != nil {
			return err
		}
	}
	if p.cur.kind != tokPunct || (p.cur.text != "{" && p.cur.text != "<") {
		return &ParseError{Pos: p.cur.pos, Msg: "expected '{' after Any type URL"}
	}
	closer := "}"
	if p.cur.text == "<" {
		closer = ">"
	}
	if err := p.advance(); err != nil {
		return err
	}

	if p.opts.Resolver == nil {
		return &ParseError{Pos: bracketPos, Msg: "cannot expand Any without a Resolver"}
	}
	name := typeURL
	if i := strings.LastIndexByte(typeURL, '/'); i >= 0 {
		name = typeURL[i+1:]
	}
	inner := p.opts.Resolver.FindMessageByName(protoval.FullName(name))
	if inner == nil {
		return &ParseError{Pos: bracketPos, Msg: fmt.Sprintf("cannot resolve Any type %q", typeURL)}
	}
	sub, err := p.parseMessageBody(inner, closer)
	if err != nil {
		return err
	}
	raw, err := dynamic.Marshal(sub)
	if err != nil {
		return err
	}
	fields := md.Fields()
	m.Set(fields.ByNumber(1), protoval.ValueOfString(typeURL))
	m.Set(fields.ByNumber(2), protoval.ValueOfBytes(raw))
	return nil
}

// appendFieldValue records one parsed occurrence of fd's value into m,
// applying protobuf merge semantics: singular message fields merge into any
// existing value, repeated fields append, map fields union by key, and
// everything else (a repeated singular scalar field written twice) simply
// overwrites with the last occurrence.
func appendFieldValue(m *dynamic.Message, fd protoval.FieldDescriptor, v protoval.Value) {
	switch {
	case fd.IsMap():
		if !m.Has(fd) {
			m.Set(fd, protoval.ValueOfMap(dynamic.NewMap(fd)))
		}
		entry := v.Message().(*dynamic.Message)
		ed := entry.Descriptor().Fields()
		keyVal := entry.Get(ed.ByNumber(1))
		valVal := entry.Get(ed.ByNumber(2))
		m.Get(fd).Map().Set(protoval.MapKeyOf(keyVal), valVal)
	case fd.Cardinality() == protoval.Repeated:
		if !m.Has(fd) {
			m.Set(fd, protoval.ValueOfList(dynamic.NewList(fd)))
		}
		m.Get(fd).List().Append(v)
	case (fd.Kind() == protoval.MessageKind || fd.Kind() == protoval.GroupKind) && m.Has(fd):
		mergeMessages(m.Get(fd).Message().(*dynamic.Message), v.Message().(*dynamic.Message))
	default:
		m.Set(fd, v)
	}
}

// mergeMessages merges every field of src into dst, following protobuf
// merge semantics: map fields union by key, repeated fields concatenate
// element-by-element (not as a single appended list), singular message
// fields recurse, and anything else is overwritten.
func mergeMessages(dst, src *dynamic.Message) {
	src.Range(func(fd protoval.FieldDescriptor, v protoval.Value) bool {
		switch {
		case fd.IsMap():
			if !dst.Has(fd) {
				dst.Set(fd, protoval.ValueOfMap(dynamic.NewMap(fd)))
			}
			dstMap := dst.Get(fd).Map()
			v.Map().Range(func(k protoval.MapKey, val protoval.Value) bool {
				dstMap.Set(k, val)
				return true
			})
		case fd.Cardinality() == protoval.Repeated:
			srcList := v.List()
			if !dst.Has(fd) {
				dst.Set(fd, protoval.ValueOfList(dynamic.NewList(fd)))
			}
			dstList := dst.Get(fd).List()
			for i := 0; i < srcList.Len(); i++ {
				dstList.Append(srcList.Get(i))
			}
		case (fd.Kind() == protoval.MessageKind || fd.Kind() == protoval.GroupKind) && dst.Has(fd):
			mergeMessages(dst.Get(fd).Message().(*dynamic.Message), v.Message().(*dynamic.Message))
		default:
			dst.Set(fd, v)
		}
		return true
	})
}
