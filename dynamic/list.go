package dynamic

import "github.com/dynproto/reflect/protoval"

// List backs a repeated field. Element kind/type comes from the owning
// FieldDescriptor; List itself stores only protoval.Values and trusts the
// caller (normally Message.Set, or the wire/JSON/text decoders) to only
// append values of the matching kind.
type List struct {
	fd   protoval.FieldDescriptor
	elem []protoval.Value
}

// NewList returns an empty list for fd, which must be a repeated,
// non-map field.
func NewList(fd protoval.FieldDescriptor) *List {
	return &List{fd: fd}
}

func (l *List) Descriptor() protoval.FieldDescriptor { return l.fd }
func (l *List) Len() int                             { return len(l.elem) }
func (l *List) Get(i int) protoval.Value              { return l.elem[i] }
func (l *List) Set(i int, v protoval.Value)           { l.elem[i] = v }
func (l *List) Append(v protoval.Value)               { l.elem = append(l.elem, v) }
func (l *List) Truncate(n int)                        { l.elem = l.elem[:n] }
