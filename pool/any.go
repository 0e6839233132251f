package pool

import (
	"strings"

	"github.com/dynproto/reflect/protoval"
)

// anyTypeURLPrefix is the host prost-reflect and protoc-generated code both
// default to when stamping a google.protobuf.Any.type_url.
const anyTypeURLPrefix = "type.googleapis.com/"

// AnyTypeURL returns the canonical type URL for md, suitable for storing in
// a google.protobuf.Any's type_url field.
func AnyTypeURL(md MessageDescriptor) string {
	return anyTypeURLPrefix + string(md.FullName())
}

// ResolveAny looks up the message descriptor named by a google.protobuf.Any
// type URL: either a bare "full.type.Name" or a prefixed
// "host/full.type.Name" (the prefix, conventionally
// "type.googleapis.com", is ignored - only the last path segment is
// significant, matching how prost-reflect's text-format writer turns an
// Any.type_url back into a descriptor).
func (p *Pool) ResolveAny(typeURL string) (MessageDescriptor, error) {
	name := typeURL
	if i := strings.LastIndexByte(typeURL, '/'); i >= 0 {
		name = typeURL[i+1:]
	}
	if name == "" {
		return nil, errf(InvalidReference, typeURL, "empty message name in Any type URL")
	}
	md := p.FindMessageByName(protoval.FullName(name))
	if md == nil {
		return nil, errf(NameNotFound, name, "no message registered for Any type URL %q", typeURL)
	}
	return md, nil
}
