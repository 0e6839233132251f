package pool

import (
	"strings"

	"github.com/dynproto/reflect/protoval"
)

// registerName records full as a declaration of kind at the given arena
// index, failing if full is already taken anywhere in the pool (proto full
// names are global, not per-file).
func registerName(d *poolData, full protoval.FullName, kind definitionKind, index int) error {
	return registerSubName(d, full, kind, index, 0)
}

// registerSubName is registerName for a field/oneof/method/enum-value, whose
// definition is addressed by (parent arena index, position within parent)
// rather than a pool-level slice index of its own.
func registerSubName(d *poolData, full protoval.FullName, kind definitionKind, parentIndex, sub int) error {
	if !full.IsValid() {
		return errf(InvalidReference, string(full), "not a valid declaration name")
	}
	if existing, ok := d.names[full]; ok && existing.kind != defPackage {
		return errf(DuplicateName, string(full), "already declared")
	}
	d.names[full] = definition{kind: kind, index: parentIndex, sub: sub}
	return nil
}

// registerPackage records every prefix of pkg as a package-kind name, unless
// a non-package declaration already occupies that name.
func registerPackage(d *poolData, pkg protoval.FullName) error {
	if pkg == "" {
		return nil
	}
	parts := strings.Split(string(pkg), ".")
	var cur protoval.FullName
	for _, p := range parts {
		cur = cur.Append(protoval.Name(p))
		if existing, ok := d.names[cur]; ok && existing.kind != defPackage {
			return errf(DuplicateName, string(cur), "already declared as a non-package name")
		}
		d.names[cur] = definition{kind: defPackage}
	}
	return nil
}

// resolveTypeName resolves a FieldDescriptorProto.TypeName reference (either
// ".fully.qualified.Name" or a name relative to scope) using protobuf's
// closest-scope-wins rule: starting at scope, walk up one segment at a time
// toward the file's package, trying <candidate-scope>.typeName at each
// level, and take the first hit.
func resolveTypeName(d *poolData, scope protoval.FullName, typeName string) (protoval.Descriptor, error) {
	if typeName == "" {
		return nil, errf(InvalidReference, typeName, "empty type name")
	}
	if strings.HasPrefix(typeName, ".") {
		abs := protoval.FullName(typeName[1:])
		if desc := lookupTypeDescriptor(d, abs); desc != nil {
			return desc, nil
		}
		return nil, errf(InvalidReference, typeName, "no such type")
	}

	rel := protoval.FullName(typeName)
	for cur := scope; ; cur = cur.Parent() {
		full := joinRelative(cur, rel)
		if desc := lookupTypeDescriptor(d, full); desc != nil {
			return desc, nil
		}
		if cur == "" {
			break
		}
	}
	return nil, errf(InvalidReference, typeName, "no such type visible from "+string(scope))
}

func joinRelative(scope protoval.FullName, rel protoval.FullName) protoval.FullName {
	if scope == "" {
		return rel
	}
	return scope + "." + rel
}

func lookupTypeDescriptor(d *poolData, full protoval.FullName) protoval.Descriptor {
	def, ok := d.names[full]
	if !ok {
		return nil
	}
	switch def.kind {
	case defMessage:
		return d.messages[def.index]
	case defEnum:
		return d.enums[def.index]
	}
	return nil
}
