package pool

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/dynproto/reflect/protoval"
)

// AddFileDescriptorProto decodes and registers a single file, rolling the
// pool back to its prior state if any part of the file fails validation.
func (p *Pool) AddFileDescriptorProto(fdp *descriptorpb.FileDescriptorProto) error {
	return p.mutate(func(d *poolData) error {
		return buildFiles(d, []*descriptorpb.FileDescriptorProto{fdp})
	})
}

// AddFileDescriptorSet registers every file in fds as one atomic batch: if
// any file fails, none of them are kept (spec §4.1's all-or-nothing add).
// Files must appear after their dependencies, matching protoc's output
// order.
func (p *Pool) AddFileDescriptorSet(fds *descriptorpb.FileDescriptorSet) error {
	return p.mutate(func(d *poolData) error {
		return buildFiles(d, fds.GetFile())
	})
}

// DecodeFileDescriptorSet unmarshals b as a wire-format FileDescriptorSet
// and registers it via AddFileDescriptorSet.
func (p *Pool) DecodeFileDescriptorSet(b []byte) error {
	fds := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(b, fds); err != nil {
		return errf(InvalidReference, "", "malformed FileDescriptorSet: %v", err)
	}
	return p.AddFileDescriptorSet(fds)
}

func buildFiles(d *poolData, fdps []*descriptorpb.FileDescriptorProto) error {
	seenInBatch := make(map[string]bool, len(fdps))
	for _, fdp := range fdps {
		path := fdp.GetName()
		if path == "" {
			return errf(InvalidReference, "", "file descriptor has no name")
		}
		if seenInBatch[path] {
			return errf(DuplicateFile, path, "duplicate file within this batch")
		}
		seenInBatch[path] = true
		if _, ok := d.fileNames[path]; ok {
			return errf(DuplicateFile, path, "already registered in this pool")
		}
	}
	for _, fdp := range fdps {
		if err := buildOneFile(d, fdp); err != nil {
			return err
		}
	}
	return nil
}

func buildOneFile(d *poolData, fdp *descriptorpb.FileDescriptorProto) error {
	var syntax protoval.Syntax
	switch fdp.GetSyntax() {
	case "", "proto2":
		syntax = protoval.Proto2
	case "proto3":
		syntax = protoval.Proto3
	default:
		return errf(UnknownSyntax, fdp.GetName(), "unrecognized syntax %q", fdp.GetSyntax())
	}
	pkg := protoval.FullName(fdp.GetPackage())
	if err := registerPackage(d, pkg); err != nil {
		return err
	}

	publicSet := make(map[int32]bool, len(fdp.GetPublicDependency()))
	for _, i := range fdp.GetPublicDependency() {
		publicSet[i] = true
	}
	weakSet := make(map[int32]bool, len(fdp.GetWeakDependency()))
	for _, i := range fdp.GetWeakDependency() {
		weakSet[i] = true
	}
	imports := make([]protoval.FileImport, len(fdp.GetDependency()))
	for i, dep := range fdp.GetDependency() {
		fi, ok := d.fileNames[dep]
		if !ok {
			return errf(MissingDependency, dep, "imported by %s but not registered first", fdp.GetName())
		}
		imports[i] = protoval.FileImport{
			FileDescriptor: d.files[fi],
			IsPublic:       publicSet[int32(i)],
			IsWeak:         weakSet[int32(i)],
		}
	}

	fd := &fileDescriptor{
		proto:   fdp,
		syntax:  syntax,
		pkg:     pkg,
		imports: imports,
		byName:  make(map[protoval.FullName]protoval.Descriptor),
	}

	for i, mp := range fdp.GetMessageType() {
		md, err := newMessageSkeleton(d, fd, fd, pkg, i, mp)
		if err != nil {
			return err
		}
		fd.messages.add(md)
	}
	for i, ep := range fdp.GetEnumType() {
		ed, err := newEnumSkeleton(d, fd, fd, pkg, i, ep)
		if err != nil {
			return err
		}
		fd.enums.add(ed)
	}
	for i, sp := range fdp.GetService() {
		sd, err := newServiceSkeleton(d, fd, pkg, i, sp)
		if err != nil {
			return err
		}
		fd.services.add(sd)
	}
	for i, xp := range fdp.GetExtension() {
		xd, err := newFieldSkeleton(fd, pkg, i, xp, true)
		if err != nil {
			return err
		}
		xd.owner = fd
		idx := len(d.extensions)
		d.extensions = append(d.extensions, xd)
		if err := registerName(d, xd.fullName, defExtension, idx); err != nil {
			return err
		}
		fd.extensions.add(xd)
	}

	for _, md := range fd.messages.list {
		if err := resolveMessage(d, md); err != nil {
			return err
		}
	}
	for _, sd := range fd.services.list {
		if err := resolveService(d, sd); err != nil {
			return err
		}
	}
	for _, xd := range fd.extensions.list {
		if err := resolveField(d, xd); err != nil {
			return err
		}
	}

	collectFileIndex(fd)

	idx := len(d.files)
	d.files = append(d.files, fd)
	d.fileNames[fdp.GetName()] = idx
	return nil
}

func newMessageSkeleton(d *poolData, file *fileDescriptor, parent protoval.Descriptor, scope protoval.FullName, index int, mp *descriptorpb.DescriptorProto) (*messageDescriptor, error) {
	fullName := scope.Append(protoval.Name(mp.GetName()))
	md := &messageDescriptor{
		file:       file,
		parent:     parent,
		index:      index,
		proto:      mp,
		fullName:   fullName,
		isMapEntry: mp.GetOptions().GetMapEntry(),
	}
	idx := len(d.messages)
	d.messages = append(d.messages, md)
	if err := registerName(d, fullName, defMessage, idx); err != nil {
		return nil, err
	}

	for _, n := range mp.GetReservedName() {
		md.reservedNames = append(md.reservedNames, protoval.Name(n))
	}
	for _, r := range mp.GetReservedRange() {
		md.reservedRanges = append(md.reservedRanges, [2]protoval.FieldNumber{
			protoval.FieldNumber(r.GetStart()), protoval.FieldNumber(r.GetEnd()),
		})
	}
	for _, r := range mp.GetExtensionRange() {
		md.extensionRanges = append(md.extensionRanges, [2]protoval.FieldNumber{
			protoval.FieldNumber(r.GetStart()), protoval.FieldNumber(r.GetEnd()),
		})
	}
	for _, f := range mp.GetField() {
		if f.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REQUIRED {
			md.requiredNumbers = append(md.requiredNumbers, protoval.FieldNumber(f.GetNumber()))
		}
	}

	for i, op := range mp.GetOneofDecl() {
		od := &oneofDescriptor{
			parentMsg: md,
			index:     i,
			proto:     op,
			fullName:  fullName.Append(protoval.Name(op.GetName())),
		}
		if err := registerSubName(d, od.fullName, defOneof, idx, i); err != nil {
			return nil, err
		}
		md.oneofs.add(od)
	}

	fields := &fieldDescriptorList{}
	for i, fp := range mp.GetField() {
		fdsc, err := newFieldSkeleton(file, fullName, i, fp, false)
		if err != nil {
			return nil, err
		}
		if err := registerSubName(d, fdsc.fullName, defField, idx, i); err != nil {
			return nil, err
		}
		fdsc.owner = md
		fdsc.containingMsg = md
		if fp.OneofIndex != nil {
			oi := int(fp.GetOneofIndex())
			if oi < 0 || oi >= md.oneofs.Len() {
				return nil, errf(InvalidReference, string(fdsc.fullName), "oneof_index out of range")
			}
			fdsc.containingOneof = md.oneofs.list[oi]
			md.oneofs.list[oi].fields.add(fdsc)
		}
		if err := fields.add(fdsc); err != nil {
			return nil, err
		}
	}
	md.fields = fields

	for i, nmp := range mp.GetNestedType() {
		nmd, err := newMessageSkeleton(d, file, md, fullName, i, nmp)
		if err != nil {
			return nil, err
		}
		md.nestedMessages.add(nmd)
	}
	for i, nep := range mp.GetEnumType() {
		ned, err := newEnumSkeleton(d, file, md, fullName, i, nep)
		if err != nil {
			return nil, err
		}
		md.nestedEnums.add(ned)
	}
	for i, nxp := range mp.GetExtension() {
		nxd, err := newFieldSkeleton(file, fullName, i, nxp, true)
		if err != nil {
			return nil, err
		}
		nxd.owner = md
		idx2 := len(d.extensions)
		d.extensions = append(d.extensions, nxd)
		if err := registerName(d, nxd.fullName, defExtension, idx2); err != nil {
			return nil, err
		}
		md.nestedExtensions.add(nxd)
	}
	return md, nil
}

// maxFieldNumber and the reserved range below come from protobuf's wire
// format: field numbers occupy 29 bits, and 19000-19999 is set aside for
// protoc implementation use.
const (
	maxFieldNumber           = 1<<29 - 1
	reservedFieldNumberStart = 19000
	reservedFieldNumberEnd   = 19999
)

func checkFieldNumber(fullName protoval.FullName, n int32) error {
	if n <= 0 {
		return errf(InvalidFieldNumber, string(fullName), "field number must be positive")
	}
	if n > maxFieldNumber {
		return errf(InvalidFieldNumber, string(fullName), "field number %d exceeds maximum of %d", n, maxFieldNumber)
	}
	if n >= reservedFieldNumberStart && n <= reservedFieldNumberEnd {
		return errf(InvalidFieldNumber, string(fullName), "field number %d falls in the reserved range [%d, %d]", n, reservedFieldNumberStart, reservedFieldNumberEnd)
	}
	return nil
}

func newFieldSkeleton(file *fileDescriptor, scope protoval.FullName, index int, fp *descriptorpb.FieldDescriptorProto, isExtension bool) (*fieldDescriptor, error) {
	fullName := scope.Append(protoval.Name(fp.GetName()))
	card := protoval.Cardinality(fp.GetLabel())
	if !card.IsValid() {
		return nil, errf(InvalidReference, string(fullName), "invalid field label %v", fp.GetLabel())
	}
	kind := protoval.Kind(fp.GetType())
	if !kind.IsValid() {
		return nil, errf(InvalidReference, string(fullName), "invalid field type %v", fp.GetType())
	}
	if err := checkFieldNumber(fullName, fp.GetNumber()); err != nil {
		return nil, err
	}
	jn, explicit := computeJSONName(fp)
	return &fieldDescriptor{
		index:       index,
		proto:       fp,
		fullName:    fullName,
		syntax:      file.syntax,
		declScope:   scope,
		cardinality: card,
		kind:        kind,
		jsonName:    jn,
		hasJSONName: explicit,
		isExtension: isExtension,
	}, nil
}

func newEnumSkeleton(d *poolData, file *fileDescriptor, parent protoval.Descriptor, scope protoval.FullName, index int, ep *descriptorpb.EnumDescriptorProto) (*enumDescriptor, error) {
	fullName := scope.Append(protoval.Name(ep.GetName()))
	ed := &enumDescriptor{
		file:       file,
		parent:     parent,
		index:      index,
		proto:      ep,
		fullName:   fullName,
		allowAlias: ep.GetOptions().GetAllowAlias(),
	}
	idx := len(d.enums)
	d.enums = append(d.enums, ed)
	if err := registerName(d, fullName, defEnum, idx); err != nil {
		return nil, err
	}
	for _, n := range ep.GetReservedName() {
		ed.reservedNames = append(ed.reservedNames, protoval.Name(n))
	}
	for _, r := range ep.GetReservedRange() {
		ed.reservedRanges = append(ed.reservedRanges, [2]protoval.EnumNumber{
			protoval.EnumNumber(r.GetStart()), protoval.EnumNumber(r.GetEnd()),
		})
	}

	for i, vp := range ep.GetValue() {
		vfullName := scope.Append(protoval.Name(vp.GetName()))
		if !ed.allowAlias {
			if _, ok := ed.values.byNumber[protoval.EnumNumber(vp.GetNumber())]; ok {
				return nil, errf(EnumAliasConflict, string(vfullName), "duplicate enum number %d without allow_alias", vp.GetNumber())
			}
		}
		vd := &enumValueDescriptor{parentEnum: ed, index: i, proto: vp, fullName: vfullName}
		if err := registerSubName(d, vfullName, defEnumValue, idx, i); err != nil {
			return nil, err
		}
		ed.values.add(vd)
	}
	return ed, nil
}

func newServiceSkeleton(d *poolData, file *fileDescriptor, pkg protoval.FullName, index int, sp *descriptorpb.ServiceDescriptorProto) (*serviceDescriptor, error) {
	fullName := pkg.Append(protoval.Name(sp.GetName()))
	sd := &serviceDescriptor{file: file, index: index, proto: sp, fullName: fullName}
	idx := len(d.services)
	d.services = append(d.services, sd)
	if err := registerName(d, fullName, defService, idx); err != nil {
		return nil, err
	}
	for i, mp := range sp.GetMethod() {
		mfullName := fullName.Append(protoval.Name(mp.GetName()))
		md := &methodDescriptor{parentSvc: sd, index: i, proto: mp, fullName: mfullName}
		if err := registerSubName(d, mfullName, defMethod, idx, i); err != nil {
			return nil, err
		}
		sd.methods.add(md)
	}
	return sd, nil
}

func resolveMessage(d *poolData, md *messageDescriptor) error {
	fields := md.fields.(*fieldDescriptorList)
	for _, fdsc := range fields.list {
		if err := resolveField(d, fdsc); err != nil {
			return err
		}
	}
	for _, nm := range md.nestedMessages.list {
		if err := resolveMessage(d, nm); err != nil {
			return err
		}
	}
	for _, nx := range md.nestedExtensions.list {
		if err := resolveField(d, nx); err != nil {
			return err
		}
	}
	return nil
}

func resolveField(d *poolData, fdsc *fieldDescriptor) error {
	if fdsc.isExtension {
		extendee := fdsc.proto.GetExtendee()
		desc, err := resolveTypeName(d, fdsc.declScope, extendee)
		if err != nil {
			return err
		}
		md, ok := desc.(*messageDescriptor)
		if !ok {
			return errf(InvalidReference, extendee, "extendee is not a message type")
		}
		fdsc.extendedType = md
	}

	switch fdsc.kind {
	case protoval.MessageKind, protoval.GroupKind:
		desc, err := resolveTypeName(d, fdsc.declScope, fdsc.proto.GetTypeName())
		if err != nil {
			return err
		}
		md, ok := desc.(*messageDescriptor)
		if !ok {
			return errf(InvalidReference, fdsc.proto.GetTypeName(), "not a message type")
		}
		fdsc.messageType = md
		if fdsc.cardinality == protoval.Repeated && md.isMapEntry {
			key, val, err := mapEntryFields(md)
			if err != nil {
				return err
			}
			fdsc.isMap = true
			fdsc.mapKeyType = key
			fdsc.mapValType = val
		}
	case protoval.EnumKind:
		desc, err := resolveTypeName(d, fdsc.declScope, fdsc.proto.GetTypeName())
		if err != nil {
			return err
		}
		ed, ok := desc.(*enumDescriptor)
		if !ok {
			return errf(InvalidReference, fdsc.proto.GetTypeName(), "not an enum type")
		}
		fdsc.enumType = ed
	}

	fdsc.hasPresence = computeHasPresence(fdsc.syntax, fdsc.cardinality, fdsc.kind, fdsc.containingOneof != nil, fdsc.isExtension)
	fdsc.isPacked = computeIsPacked(fdsc.syntax, fdsc.cardinality, fdsc.kind, fdsc.proto.GetOptions())

	if fdsc.kind == protoval.EnumKind {
		dv, ok, ev, err := computeDefault(fdsc.proto, fdsc.kind, &fdsc.enumType.values)
		if err != nil {
			return err
		}
		fdsc.hasDefault, fdsc.defaultValue, fdsc.defaultEnumValue = ok, dv, ev
	} else if fdsc.kind != protoval.MessageKind && fdsc.kind != protoval.GroupKind {
		dv, ok, _, err := computeDefault(fdsc.proto, fdsc.kind, nil)
		if err != nil {
			return err
		}
		fdsc.hasDefault, fdsc.defaultValue = ok, dv
	}
	return nil
}

// mapEntryFields validates that md has the shape protoc always synthesizes
// for a map field's entry message - exactly a key field numbered 1 and a
// value field numbered 2, with a key of a legal map-key kind - and returns
// them. A hand-crafted FileDescriptorSet that sets map_entry without this
// shape is rejected rather than panicking downstream.
func mapEntryFields(md *messageDescriptor) (*fieldDescriptor, *fieldDescriptor, error) {
	kf := md.fields.(*fieldDescriptorList)
	key, ok := kf.byNumber[1]
	if !ok {
		return nil, nil, errf(InvalidMapEntry, string(md.fullName), "map entry message has no field numbered 1 (key)")
	}
	val, ok := kf.byNumber[2]
	if !ok {
		return nil, nil, errf(InvalidMapEntry, string(md.fullName), "map entry message has no field numbered 2 (value)")
	}
	if !isValidMapKeyKind(key.kind) {
		return nil, nil, errf(InvalidMapEntry, string(md.fullName), "map key has illegal kind %s", key.kind)
	}
	return key, val, nil
}

// isValidMapKeyKind reports whether k may be used as a protobuf map key:
// any integral or bool type, or string. Floating-point, bytes, message,
// group, and enum keys are rejected.
func isValidMapKeyKind(k protoval.Kind) bool {
	switch k {
	case protoval.Int32Kind, protoval.Int64Kind, protoval.Uint32Kind, protoval.Uint64Kind,
		protoval.Sint32Kind, protoval.Sint64Kind, protoval.Fixed32Kind, protoval.Fixed64Kind,
		protoval.Sfixed32Kind, protoval.Sfixed64Kind, protoval.BoolKind, protoval.StringKind:
		return true
	}
	return false
}

func resolveService(d *poolData, sd *serviceDescriptor) error {
	for _, m := range sd.methods.list {
		in, err := resolveTypeName(d, sd.file.pkg, m.proto.GetInputType())
		if err != nil {
			return err
		}
		out, err := resolveTypeName(d, sd.file.pkg, m.proto.GetOutputType())
		if err != nil {
			return err
		}
		inMd, ok := in.(*messageDescriptor)
		if !ok {
			return errf(InvalidReference, m.proto.GetInputType(), "not a message type")
		}
		outMd, ok := out.(*messageDescriptor)
		if !ok {
			return errf(InvalidReference, m.proto.GetOutputType(), "not a message type")
		}
		m.inputType, m.outputType = inMd, outMd
	}
	return nil
}

func collectFileIndex(fd *fileDescriptor) {
	var walkMsg func(m *messageDescriptor)
	var walkEnum func(e *enumDescriptor)

	walkEnum = func(e *enumDescriptor) {
		fd.byName[e.fullName] = e
		for _, v := range e.values.list {
			fd.byName[v.fullName] = v
		}
	}
	walkMsg = func(m *messageDescriptor) {
		fd.byName[m.fullName] = m
		for _, f := range m.fields.(*fieldDescriptorList).list {
			fd.byName[f.fullName] = f
		}
		for _, o := range m.oneofs.list {
			fd.byName[o.fullName] = o
		}
		for _, nx := range m.nestedExtensions.list {
			fd.byName[nx.fullName] = nx
		}
		for _, nm := range m.nestedMessages.list {
			walkMsg(nm)
		}
		for _, ne := range m.nestedEnums.list {
			walkEnum(ne)
		}
	}

	for _, m := range fd.messages.list {
		walkMsg(m)
	}
	for _, e := range fd.enums.list {
		walkEnum(e)
	}
	for _, s := range fd.services.list {
		fd.byName[s.fullName] = s
		for _, m := range s.methods.list {
			fd.byName[m.fullName] = m
		}
	}
	for _, x := range fd.extensions.list {
		fd.byName[x.fullName] = x
	}
}
