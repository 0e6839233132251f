package pool

import "github.com/dynproto/reflect/protoval"

// The types below are minimal, append-only, indexed lists used as the
// concrete backing of the protoval.XxxDescriptors list interfaces. Each is
// built once during a build.go pass and never mutated afterward (a pool
// rollback discards the whole owning descriptor, never edits a list
// in place), so a plain map index built as elements are appended is safe to
// hand out to concurrent readers once construction finishes.

type messageDescriptorList struct {
	list   []*messageDescriptor
	byName map[protoval.Name]*messageDescriptor
}

func (l *messageDescriptorList) add(m *messageDescriptor) {
	if l.byName == nil {
		l.byName = make(map[protoval.Name]*messageDescriptor)
	}
	l.list = append(l.list, m)
	l.byName[m.Name()] = m
}
func (l *messageDescriptorList) Len() int { return len(l.list) }
func (l *messageDescriptorList) Get(i int) protoval.MessageDescriptor { return l.list[i] }
func (l *messageDescriptorList) ByName(n protoval.Name) protoval.MessageDescriptor {
	if m, ok := l.byName[n]; ok {
		return m
	}
	return nil
}

type enumDescriptorList struct {
	list   []*enumDescriptor
	byName map[protoval.Name]*enumDescriptor
}

func (l *enumDescriptorList) add(e *enumDescriptor) {
	if l.byName == nil {
		l.byName = make(map[protoval.Name]*enumDescriptor)
	}
	l.list = append(l.list, e)
	l.byName[e.Name()] = e
}
func (l *enumDescriptorList) Len() int { return len(l.list) }
func (l *enumDescriptorList) Get(i int) protoval.EnumDescriptor { return l.list[i] }
func (l *enumDescriptorList) ByName(n protoval.Name) protoval.EnumDescriptor {
	if e, ok := l.byName[n]; ok {
		return e
	}
	return nil
}

type fieldDescriptorList struct {
	list        []*fieldDescriptor
	byName      map[protoval.Name]*fieldDescriptor
	byJSONName  map[string]*fieldDescriptor
	byNumber    map[protoval.FieldNumber]*fieldDescriptor
}

// add appends f, rejecting a field whose number, name, or JSON name collides
// with one already in the list (invariant 4: all three are unique within a
// message).
func (l *fieldDescriptorList) add(f *fieldDescriptor) error {
	if l.byName == nil {
		l.byName = make(map[protoval.Name]*fieldDescriptor)
		l.byJSONName = make(map[string]*fieldDescriptor)
		l.byNumber = make(map[protoval.FieldNumber]*fieldDescriptor)
	}
	if existing, ok := l.byNumber[f.Number()]; ok {
		return errf(DuplicateName, string(f.fullName), "field number %d already used by %s", f.Number(), existing.Name())
	}
	if existing, ok := l.byName[f.Name()]; ok {
		return errf(DuplicateName, string(f.fullName), "field name already used by field %d", existing.Number())
	}
	if existing, ok := l.byJSONName[f.JSONName()]; ok {
		return errf(DuplicateName, string(f.fullName), "json_name %q already used by field %d", f.JSONName(), existing.Number())
	}
	l.list = append(l.list, f)
	l.byName[f.Name()] = f
	l.byJSONName[f.JSONName()] = f
	l.byNumber[f.Number()] = f
	return nil
}
func (l *fieldDescriptorList) Len() int { return len(l.list) }
func (l *fieldDescriptorList) Get(i int) protoval.FieldDescriptor { return l.list[i] }
func (l *fieldDescriptorList) ByName(n protoval.Name) protoval.FieldDescriptor {
	if f, ok := l.byName[n]; ok {
		return f
	}
	return nil
}
func (l *fieldDescriptorList) ByJSONName(n string) protoval.FieldDescriptor {
	if f, ok := l.byJSONName[n]; ok {
		return f
	}
	return nil
}
func (l *fieldDescriptorList) ByNumber(n protoval.FieldNumber) protoval.FieldDescriptor {
	if f, ok := l.byNumber[n]; ok {
		return f
	}
	return nil
}

type extensionDescriptorList struct {
	list     []*extensionDescriptor
	byName   map[protoval.Name]*extensionDescriptor
	byNumber map[protoval.FieldNumber]*extensionDescriptor
}

func (l *extensionDescriptorList) add(f *extensionDescriptor) {
	if l.byName == nil {
		l.byName = make(map[protoval.Name]*extensionDescriptor)
		l.byNumber = make(map[protoval.FieldNumber]*extensionDescriptor)
	}
	l.list = append(l.list, f)
	l.byName[f.Name()] = f
	l.byNumber[f.Number()] = f
}
func (l *extensionDescriptorList) Len() int { return len(l.list) }
func (l *extensionDescriptorList) Get(i int) protoval.ExtensionDescriptor { return l.list[i] }
func (l *extensionDescriptorList) ByName(n protoval.Name) protoval.ExtensionDescriptor {
	if f, ok := l.byName[n]; ok {
		return f
	}
	return nil
}
func (l *extensionDescriptorList) ByNumber(n protoval.FieldNumber) protoval.ExtensionDescriptor {
	if f, ok := l.byNumber[n]; ok {
		return f
	}
	return nil
}

type oneofDescriptorList struct {
	list   []*oneofDescriptor
	byName map[protoval.Name]*oneofDescriptor
}

func (l *oneofDescriptorList) add(o *oneofDescriptor) {
	if l.byName == nil {
		l.byName = make(map[protoval.Name]*oneofDescriptor)
	}
	l.list = append(l.list, o)
	l.byName[o.Name()] = o
}
func (l *oneofDescriptorList) Len() int { return len(l.list) }
func (l *oneofDescriptorList) Get(i int) protoval.OneofDescriptor { return l.list[i] }
func (l *oneofDescriptorList) ByName(n protoval.Name) protoval.OneofDescriptor {
	if o, ok := l.byName[n]; ok {
		return o
	}
	return nil
}

type enumValueDescriptorList struct {
	list     []*enumValueDescriptor
	byName   map[protoval.Name]*enumValueDescriptor
	byNumber map[protoval.EnumNumber]*enumValueDescriptor   // first-declared only
	allNum   map[protoval.EnumNumber][]*enumValueDescriptor // every alias
}

func (l *enumValueDescriptorList) add(v *enumValueDescriptor) {
	if l.byName == nil {
		l.byName = make(map[protoval.Name]*enumValueDescriptor)
		l.byNumber = make(map[protoval.EnumNumber]*enumValueDescriptor)
		l.allNum = make(map[protoval.EnumNumber][]*enumValueDescriptor)
	}
	l.list = append(l.list, v)
	l.byName[v.Name()] = v
	if _, ok := l.byNumber[v.Number()]; !ok {
		l.byNumber[v.Number()] = v
	}
	l.allNum[v.Number()] = append(l.allNum[v.Number()], v)
}
func (l *enumValueDescriptorList) Len() int { return len(l.list) }
func (l *enumValueDescriptorList) Get(i int) protoval.EnumValueDescriptor { return l.list[i] }
func (l *enumValueDescriptorList) ByName(n protoval.Name) protoval.EnumValueDescriptor {
	if v, ok := l.byName[n]; ok {
		return v
	}
	return nil
}
func (l *enumValueDescriptorList) ByNumber(n protoval.EnumNumber) protoval.EnumValueDescriptor {
	if v, ok := l.byNumber[n]; ok {
		return v
	}
	return nil
}
func (l *enumValueDescriptorList) AllByNumber(n protoval.EnumNumber) []protoval.EnumValueDescriptor {
	vs := l.allNum[n]
	out := make([]protoval.EnumValueDescriptor, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

type serviceDescriptorList struct {
	list   []*serviceDescriptor
	byName map[protoval.Name]*serviceDescriptor
}

func (l *serviceDescriptorList) add(s *serviceDescriptor) {
	if l.byName == nil {
		l.byName = make(map[protoval.Name]*serviceDescriptor)
	}
	l.list = append(l.list, s)
	l.byName[s.Name()] = s
}
func (l *serviceDescriptorList) Len() int { return len(l.list) }
func (l *serviceDescriptorList) Get(i int) protoval.ServiceDescriptor { return l.list[i] }
func (l *serviceDescriptorList) ByName(n protoval.Name) protoval.ServiceDescriptor {
	if s, ok := l.byName[n]; ok {
		return s
	}
	return nil
}

type methodDescriptorList struct {
	list   []*methodDescriptor
	byName map[protoval.Name]*methodDescriptor
}

func (l *methodDescriptorList) add(m *methodDescriptor) {
	if l.byName == nil {
		l.byName = make(map[protoval.Name]*methodDescriptor)
	}
	l.list = append(l.list, m)
	l.byName[m.Name()] = m
}
func (l *methodDescriptorList) Len() int { return len(l.list) }
func (l *methodDescriptorList) Get(i int) protoval.MethodDescriptor { return l.list[i] }
func (l *methodDescriptorList) ByName(n protoval.Name) protoval.MethodDescriptor {
	if m, ok := l.byName[n]; ok {
		return m
	}
	return nil
}
