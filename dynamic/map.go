package dynamic

import "github.com/dynproto/reflect/protoval"

// Map backs a map<K, V> field, represented on the wire as a repeated
// synthetic two-field message (spec §3's map-entry rule). Entries preserve
// insertion order: the wire format does not require it, but stable
// iteration makes encode output and JSON/text rendering deterministic.
type Map struct {
	fd      protoval.FieldDescriptor
	order   []interface{}
	entries map[interface{}]mapEntry
}

type mapEntry struct {
	key protoval.MapKey
	val protoval.Value
}

// NewMap returns an empty map for fd, which must be a map field.
func NewMap(fd protoval.FieldDescriptor) *Map {
	return &Map{fd: fd, entries: make(map[interface{}]mapEntry)}
}

func (m *Map) Descriptor() protoval.FieldDescriptor { return m.fd }
func (m *Map) Len() int                             { return len(m.order) }

func (m *Map) Has(k protoval.MapKey) bool {
	_, ok := m.entries[k.Interface()]
	return ok
}

func (m *Map) Get(k protoval.MapKey) protoval.Value {
	return m.entries[k.Interface()].val
}

func (m *Map) Set(k protoval.MapKey, v protoval.Value) {
	ck := k.Interface()
	if _, ok := m.entries[ck]; !ok {
		m.order = append(m.order, ck)
	}
	m.entries[ck] = mapEntry{key: k, val: v}
}

func (m *Map) Clear(k protoval.MapKey) {
	ck := k.Interface()
	if _, ok := m.entries[ck]; !ok {
		return
	}
	delete(m.entries, ck)
	for i, o := range m.order {
		if o == ck {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Map) Range(f func(protoval.MapKey, protoval.Value) bool) {
	for _, ck := range m.order {
		e := m.entries[ck]
		if !f(e.key, e.val) {
			return
		}
	}
}
