// Package pool implements the descriptor pool: an arena of file, message,
// enum, extension, and service descriptors addressed by integer index, built
// by decoding a google.protobuf.FileDescriptorSet, with transactional
// batch-add (rollback on any validation failure) and name resolution that
// prefers the innermost matching scope.
package pool

import (
	"sync"

	"github.com/dynproto/reflect/protoval"
)

// definition is what the pool's name index stores for a registered full name.
type definitionKind int8

const (
	defPackage definitionKind = iota
	defMessage
	defField
	defOneof
	defService
	defMethod
	defEnum
	defEnumValue
	defExtension
)

type definition struct {
	kind  definitionKind
	index int // index into the owning pool-level slice for message/enum/service/extension kinds
	// for defField/defOneof/defMethod/defEnumValue, index identifies the
	// parent (message/service/enum) and sub identifies the position within it
	sub int
}

// poolData is the mutable arena shared (copy-on-write) by every Pool handle
// cloned from the same lineage.
type poolData struct {
	shared bool // set true by Clone; forces the next mutator to deep-copy

	files      []*fileDescriptor
	messages   []*messageDescriptor
	enums      []*enumDescriptor
	extensions []*extensionDescriptor
	services   []*serviceDescriptor

	names     map[protoval.FullName]definition
	fileNames map[string]int
}

func newPoolData() *poolData {
	return &poolData{
		names:     make(map[protoval.FullName]definition),
		fileNames: make(map[string]int),
	}
}

// clone makes a deep-enough copy for copy-on-write: the slice headers and the
// name maps are copied, but the descriptor values they point to (which are
// never mutated in place after being built) are shared.
func (d *poolData) clone() *poolData {
	nd := &poolData{
		files:      append([]*fileDescriptor(nil), d.files...),
		messages:   append([]*messageDescriptor(nil), d.messages...),
		enums:      append([]*enumDescriptor(nil), d.enums...),
		extensions: append([]*extensionDescriptor(nil), d.extensions...),
		services:   append([]*serviceDescriptor(nil), d.services...),
		names:      make(map[protoval.FullName]definition, len(d.names)),
		fileNames:  make(map[string]int, len(d.fileNames)),
	}
	for k, v := range d.names {
		nd.names[k] = v
	}
	for k, v := range d.fileNames {
		nd.fileNames[k] = v
	}
	return nd
}

// offsets snapshots arena lengths so a failed batch-add can roll back.
type offsets struct {
	files, messages, enums, extensions, services int
}

func (d *poolData) offsets() offsets {
	return offsets{len(d.files), len(d.messages), len(d.enums), len(d.extensions), len(d.services)}
}

// rollback truncates the arena back to o and prunes the name index per
// spec §4.1: drop any entry whose backing index is at/after the offset,
// except Package entries still backed by a remaining file.
func (d *poolData) rollback(o offsets) {
	for i := o.files; i < len(d.files); i++ {
		delete(d.fileNames, d.files[i].proto.GetName())
	}
	d.files = d.files[:o.files]
	d.messages = d.messages[:o.messages]
	d.enums = d.enums[:o.enums]
	d.extensions = d.extensions[:o.extensions]
	d.services = d.services[:o.services]

	for name, def := range d.names {
		switch def.kind {
		case defMessage:
			if def.index >= o.messages {
				delete(d.names, name)
			}
		case defEnum:
			if def.index >= o.enums {
				delete(d.names, name)
			}
		case defService:
			if def.index >= o.services {
				delete(d.names, name)
			}
		case defExtension:
			if def.index >= o.extensions {
				delete(d.names, name)
			}
		case defField, defOneof, defMethod, defEnumValue:
			if def.index >= parentArenaLen(def.kind, o) {
				delete(d.names, name)
			}
		case defPackage:
			if !d.packageStillBacked(name) {
				delete(d.names, name)
			}
		}
	}
}

func parentArenaLen(kind definitionKind, o offsets) int {
	switch kind {
	case defField, defOneof:
		return o.messages
	case defMethod:
		return o.services
	case defEnumValue:
		return o.enums
	}
	return 0
}

func (d *poolData) packageStillBacked(pkg protoval.FullName) bool {
	for _, f := range d.files {
		p := f.Package()
		if p == pkg || (len(p) > len(pkg) && p[len(pkg)] == '.' && p[:len(pkg)] == pkg) {
			return true
		}
	}
	return false
}

// Pool is an arena of resolved protobuf descriptors. The zero value is not
// usable; construct with New or Global. A Pool is cheap to Clone (the arena
// is shared, copy-on-write, until the clone or the original is next
// mutated), and safe for concurrent read-only use; AddFile* calls on the
// same Pool handle must not race each other.
type Pool struct {
	mu   sync.Mutex
	data *poolData
}

// New returns an empty pool with no files registered.
func New() *Pool {
	return &Pool{data: newPoolData()}
}

// Clone returns a new Pool handle sharing this pool's arena until either
// handle's next mutation, at which point that handle deep-copies first.
func (p *Pool) Clone() *Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.shared = true
	return &Pool{data: p.data}
}

// mutate runs fn with exclusive access to a private (non-shared) arena,
// rolling the arena back to its pre-call state if fn returns an error.
func (p *Pool) mutate(fn func(d *poolData) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data.shared {
		p.data = p.data.clone()
		p.data.shared = false
	}
	o := p.data.offsets()
	if err := fn(p.data); err != nil {
		p.data.rollback(o)
		return err
	}
	return nil
}

// FindFileByPath returns the file registered under path, or nil.
func (p *Pool) FindFileByPath(path string) FileDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.data.fileNames[path]; ok {
		return p.data.files[i]
	}
	return nil
}

// RangeFiles iterates over every registered file in registration order.
func (p *Pool) RangeFiles(f func(FileDescriptor) bool) {
	p.mu.Lock()
	files := append([]*fileDescriptor(nil), p.data.files...)
	p.mu.Unlock()
	for _, fd := range files {
		if !f(fd) {
			return
		}
	}
}

// FindMessageByName looks up a message by its fully-qualified name.
func (p *Pool) FindMessageByName(name protoval.FullName) MessageDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if def, ok := p.data.names[name]; ok && def.kind == defMessage {
		return p.data.messages[def.index]
	}
	return nil
}

// FindEnumByName looks up an enum by its fully-qualified name.
func (p *Pool) FindEnumByName(name protoval.FullName) EnumDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if def, ok := p.data.names[name]; ok && def.kind == defEnum {
		return p.data.enums[def.index]
	}
	return nil
}

// FindServiceByName looks up a service by its fully-qualified name.
func (p *Pool) FindServiceByName(name protoval.FullName) ServiceDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if def, ok := p.data.names[name]; ok && def.kind == defService {
		return p.data.services[def.index]
	}
	return nil
}

// FindExtensionByName looks up an extension field by its fully-qualified name.
func (p *Pool) FindExtensionByName(name protoval.FullName) ExtensionDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if def, ok := p.data.names[name]; ok && def.kind == defExtension {
		return p.data.extensions[def.index]
	}
	return nil
}

// FindExtensionByNumber looks up an extension of extendee by field number.
func (p *Pool) FindExtensionByNumber(extendee protoval.FullName, num protoval.FieldNumber) ExtensionDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, x := range p.data.extensions {
		if x.Number() == num && x.ExtendedType() != nil && x.ExtendedType().FullName() == extendee {
			return x
		}
	}
	return nil
}

// RangeExtensionsByExtendee iterates over every extension declared against
// extendee, across every file registered in this pool.
func (p *Pool) RangeExtensionsByExtendee(extendee protoval.FullName, f func(ExtensionDescriptor) bool) {
	p.mu.Lock()
	exts := append([]*extensionDescriptor(nil), p.data.extensions...)
	p.mu.Unlock()
	for _, x := range exts {
		if x.ExtendedType() != nil && x.ExtendedType().FullName() == extendee {
			if !f(x) {
				return
			}
		}
	}
}

// FindDescriptorByName looks up any named declaration regardless of kind.
func (p *Pool) FindDescriptorByName(name protoval.FullName) protoval.Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	def, ok := p.data.names[name]
	if !ok {
		return nil
	}
	switch def.kind {
	case defMessage:
		return p.data.messages[def.index]
	case defEnum:
		return p.data.enums[def.index]
	case defService:
		return p.data.services[def.index]
	case defExtension:
		return p.data.extensions[def.index]
	}
	return nil
}

// Type aliases so callers can write pool.FileDescriptor instead of reaching
// into protoval directly.
type (
	FileDescriptor      = protoval.FileDescriptor
	MessageDescriptor   = protoval.MessageDescriptor
	FieldDescriptor     = protoval.FieldDescriptor
	OneofDescriptor     = protoval.OneofDescriptor
	EnumDescriptor      = protoval.EnumDescriptor
	EnumValueDescriptor = protoval.EnumValueDescriptor
	ServiceDescriptor   = protoval.ServiceDescriptor
	MethodDescriptor    = protoval.MethodDescriptor
	ExtensionDescriptor = protoval.ExtensionDescriptor
)
