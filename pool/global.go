package pool

import (
	"sync"

	"github.com/dynproto/reflect/pool/wellknown"
)

var (
	globalOnce sync.Once
	globalPool *Pool
)

// Global returns the process-wide pool, seeded on first use with every
// well-known-type file (any.proto, timestamp.proto, duration.proto,
// struct.proto, wrappers.proto, field_mask.proto, empty.proto). Callers get
// a cheap Clone of the shared lineage, so registering additional files on
// the returned Pool never perturbs another caller's view of Global().
func Global() *Pool {
	globalOnce.Do(func() {
		p := New()
		for _, fdp := range wellknown.Files() {
			if err := p.AddFileDescriptorProto(fdp); err != nil {
				panic("pool: failed to seed well-known types: " + err.Error())
			}
		}
		globalPool = p
	})
	return globalPool.Clone()
}

// FileDescriptorCache memoizes DecodeFileDescriptorSet by the exact byte
// content decoded, so that reparsing the same embedded descriptor bytes
// (the common case for generated code, which embeds the same
// file_descriptor_set_bytes literal on every call to init()) costs one
// decode instead of one per caller. Safe for concurrent use.
type FileDescriptorCache struct {
	mu      sync.Mutex
	byBytes map[string]*Pool
}

// NewFileDescriptorCache returns an empty cache.
func NewFileDescriptorCache() *FileDescriptorCache {
	return &FileDescriptorCache{byBytes: make(map[string]*Pool)}
}

// Decode returns a Pool containing b's files, decoding and registering them
// against base only the first time this exact byte slice is seen.
// Subsequent calls with byte-identical content return a cheap Clone of the
// cached result; base is ignored on a cache hit.
func (c *FileDescriptorCache) Decode(base *Pool, b []byte) (*Pool, error) {
	key := string(b)

	c.mu.Lock()
	if p, ok := c.byBytes[key]; ok {
		c.mu.Unlock()
		return p.Clone(), nil
	}
	c.mu.Unlock()

	p := base.Clone()
	if err := p.DecodeFileDescriptorSet(b); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.byBytes[key] = p
	c.mu.Unlock()
	return p.Clone(), nil
}
