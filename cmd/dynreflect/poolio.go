package main

import (
	"fmt"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/dynproto/reflect/pool"
	"github.com/dynproto/reflect/protoval"
)

// loadDescriptorSet reads a serialized descriptorpb.FileDescriptorSet from
// path, as produced by `dynreflect compile` or `protoc -o`.
func loadDescriptorSet(path string) (*descriptorpb.FileDescriptorSet, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is an explicit CLI argument
	if err != nil {
		return nil, fmt.Errorf("reading descriptor set %s: %w", path, err)
	}
	var fds descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &fds); err != nil {
		return nil, fmt.Errorf("parsing descriptor set %s: %w", path, err)
	}
	return &fds, nil
}

// loadPool builds a Pool seeded with the well-known types plus every file in
// the descriptor set at path.
func loadPool(path string) (*pool.Pool, error) {
	fds, err := loadDescriptorSet(path)
	if err != nil {
		return nil, err
	}
	p := pool.Global()
	if err := p.AddFileDescriptorSet(fds); err != nil {
		return nil, fmt.Errorf("registering descriptor set %s: %w", path, err)
	}
	return p, nil
}

// resolveMessage looks up a message by full name. When the name is not found,
// the error names only the missing message; it does not list the registered
// messages.
func resolveMessage(p *pool.Pool, name string) (protoval.MessageDescriptor, error) {
	md := p.FindMessageByName(protoval.FullName(name))
	if md == nil {
		return nil, fmt.Errorf("message %q not found in descriptor set", name)
	}
	return md, nil
}
