// Package wellknown supplies the FileDescriptorProtos for the seven
// google.protobuf well-known-type files, sourced from the generated Go
// packages under google.golang.org/protobuf/types/known so that their
// wire layout always matches whatever protobuf-go version this module
// vendors, rather than a hand-copied descriptor.
package wellknown

import (
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Files returns the FileDescriptorProtos for any.proto, timestamp.proto,
// duration.proto, struct.proto, wrappers.proto, field_mask.proto, and
// empty.proto, in dependency order (none of them import one another, so any
// order is actually safe, but this is the conventional protoc order).
func Files() []*descriptorpb.FileDescriptorProto {
	return []*descriptorpb.FileDescriptorProto{
		protodesc.ToFileDescriptorProto((&anypb.Any{}).ProtoReflect().Descriptor().ParentFile()),
		protodesc.ToFileDescriptorProto((&durationpb.Duration{}).ProtoReflect().Descriptor().ParentFile()),
		protodesc.ToFileDescriptorProto((&emptypb.Empty{}).ProtoReflect().Descriptor().ParentFile()),
		protodesc.ToFileDescriptorProto((&fieldmaskpb.FieldMask{}).ProtoReflect().Descriptor().ParentFile()),
		protodesc.ToFileDescriptorProto((&structpb.Struct{}).ProtoReflect().Descriptor().ParentFile()),
		protodesc.ToFileDescriptorProto((&timestamppb.Timestamp{}).ProtoReflect().Descriptor().ParentFile()),
		protodesc.ToFileDescriptorProto((&wrapperspb.StringValue{}).ProtoReflect().Descriptor().ParentFile()),
	}
}
